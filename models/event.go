package models

// InboundEvent is a single raw event delivered by a transport. The pipeline
// only inspects the fields below; everything else about the underlying
// protocol message stays inside the transport adapter.
type InboundEvent struct {
	Body             string `json:"body"`
	SenderID         string `json:"sender_id"`
	ChatID           string `json:"chat_id"`
	MessageRef       string `json:"message_ref"`
	IsSelfOriginated bool   `json:"is_self_originated"`
	IsGroupChat      bool   `json:"is_group_chat"`
	QuotedBody       string `json:"quoted_body,omitempty"`
}

// HasBody reports whether the event carries a non-empty message body
func (e InboundEvent) HasBody() bool {
	return e.Body != ""
}
