package models

import (
	"context"
	"time"
)

// Priority controls dequeue order: strictly higher priority drains first,
// FIFO within a tier
type Priority int

const (
	PriorityBackground Priority = iota
	PriorityLow
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return "unknown"
	}
}

// QueueItem is one admitted unit of work. It is owned exclusively by the
// processing queue for its lifetime; only the queue mutates Retries.
type QueueItem struct {
	ID         string
	Payload    any
	Handler    func(ctx context.Context) error
	Priority   Priority
	EnqueuedAt time.Time
	Retries    int
}

// QueueStats is a point-in-time snapshot of the queue counters
type QueueStats struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
	InFlight  int `json:"in_flight"`
}
