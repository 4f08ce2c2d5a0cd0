package models

import "time"

// PluginSource is the contract a loadable plugin exposes to the registry.
// Implementations come from the builtin bundles or from whatever the external
// hot-reload collaborator hands over.
type PluginSource interface {
	Name() string
	Version() string
	Description() string
	Commands() []CommandDescriptor
}

// PluginRecord is the registry's record of one loaded plugin
type PluginRecord struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	// RegisteredNames holds every name and alias this plugin registered so
	// unload can remove them without orphans
	RegisteredNames []string  `json:"registered_names"`
	LoadedAt        time.Time `json:"loaded_at"`
}

// Source change event types delivered by the external file watcher
const (
	SourceEventAdded   = "added"
	SourceEventChanged = "changed"
	SourceEventRemoved = "removed"
)

// SourceEvent is a discrete change notification for a plugin source. Source is
// nil for removals.
type SourceEvent struct {
	Type      string
	SourceKey string
	Source    PluginSource
}
