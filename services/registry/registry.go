package registry

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/mo"

	"relaybot/models"
)

// registeredCommand is one resolvable entry. Alias entries share the
// descriptor with their primary entry and are tagged so listings can skip
// them; resolution treats both the same.
type registeredCommand struct {
	descriptor *models.CommandDescriptor
	pluginName string
	isAlias    bool
}

// CommandRegistry maps command names and aliases to descriptors and tracks
// which plugin registered what. Load and unload take the write lock for the
// whole mutation so a lookup never observes a partially-updated alias set.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[string]*registeredCommand
	plugins  map[string]*models.PluginRecord
}

func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[string]*registeredCommand),
		plugins:  make(map[string]*models.PluginRecord),
	}
}

// Load validates the source structurally and registers its commands. Nothing
// is registered unless the whole plugin validates, so a partially invalid
// plugin leaves the registry untouched.
func (r *CommandRegistry) Load(source models.PluginSource) (*models.PluginRecord, error) {
	if source == nil {
		return nil, fmt.Errorf("plugin source is nil")
	}

	log.Printf("📋 Starting to load plugin: %s", source.Name())

	if err := validateSource(source); err != nil {
		log.Printf("❌ Rejected plugin %q at load time: %v", source.Name(), err)
		return nil, fmt.Errorf("plugin validation failed: %w", err)
	}

	descriptors := source.Commands()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.plugins[source.Name()]; exists {
		return nil, fmt.Errorf("plugin %q is already loaded", source.Name())
	}

	// Collect every name the plugin wants before touching the command map so
	// a collision registers nothing
	names := make([]string, 0, len(descriptors))
	seen := make(map[string]struct{})
	for _, descriptor := range descriptors {
		for _, name := range append([]string{descriptor.Name}, descriptor.Aliases...) {
			folded := strings.ToLower(name)
			if _, dup := seen[folded]; dup {
				return nil, fmt.Errorf("plugin %q registers name %q twice", source.Name(), folded)
			}
			if existing, taken := r.commands[folded]; taken {
				return nil, fmt.Errorf("command name %q already registered by plugin %q",
					folded, existing.pluginName)
			}
			seen[folded] = struct{}{}
			names = append(names, folded)
		}
	}

	for i := range descriptors {
		descriptor := &descriptors[i]
		r.commands[strings.ToLower(descriptor.Name)] = &registeredCommand{
			descriptor: descriptor,
			pluginName: source.Name(),
		}
		for _, alias := range descriptor.Aliases {
			r.commands[strings.ToLower(alias)] = &registeredCommand{
				descriptor: descriptor,
				pluginName: source.Name(),
				isAlias:    true,
			}
		}
	}

	record := &models.PluginRecord{
		Name:            source.Name(),
		Version:         source.Version(),
		Description:     source.Description(),
		Source:          source.Name(),
		RegisteredNames: names,
		LoadedAt:        time.Now(),
	}
	r.plugins[source.Name()] = record

	log.Printf("✅ Loaded plugin %s v%s with %d commands (%d names)",
		record.Name, record.Version, len(descriptors), len(names))
	return record, nil
}

// Unload removes a plugin and every name it registered. Unloading an absent
// plugin is a no-op.
func (r *CommandRegistry) Unload(sourceKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.plugins[sourceKey]
	if !exists {
		log.Printf("⚠️ Unload of unknown plugin %q, nothing to do", sourceKey)
		return nil
	}

	for _, name := range record.RegisteredNames {
		delete(r.commands, name)
	}
	delete(r.plugins, sourceKey)

	log.Printf("✅ Unloaded plugin %s, removed %d names", sourceKey, len(record.RegisteredNames))
	return nil
}

// Resolve looks up a command by name or alias, case-insensitive exact match
func (r *CommandRegistry) Resolve(name string) mo.Option[*models.CommandDescriptor] {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.commands[strings.ToLower(name)]
	if !ok {
		return mo.None[*models.CommandDescriptor]()
	}
	return mo.Some(entry.descriptor)
}

// ListCommands returns every registered descriptor once, excluding alias
// entries, sorted by name
func (r *CommandRegistry) ListCommands() []*models.CommandDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	descriptors := make([]*models.CommandDescriptor, 0, len(r.commands))
	for _, entry := range r.commands {
		if entry.isAlias {
			continue
		}
		descriptors = append(descriptors, entry.descriptor)
	}
	sort.Slice(descriptors, func(i, j int) bool {
		return descriptors[i].Name < descriptors[j].Name
	})
	return descriptors
}

// CommandNames returns every resolvable name including aliases
func (r *CommandRegistry) CommandNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListPlugins returns the records of all loaded plugins sorted by name
func (r *CommandRegistry) ListPlugins() []*models.PluginRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := make([]*models.PluginRecord, 0, len(r.plugins))
	for _, record := range r.plugins {
		records = append(records, record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
	return records
}

// HandleSourceEvent applies one change notification from the external file
// watcher. A change unloads the previous registration completely before the
// updated source is loaded, so old and new handlers are never registered
// under the same name at once.
func (r *CommandRegistry) HandleSourceEvent(event models.SourceEvent) error {
	log.Printf("📋 Starting to handle %s event for plugin source: %s", event.Type, event.SourceKey)

	switch event.Type {
	case models.SourceEventAdded:
		_, err := r.Load(event.Source)
		return err
	case models.SourceEventChanged:
		if err := r.Unload(event.SourceKey); err != nil {
			return err
		}
		_, err := r.Load(event.Source)
		return err
	case models.SourceEventRemoved:
		return r.Unload(event.SourceKey)
	default:
		return fmt.Errorf("unknown source event type: %s", event.Type)
	}
}

// validateSource performs the structural checks that gate registration
func validateSource(source models.PluginSource) error {
	if strings.TrimSpace(source.Name()) == "" {
		return fmt.Errorf("plugin name is required")
	}
	if strings.TrimSpace(source.Version()) == "" {
		return fmt.Errorf("plugin version is required")
	}
	if strings.TrimSpace(source.Description()) == "" {
		return fmt.Errorf("plugin description is required")
	}

	for _, descriptor := range source.Commands() {
		if strings.TrimSpace(descriptor.Name) == "" {
			return fmt.Errorf("command name is required")
		}
		if descriptor.Handler == nil {
			return fmt.Errorf("command %q has no handler", descriptor.Name)
		}
		switch descriptor.Scope {
		case models.ScopeAny, models.ScopeGroupOnly, models.ScopePrivateOnly:
		default:
			return fmt.Errorf("command %q has invalid scope %q", descriptor.Name, descriptor.Scope)
		}
		switch descriptor.Capability {
		case models.CapabilityNone, models.CapabilitySudo, models.CapabilityOwner:
		default:
			return fmt.Errorf("command %q has invalid capability %q", descriptor.Name, descriptor.Capability)
		}
	}
	return nil
}
