package attachment

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var (
	// ErrInvalidFormat is returned for switch commands not shaped "Type/Name".
	ErrInvalidFormat = errors.New("attachment switch must be formatted as Type/Name")
	// ErrUnknownType is returned when no registered attachment has the requested type.
	ErrUnknownType = errors.New("no attachment registered for type")
)

// Selection is one active (type, name) pair.
type Selection struct {
	Type string `yaml:"type"`
	Name string `yaml:"name"`
}

// Manager holds the attachments mounted on one firearm and the active selection.
// It is mutated only by explicit switch commands serialized by the host.
type Manager struct {
	attachments []*Attachment
	active      []Selection
	logger      *slog.Logger
}

// NewManager creates a manager. A nil logger uses slog.Default().
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Register adds an attachment variant.
func (m *Manager) Register(attachments ...*Attachment) {
	for _, a := range attachments {
		if a != nil {
			m.attachments = append(m.attachments, a)
		}
	}
}

// Attachments returns the registered attachments.
func (m *Manager) Attachments() []*Attachment {
	return m.attachments
}

// SetActive replaces the active selection list.
func (m *Manager) SetActive(selections ...Selection) {
	m.active = append(m.active[:0], selections...)
}

// Active returns a copy of the active selection list.
func (m *Manager) Active() []Selection {
	out := make([]Selection, len(m.active))
	copy(out, m.active)
	return out
}

// ActiveKeys returns the active selections formatted as "Type/Name".
func (m *Manager) ActiveKeys() []string {
	keys := make([]string, 0, len(m.active))
	for _, s := range m.active {
		keys = append(keys, s.Type+"/"+s.Name)
	}
	return keys
}

// IsActive reports whether the attachment's (type, name) pair is selected.
func (m *Manager) IsActive(a *Attachment) bool {
	for _, s := range m.active {
		if s.Type == a.Type && s.Name == a.Name {
			return true
		}
	}
	return false
}

// CalculateModifier returns the product of the category modifier over all
// active attachments, 1.0 when none are active. Nil managers are neutral.
func (m *Manager) CalculateModifier(c Category) float64 {
	if m == nil {
		return 1
	}
	result := 1.0
	for _, a := range m.attachments {
		if m.IsActive(a) {
			result *= a.Modifier(c)
		}
	}
	return result
}

// SwitchAttachment selects a variant from a "Type/Name" command. Only the
// entry for that type changes.
func (m *Manager) SwitchAttachment(typeAndName string) error {
	attachmentType, name, ok := strings.Cut(typeAndName, "/")
	if !ok || attachmentType == "" || name == "" || strings.Contains(name, "/") {
		m.logger.Error("Invalid attachment switch", "value", typeAndName)
		return fmt.Errorf("%w: %q", ErrInvalidFormat, typeAndName)
	}

	if !m.hasType(attachmentType) {
		m.logger.Error("No attachment of requested type", "type", attachmentType, "name", name)
		return fmt.Errorf("%w: %s", ErrUnknownType, attachmentType)
	}

	for i := range m.active {
		if m.active[i].Type == attachmentType {
			m.active[i].Name = name
			return nil
		}
	}
	m.active = append(m.active, Selection{Type: attachmentType, Name: name})
	return nil
}

func (m *Manager) hasType(attachmentType string) bool {
	for _, a := range m.attachments {
		if a.Type == attachmentType {
			return true
		}
	}
	return false
}
