// Package preset loads firearm presets, spray patterns, attachments and ammo
// profiles from YAML documents and resolves the references between them.
package preset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"github.com/fpsframework/firearm/internal/attachment"
	"github.com/fpsframework/firearm/internal/firearm"
	"github.com/fpsframework/firearm/internal/spray"
	"gopkg.in/yaml.v3"
)

var (
	// ErrUnknownReference is returned when a document names a spray pattern
	// or firearm that is not defined.
	ErrUnknownReference = errors.New("unknown reference")
	// ErrDuplicate is returned when two definitions share a name.
	ErrDuplicate = errors.New("duplicate definition")
)

// AttachmentDef is the YAML form of an attachment variant. Modifiers map
// category names to percentages; omitted categories stay at 100.
type AttachmentDef struct {
	Type      string         `yaml:"type"`
	Name      string         `yaml:"name"`
	Modifiers map[string]int `yaml:"modifiers"`
	// Firearms limits the attachment to the named presets. Empty means all.
	Firearms []string `yaml:"firearms"`
}

// Loadout is the attachment selection applied to a freshly built manager.
type Loadout struct {
	Firearm     string   `yaml:"firearm"`
	Attachments []string `yaml:"attachments"`
}

// Document is one YAML file of the preset library.
type Document struct {
	SprayPatterns []*spray.Pattern      `yaml:"sprayPatterns"`
	Firearms      []*firearm.Preset     `yaml:"firearms"`
	Attachments   []AttachmentDef       `yaml:"attachments"`
	Ammo          []firearm.AmmoProfile `yaml:"ammo"`
	Loadouts      []Loadout             `yaml:"loadouts"`
}

// Library is a resolved, validated set of definitions. It is read-only
// after Load and safe to share between firearms.
type Library struct {
	patterns    map[string]*spray.Pattern
	presets     map[string]*firearm.Preset
	order       []string
	attachments []attachmentEntry
	ammo        []firearm.AmmoProfile
	loadouts    map[string][]string
}

type attachmentEntry struct {
	attachment *attachment.Attachment
	firearms   []string
}

// Load reads a YAML file, or every *.yaml and *.yml file of a directory in
// name order, and builds a library from the merged documents.
func Load(path string) (*Library, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat preset path: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		entries, err := os.ReadDir(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read preset directory %q: %w", path, err)
		}
		files = files[:0]
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}
			files = append(files, filepath.Join(path, e.Name()))
		}
		sort.Strings(files)
	}

	var merged Document
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read preset file %q: %w", file, err)
		}
		doc, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse preset file %q: %w", file, err)
		}
		merged.merge(doc)
	}
	return Build(merged)
}

// Parse builds a library from a single YAML document.
func Parse(data []byte) (*Library, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}
	return Build(doc)
}

func decode(data []byte) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return Document{}, err
	}
	return doc, nil
}

func (d *Document) merge(o Document) {
	d.SprayPatterns = append(d.SprayPatterns, o.SprayPatterns...)
	d.Firearms = append(d.Firearms, o.Firearms...)
	d.Attachments = append(d.Attachments, o.Attachments...)
	d.Ammo = append(d.Ammo, o.Ammo...)
	d.Loadouts = append(d.Loadouts, o.Loadouts...)
}

// Build resolves references and validates every definition of doc.
func Build(doc Document) (*Library, error) {
	lib := &Library{
		patterns: make(map[string]*spray.Pattern),
		presets:  make(map[string]*firearm.Preset),
		loadouts: make(map[string][]string),
	}
	var errs []error

	for _, p := range doc.SprayPatterns {
		if p == nil {
			continue
		}
		if p.Name == "" {
			errs = append(errs, errors.New("spray pattern without name"))
			continue
		}
		if _, ok := lib.patterns[p.Name]; ok {
			errs = append(errs, fmt.Errorf("spray pattern %q: %w", p.Name, ErrDuplicate))
			continue
		}
		lib.patterns[p.Name] = p
	}
	for _, p := range lib.patterns {
		if p.Source != spray.SourceExternal {
			continue
		}
		ext, ok := lib.patterns[p.ExternalName]
		if !ok {
			errs = append(errs, fmt.Errorf("spray pattern %q: external %q: %w", p.Name, p.ExternalName, ErrUnknownReference))
			continue
		}
		p.External = ext
	}

	for _, p := range doc.Firearms {
		if p == nil {
			continue
		}
		if _, ok := lib.presets[p.Name]; ok {
			errs = append(errs, fmt.Errorf("firearm %q: %w", p.Name, ErrDuplicate))
			continue
		}
		if err := lib.resolvePreset(p); err != nil {
			errs = append(errs, err)
			continue
		}
		lib.presets[p.Name] = p
		lib.order = append(lib.order, p.Name)
	}

	for _, def := range doc.Attachments {
		a, err := buildAttachment(def)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, name := range def.Firearms {
			if _, ok := lib.presets[name]; !ok {
				errs = append(errs, fmt.Errorf("attachment %s: firearm %q: %w", a.Key(), name, ErrUnknownReference))
			}
		}
		lib.attachments = append(lib.attachments, attachmentEntry{attachment: a, firearms: def.Firearms})
	}

	seen := make(map[string]bool)
	for _, a := range doc.Ammo {
		if seen[a.Name] {
			errs = append(errs, fmt.Errorf("ammo %q: %w", a.Name, ErrDuplicate))
			continue
		}
		seen[a.Name] = true
		lib.ammo = append(lib.ammo, a)
	}

	for _, l := range doc.Loadouts {
		if _, ok := lib.presets[l.Firearm]; !ok {
			errs = append(errs, fmt.Errorf("loadout: firearm %q: %w", l.Firearm, ErrUnknownReference))
			continue
		}
		lib.loadouts[l.Firearm] = l.Attachments
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return lib, nil
}

func (lib *Library) resolvePreset(p *firearm.Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.HipSpray != "" {
		pattern, ok := lib.patterns[p.HipSpray]
		if !ok {
			return fmt.Errorf("firearm %q: hipSpray %q: %w", p.Name, p.HipSpray, ErrUnknownReference)
		}
		p.HipPattern = pattern
	}
	if p.AimSpray != "" {
		pattern, ok := lib.patterns[p.AimSpray]
		if !ok {
			return fmt.Errorf("firearm %q: aimSpray %q: %w", p.Name, p.AimSpray, ErrUnknownReference)
		}
		p.AimPattern = pattern
	}
	p.Projectile.DamageCurve = p.Projectile.DamageCurve.Sorted()
	return nil
}

func buildAttachment(def AttachmentDef) (*attachment.Attachment, error) {
	if def.Type == "" || def.Name == "" || strings.Contains(def.Type, "/") || strings.Contains(def.Name, "/") {
		return nil, fmt.Errorf("attachment %q/%q: %w", def.Type, def.Name, attachment.ErrInvalidFormat)
	}
	a := attachment.New(def.Type, def.Name)
	for name, pct := range def.Modifiers {
		c, err := attachment.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", a.Key(), err)
		}
		a.SetPercent(c, pct)
	}
	return a, nil
}

// Preset returns a preset by name.
func (lib *Library) Preset(name string) (*firearm.Preset, bool) {
	p, ok := lib.presets[name]
	return p, ok
}

// Presets returns every preset in definition order.
func (lib *Library) Presets() []*firearm.Preset {
	out := make([]*firearm.Preset, 0, len(lib.order))
	for _, name := range lib.order {
		out = append(out, lib.presets[name])
	}
	return out
}

// Pattern returns a spray pattern by name.
func (lib *Library) Pattern(name string) (*spray.Pattern, bool) {
	p, ok := lib.patterns[name]
	return p, ok
}

// Inventory returns a fresh ammo inventory seeded with the library's
// profiles. Profiles are copied so that separate runs do not share reserves.
func (lib *Library) Inventory() *firearm.Inventory {
	profiles := make([]*firearm.AmmoProfile, 0, len(lib.ammo))
	for _, a := range lib.ammo {
		profiles = append(profiles, &a)
	}
	return firearm.NewInventory(profiles...)
}

// AttachmentManager builds a manager holding the attachments available to
// the named firearm, with the firearm's loadout applied.
func (lib *Library) AttachmentManager(firearmName string, logger *slog.Logger) (*attachment.Manager, error) {
	m := attachment.NewManager(logger)
	for _, e := range lib.attachments {
		if len(e.firearms) == 0 || slices.Contains(e.firearms, firearmName) {
			m.Register(e.attachment)
		}
	}
	for _, sel := range lib.loadouts[firearmName] {
		if err := m.SwitchAttachment(sel); err != nil {
			return nil, fmt.Errorf("loadout for %q: %w", firearmName, err)
		}
	}
	return m, nil
}
