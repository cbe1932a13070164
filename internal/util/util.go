// Package util provides small text helpers shared by the scenario parser,
// the firearm and the storage exporters.
package util

import "strings"

// Unquote strips surrounding double quotes and collapses doubled inner
// quotes. Anything else is returned unchanged.
func Unquote(s string) string {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	return strings.ReplaceAll(s[1:len(s)-1], `""`, `"`)
}

// FormatWeaponText builds a display string for a firearm.
// Format: "Preset [Ammo] (Type/Name, ...)" with empty parts omitted.
func FormatWeaponText(preset, ammo string, attachments []string) string {
	var b strings.Builder
	b.WriteString(preset)
	if ammo != "" {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('[')
		b.WriteString(ammo)
		b.WriteByte(']')
	}
	if len(attachments) > 0 {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte('(')
		b.WriteString(strings.Join(attachments, ", "))
		b.WriteByte(')')
	}
	return b.String()
}

// SanitizeFileName replaces characters that are unsafe in file names with
// underscores.
func SanitizeFileName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', ':', '/', '\\', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, s)
}
