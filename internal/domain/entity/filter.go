package entity

import "strings"

// NameFilter decides by substring which filenames an album run downloads.
// Ignore wins over Include; an empty Include admits everything.
type NameFilter struct {
	Include []string
	Ignore  []string
}

// SkipReason returns a human readable reason when name must not be
// downloaded, or "" when it passes.
func (f NameFilter) SkipReason(name string) string {
	for _, w := range f.Ignore {
		if w != "" && strings.Contains(name, w) {
			return name + " contains ignored words."
		}
	}
	if len(f.Include) == 0 {
		return ""
	}
	for _, w := range f.Include {
		if strings.Contains(name, w) {
			return ""
		}
	}
	return name + " does not contain required words."
}
