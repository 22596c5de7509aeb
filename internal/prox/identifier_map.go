package prox

import "strings"

// IdentifierMap maps normalized universal IDs to normalized badge numbers.
// It is not modified after Build returns.
type IdentifierMap map[string]string

// StripLeadingZeros removes every leading '0'. An all-zero value strips to
// the empty string, which means no badge was issued.
func StripLeadingZeros(s string) string {
	return strings.TrimLeft(strings.TrimSpace(s), "0")
}

// Lookup normalizes the universal ID before reading the map.
func (m IdentifierMap) Lookup(universalID string) (string, bool) {
	badge, ok := m[StripLeadingZeros(universalID)]
	return badge, ok
}

// Diff returns the entries of current that are new or changed relative to
// previous.
func Diff(previous, current IdentifierMap) IdentifierMap {
	changed := make(IdentifierMap)
	for id, badge := range current {
		if prev, ok := previous[id]; !ok || prev != badge {
			changed[id] = badge
		}
	}
	return changed
}
