package prox

import (
	"strings"

	"patron-sync/pkg/errors"
)

// Layout describes one known badge report export. Skip counts every line
// before the first data row, the title line included.
type Layout struct {
	Name      string
	Signature string
	Skip      int
	IDCol     int
	BadgeCol  int
	// PrefixWidth is a fixed-width type code baked into the badge field.
	PrefixWidth int
}

var Layouts = []Layout{
	{
		Name:      "changed-accounts",
		Signature: "List of Changed Secondary Account Numbers",
		Skip:      3,
		IDCol:     0,
		BadgeCol:  1,
	},
	{
		Name:      "active-accounts",
		Signature: "Active Accounts with Prox IDs",
		Skip:      3,
		IDCol:     0,
		BadgeCol:  2,
	},
	{
		Name:      "header-only",
		Signature: `"Universal ID","Prox ID"`,
		Skip:      1,
		IDCol:     0,
		BadgeCol:  1,
	},
	{
		Name:        "legacy-card-export",
		Signature:   "Legacy Card Number Export",
		Skip:        2,
		IDCol:       0,
		BadgeCol:    1,
		PrefixWidth: 3,
	},
}

func (l Layout) minColumns() int {
	return max(l.IDCol, l.BadgeCol) + 1
}

// DetectLayout matches the first line of a report against the known
// signatures. Quotes are ignored so spreadsheet cells joined with commas
// match the same way as raw CSV.
func DetectLayout(name, firstLine string) (Layout, error) {
	line := unquote(strings.TrimPrefix(firstLine, "\ufeff"))
	for _, layout := range Layouts {
		if strings.Contains(line, unquote(layout.Signature)) {
			return layout, nil
		}
	}
	return Layout{}, errors.NewFormatError(name, strings.TrimSpace(firstLine))
}

func unquote(s string) string {
	return strings.ReplaceAll(s, `"`, "")
}
