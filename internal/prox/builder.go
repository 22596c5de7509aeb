package prox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"patron-sync/internal/logger"
	"patron-sync/pkg/errors"

	"github.com/rs/zerolog"
)

type Builder struct {
	strategies []ParsingStrategy
	log        zerolog.Logger
}

func NewBuilder() *Builder {
	return &Builder{
		// CSV accepts everything, so it goes last
		strategies: []ParsingStrategy{NewXLSXStrategy(), NewCSVStrategy()},
		log:        logger.Get(),
	}
}

// BuildFile reads a badge report from disk.
func (b *Builder) BuildFile(path string) (IdentifierMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to read badge report: %w", err)
	}
	return b.Build(filepath.Base(path), data)
}

// Build parses a badge report. It fails with a FormatError, before reading
// any data row, when the first line matches no known layout.
func (b *Builder) Build(name string, data []byte) (IdentifierMap, error) {
	var strategy ParsingStrategy
	for _, s := range b.strategies {
		if s.Accepts(data) {
			strategy = s
			break
		}
	}

	report, err := strategy.Parse(name, data)
	if err != nil {
		return nil, err
	}

	b.log.Debug().
		Str("file", name).
		Str("layout", report.Layout.Name).
		Int("rows", len(report.Rows)).
		Msg("Detected badge report layout")

	return b.collect(name, report), nil
}

func (b *Builder) collect(name string, report *Report) IdentifierMap {
	layout := report.Layout
	ids := make(IdentifierMap, len(report.Rows))

	for i, row := range report.Rows {
		lineNum := report.FirstLine + i
		if isBlank(row) {
			continue
		}
		if len(row) < layout.minColumns() {
			b.log.Warn().
				Str("file", name).
				Int("line", lineNum).
				Int("columns", len(row)).
				Msg("Skipping short badge report row")
			continue
		}

		id := StripLeadingZeros(row[layout.IDCol])
		if id == "" {
			b.log.Warn().Str("file", name).Int("line", lineNum).Msg("Skipping badge report row without a universal ID")
			continue
		}

		badge := normalizeBadge(row[layout.BadgeCol], layout.PrefixWidth)
		if badge == "" {
			// zero or empty means no badge has been issued
			continue
		}

		if prev, ok := ids[id]; ok && prev != badge {
			b.log.Debug().Str("universal_id", id).Str("previous", prev).Str("badge", badge).Msg("Badge report lists universal ID twice, keeping the later row")
		}
		ids[id] = badge
	}

	return ids
}

func normalizeBadge(raw string, prefixWidth int) string {
	badge := strings.TrimSpace(raw)
	if prefixWidth > 0 {
		if len(badge) <= prefixWidth {
			return ""
		}
		badge = badge[prefixWidth:]
	}
	return StripLeadingZeros(badge)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
