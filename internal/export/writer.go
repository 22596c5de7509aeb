package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"patron-sync/internal/logger"
	"patron-sync/internal/model"
	"patron-sync/pkg/errors"

	"github.com/rs/zerolog"
)

// Writer emits the bulk-import CSV. The header row is written on
// construction, so even an empty import has one.
type Writer struct {
	csv  *csv.Writer
	rows int
}

func NewWriter(w io.Writer) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.ImportColumns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &Writer{csv: cw}, nil
}

func (w *Writer) Write(p *model.MappedPatron) error {
	if err := w.csv.Write(p.Row()); err != nil {
		return fmt.Errorf("failed to write patron %s: %w", p.UserID, err)
	}
	w.rows++
	return nil
}

func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

func (w *Writer) Rows() int {
	return w.rows
}

func FileName(today time.Time) string {
	return today.Format("2006-01-02") + "-koha-patrons.csv"
}

// Mapper is satisfied by mapping.Mapper.
type Mapper interface {
	Map(p model.Person) (*model.MappedPatron, []errors.MappingGap)
}

type Stats struct {
	Written int
	Skipped int
	Gaps    int
}

// WriteAll maps and writes students first, then employees.
func WriteAll(w io.Writer, mapper Mapper, students, employees []model.Record) (Stats, error) {
	log := logger.Get()

	writer, err := NewWriter(w)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, group := range []struct {
		name    string
		records []model.Record
	}{
		{"students", students},
		{"employees", employees},
	} {
		log.Info().Int("records", len(group.records)).Msgf("Adding %s to patron import", group.name)
		if err := writeGroup(writer, mapper, group.records, &stats, log); err != nil {
			return stats, err
		}
	}

	if err := writer.Flush(); err != nil {
		return stats, fmt.Errorf("failed to flush import file: %w", err)
	}
	return stats, nil
}

func writeGroup(writer *Writer, mapper Mapper, records []model.Record, stats *Stats, log zerolog.Logger) error {
	for _, record := range records {
		patron, gaps := mapper.Map(record.Person)
		stats.Gaps += len(gaps)
		if patron == nil {
			stats.Skipped++
			continue
		}
		if err := writer.Write(patron); err != nil {
			return err
		}
		stats.Written++
	}
	log.Debug().Int("written", stats.Written).Int("skipped", stats.Skipped).Msg("Import group written")
	return nil
}
