package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"patron-sync/internal/logger"
	"patron-sync/internal/model"
	"patron-sync/internal/reconcile"
	"patron-sync/pkg/errors"
)

const (
	columnUserID        = "User ID"
	columnProposedFirst = "First Name - Proposed"
	columnProposedLast  = "Last Name - Proposed"
)

// NameChange is one row of an HR name-change report.
type NameChange struct {
	Username  string
	FirstName string
	LastName  string
}

type NameChanger interface {
	ChangeName(ctx context.Context, username, firstName, lastName string, dryRun bool) (reconcile.Result, error)
}

func ReadNameChangesFile(path string) ([]NameChange, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", errors.ErrMissingInput, path)
		}
		return nil, fmt.Errorf("failed to open name changes: %w", err)
	}
	defer f.Close()

	return ReadNameChanges(f)
}

// ReadNameChanges parses the report. The "User ID" column holds
// "username / Given Surname"; only the username part is kept.
func ReadNameChanges(r io.Reader) ([]NameChange, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, errors.NewFormatError("name changes", "")
		}
		return nil, fmt.Errorf("failed to read name changes header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, required := range []string{columnUserID, columnProposedFirst, columnProposedLast} {
		if _, ok := index[required]; !ok {
			return nil, errors.NewFormatError("name changes", strings.Join(header, ","))
		}
	}

	var changes []NameChange
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read name changes: %w", err)
		}

		cell := func(column string) string {
			i := index[column]
			if i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		username, _, _ := strings.Cut(cell(columnUserID), " / ")
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		changes = append(changes, NameChange{
			Username:  username,
			FirstName: cell(columnProposedFirst),
			LastName:  cell(columnProposedLast),
		})
	}
	return changes, nil
}

// ApplyNameChanges runs every change through the engine. Like the badge
// batch it stops only on a DataInconsistencyError.
func ApplyNameChanges(ctx context.Context, changer NameChanger, changes []NameChange, dryRun bool) (*model.BatchResult, error) {
	log := logger.Get()
	result := model.NewBatchResult()

	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		res, err := changer.ChangeName(ctx, change.Username, change.FirstName, change.LastName, dryRun)
		if err != nil {
			result.Errors++
			return result, fmt.Errorf("failed to change name of %s: %w", change.Username, err)
		}

		switch res.Outcome {
		case model.OutcomeUpdated:
			result.Updated++
			result.NameChanges++
			log.Info().
				Str("username", change.Username).
				Str("patron_id", res.PatronID).
				Str("first_name", change.FirstName).
				Str("last_name", change.LastName).
				Bool("dry_run", dryRun).
				Msg("Changed patron name")
		case model.OutcomeUnchanged:
			result.Unchanged++
		case model.OutcomeMissing:
			result.Missing++
			log.Warn().Str("username", change.Username).Msg("No patron with username")
		case model.OutcomeError:
			result.Errors++
		}
	}
	return result, nil
}
