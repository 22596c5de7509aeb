package batch

import (
	"context"
	"fmt"

	"patron-sync/internal/export"
	"patron-sync/internal/logger"
	"patron-sync/internal/model"
)

type PatronCreator interface {
	Create(ctx context.Context, patron model.RemotePatron) (model.RemotePatron, error)
}

type CreateResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Errors  int `json:"error"`
}

func (r CreateResult) Summary() string {
	return fmt.Sprintf("Summary:\n    - Created Patrons: %d\n    - Skipped: %d\n    - Errors: %d\n",
		r.Created, r.Skipped, r.Errors)
}

// CreateMissing maps records, usually read back from a missing-patrons
// file, and creates each one through the API. A failed create is counted
// and the batch continues.
func CreateMissing(ctx context.Context, creator PatronCreator, mapper export.Mapper, records []model.Record, dryRun bool) (CreateResult, error) {
	log := logger.Get()
	var result CreateResult

	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		patron, _ := mapper.Map(record.Person)
		if patron == nil {
			result.Skipped++
			continue
		}

		if dryRun {
			log.Info().Str("username", patron.UserID).Str("category", patron.CategoryCode).Msg("Would create patron")
			result.Created++
			continue
		}

		created, err := creator.Create(ctx, patron.ToAPIPatron())
		if err != nil {
			result.Errors++
			log.Error().Err(err).Str("username", patron.UserID).Msg("Failed to create patron")
			continue
		}
		result.Created++
		log.Info().Str("username", patron.UserID).Str("patron_id", created.ID()).Msg("Created patron")
	}
	return result, nil
}
