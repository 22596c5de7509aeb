package reconcile

import (
	"context"

	"patron-sync/internal/config"
	"patron-sync/internal/logger"
	"patron-sync/internal/model"
	"patron-sync/internal/prox"
	"patron-sync/pkg/errors"

	"github.com/rs/zerolog"
)

// Gateway is the part of the patron API the engine needs.
type Gateway interface {
	FindByUsername(ctx context.Context, username string) ([]model.RemotePatron, error)
	Update(ctx context.Context, patronID string, patron model.RemotePatron) (model.RemotePatron, error)
}

type Result struct {
	Outcome     model.Outcome
	PatronID    string
	NameChanged bool
	ProxChanged bool
	Err         error
}

// Change lists which fields differ between the source and the remote patron.
type Change struct {
	Badge     bool
	FirstName bool
	LastName  bool
}

func (c Change) Any() bool {
	return c.Badge || c.FirstName || c.LastName
}

func (c Change) Name() bool {
	return c.FirstName || c.LastName
}

type Engine struct {
	gw              Gateway
	badgeExceptions map[string]struct{}
	nameExceptions  map[string]struct{}
	log             zerolog.Logger
}

func NewEngine(cfg *config.Config, gw Gateway) *Engine {
	return &Engine{
		gw:              gw,
		badgeExceptions: idSet(cfg.Reconcile.BadgeExceptions),
		nameExceptions:  idSet(cfg.Reconcile.NameExceptions),
		log:             logger.Get(),
	}
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[prox.StripLeadingZeros(id)] = struct{}{}
	}
	return set
}

func (e *Engine) badgeExcepted(universalID string) bool {
	_, ok := e.badgeExceptions[prox.StripLeadingZeros(universalID)]
	return ok
}

func (e *Engine) nameExcepted(universalID string) bool {
	_, ok := e.nameExceptions[prox.StripLeadingZeros(universalID)]
	return ok
}

// HasChanged compares the badge when one is known and not excepted, and
// each name when the source has a value for it.
func (e *Engine) HasChanged(ident model.Identity, badge string, remote model.RemotePatron) Change {
	var change Change
	if badge != "" && !e.badgeExcepted(ident.UniversalID) && badge != remote.CardNumber() {
		change.Badge = true
	}
	if !e.nameExcepted(ident.UniversalID) {
		change.FirstName = ident.FirstName != "" && ident.FirstName != remote.FirstName()
		change.LastName = ident.LastName != "" && ident.LastName != remote.Surname()
	}
	return change
}

// PrepareUpdate builds the PUT payload from a copy of the remote patron.
// A replaced cardnumber is kept in the backup field so a bad badge import
// can be undone.
func PrepareUpdate(remote model.RemotePatron, ident model.Identity, badge string, change Change) model.RemotePatron {
	patron := remote.Clone()
	if change.Badge {
		patron[model.BackupCardField] = remote.CardNumber()
		patron["cardnumber"] = badge
	}
	if change.FirstName {
		patron["firstname"] = ident.FirstName
	}
	if change.LastName {
		patron["surname"] = ident.LastName
	}
	return patron.StripReadOnly()
}

// CheckPatron reconciles one person against the remote system. HTTP
// failures become an Error outcome with a nil error; only a broken
// uniqueness assumption is returned as an error.
func (e *Engine) CheckPatron(ctx context.Context, person model.Person, badge string, dryRun bool) (Result, error) {
	ident := person.Ident()
	log := e.log.With().Str("username", ident.Username).Str("universal_id", ident.UniversalID).Logger()

	remote, result, err := e.lookup(ctx, ident.Username, log)
	if remote == nil {
		return result, err
	}

	change := e.HasChanged(ident, badge, remote)
	if !change.Any() {
		log.Debug().Str("patron_id", remote.ID()).Msg("Patron unchanged")
		return Result{Outcome: model.OutcomeUnchanged, PatronID: remote.ID()}, nil
	}

	result = Result{
		Outcome:     model.OutcomeUpdated,
		PatronID:    remote.ID(),
		NameChanged: change.Name(),
		ProxChanged: change.Badge,
	}

	event := log.Info().
		Str("patron_id", remote.ID()).
		Bool("dry_run", dryRun)
	if change.Badge {
		event = event.Str("old_cardnumber", remote.CardNumber()).Str("new_cardnumber", badge)
	}
	if change.Name() {
		event = event.
			Str("old_name", remote.FirstName()+" "+remote.Surname()).
			Str("new_name", ident.FirstName+" "+ident.LastName)
	}
	event.Msg("Updating patron")

	if dryRun {
		return result, nil
	}

	payload := PrepareUpdate(remote, ident, badge, change)
	if _, err := e.gw.Update(ctx, remote.ID(), payload); err != nil {
		log.Error().Err(err).Str("patron_id", remote.ID()).Str("badge", badge).Msg("Failed to update patron")
		return Result{Outcome: model.OutcomeError, PatronID: remote.ID(), Err: err}, nil
	}

	return result, nil
}

// ChangeName applies a proposed name to the patron with the given username.
// Empty values leave that part of the name alone.
func (e *Engine) ChangeName(ctx context.Context, username, firstName, lastName string, dryRun bool) (Result, error) {
	log := e.log.With().Str("username", username).Logger()

	remote, result, err := e.lookup(ctx, username, log)
	if remote == nil {
		return result, err
	}

	change := Change{
		FirstName: firstName != "" && firstName != remote.FirstName(),
		LastName:  lastName != "" && lastName != remote.Surname(),
	}
	if !change.Any() {
		return Result{Outcome: model.OutcomeUnchanged, PatronID: remote.ID()}, nil
	}

	log.Info().
		Str("patron_id", remote.ID()).
		Bool("dry_run", dryRun).
		Str("old_name", remote.FirstName()+" "+remote.Surname()).
		Str("new_name", firstName+" "+lastName).
		Msg("Changing patron name")

	result = Result{Outcome: model.OutcomeUpdated, PatronID: remote.ID(), NameChanged: true}
	if dryRun {
		return result, nil
	}

	ident := model.Identity{Username: username, FirstName: firstName, LastName: lastName}
	if _, err := e.gw.Update(ctx, remote.ID(), PrepareUpdate(remote, ident, "", change)); err != nil {
		log.Error().Err(err).Str("patron_id", remote.ID()).Msg("Failed to change patron name")
		return Result{Outcome: model.OutcomeError, PatronID: remote.ID(), Err: err}, nil
	}
	return result, nil
}

// lookup returns the single remote match, or a nil patron with the
// terminal result for this record.
func (e *Engine) lookup(ctx context.Context, username string, log zerolog.Logger) (model.RemotePatron, Result, error) {
	patrons, err := e.gw.FindByUsername(ctx, username)
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up patron")
		return nil, Result{Outcome: model.OutcomeError, Err: err}, nil
	}

	switch len(patrons) {
	case 0:
		log.Info().Msg("Could not find any patrons with this userid")
		return nil, Result{Outcome: model.OutcomeMissing}, nil
	case 1:
		return patrons[0], Result{}, nil
	}

	inconsistency := &errors.DataInconsistencyError{Username: username, Matches: len(patrons)}
	log.Error().Err(inconsistency).Msg("Exact username query matched more than one patron")
	return nil, Result{Outcome: model.OutcomeError, Err: inconsistency}, inconsistency
}
