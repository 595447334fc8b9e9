package giveaway

import (
	"context"
	"time"

	"github.com/jonas747/engage/common"
	"github.com/jonas747/engage/common/keylock"
	"github.com/pkg/errors"
)

// EventResolve is the scheduled event that fires when a giveaway ends
const EventResolve = "giveaway_resolve"

// ResolveEventData is empty, the event id doubles as the giveaway id
type ResolveEventData struct{}

// Scheduler is the timer facility backing giveaway resolution,
// scheduledevents.Scheduler satisfies it
type Scheduler interface {
	Schedule(ctx context.Context, eventName string, guildID int64, runAt time.Time, data interface{}) (int64, error)
	Cancel(ctx context.Context, id int64) (bool, error)
}

// Dispatcher delivers giveaway announcements
type Dispatcher interface {
	GiveawayResolved(ctx context.Context, g *Giveaway, winners []int64) error
	GiveawayCanceled(ctx context.Context, g *Giveaway) error
}

const (
	MinDuration = 5 * time.Second
	MaxDuration = 30 * 24 * time.Hour

	MaxPrizeLength      = 100
	MaxWinners          = 100
	MaxRequiredRoles    = 10
	MaxLevelRequirement = 500
)

// Engine drives the giveaway lifecycle, from creation through entries to
// timer driven resolution. Ended giveaways have no row anymore, the claim
// during resolution removes it.
type Engine struct {
	store     Store
	scheduler Scheduler
	dispatch  Dispatcher

	// serializes entrant mutation per giveaway
	locks *keylock.KeyLock[int64]
}

func NewEngine(store Store, scheduler Scheduler, dispatch Dispatcher) *Engine {
	return &Engine{
		store:     store,
		scheduler: scheduler,
		dispatch:  dispatch,
		locks:     keylock.NewKeyLock[int64](),
	}
}

// CreateParams describes a new giveaway
type CreateParams struct {
	GuildID   int64
	ChannelID int64
	MessageID int64
	HostID    int64

	Prize      string
	Duration   time.Duration
	NumWinners int

	LevelRequirement int
	RolesRequirement []int64
}

func (p *CreateParams) validate() error {
	if p.Prize == "" {
		return common.NewValidationError("prize", "cannot be empty")
	}

	if len(p.Prize) > MaxPrizeLength {
		return common.NewValidationError("prize", "cannot be longer than %d characters", MaxPrizeLength)
	}

	if p.Duration < MinDuration {
		return common.NewValidationError("duration", "has to be at least %s", MinDuration)
	}

	if p.Duration > MaxDuration {
		return common.NewValidationError("duration", "cannot be longer than 30 days")
	}

	if p.NumWinners < 1 {
		return common.NewValidationError("winners", "has to be at least 1")
	}

	if p.NumWinners > MaxWinners {
		return common.NewValidationError("winners", "cannot be above %d", MaxWinners)
	}

	if p.LevelRequirement < 0 || p.LevelRequirement > MaxLevelRequirement {
		return common.NewValidationError("level_requirement", "has to be between 0 and %d", MaxLevelRequirement)
	}

	if len(p.RolesRequirement) > MaxRequiredRoles {
		return common.NewValidationError("roles_requirement", "cannot list more than %d roles", MaxRequiredRoles)
	}

	return nil
}

// Create validates the parameters, schedules the resolution timer and
// persists the giveaway under the timer id
func (e *Engine) Create(ctx context.Context, params *CreateParams) (*Giveaway, error) {
	err := params.validate()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	endsAt := now.Add(params.Duration)

	timerID, err := e.scheduler.Schedule(ctx, EventResolve, params.GuildID, endsAt, &ResolveEventData{})
	if err != nil {
		return nil, errors.Wrap(err, "schedule resolution")
	}

	g := &Giveaway{
		ID: timerID,

		GuildID:   params.GuildID,
		ChannelID: params.ChannelID,
		MessageID: params.MessageID,
		HostID:    params.HostID,

		Prize:      params.Prize,
		NumWinners: params.NumWinners,

		LevelRequirement: params.LevelRequirement,
		RolesRequirement: params.RolesRequirement,

		CreatedAt: now,
		EndsAt:    endsAt,
	}

	err = e.store.Insert(ctx, g)
	if err != nil {
		// the orphaned timer would fire into nothing, clean it up
		e.scheduler.Cancel(ctx, timerID)
		return nil, err
	}

	logger.WithField("guild", g.GuildID).WithField("giveaway", g.ID).Info("created giveaway")
	return g, nil
}

// Enter records the user as an entrant. The caller supplies the member state
// the requirements are checked against. Entering twice is a no-op, the
// entrant set stays a set.
func (e *Engine) Enter(ctx context.Context, giveawayID, userID int64, userLevel int, userRoleIDs []int64) error {
	g, err := e.store.Get(ctx, giveawayID)
	if err != nil {
		return err
	}

	if time.Now().After(g.EndsAt) {
		return &IneligibleError{Reason: "the giveaway has already ended"}
	}

	if userLevel < g.LevelRequirement {
		return &IneligibleError{Reason: "below the required level"}
	}

	// any one of the required roles grants access
	if len(g.RolesRequirement) > 0 && !common.ContainsInt64SliceOneOf(g.RolesRequirement, userRoleIDs) {
		return &IneligibleError{Reason: "missing a required role"}
	}

	handle := e.locks.Lock(giveawayID, 10*time.Second, time.Minute)
	if handle == -1 {
		return errors.New("timed out waiting for giveaway lock")
	}
	defer e.locks.Unlock(giveawayID, handle)

	return e.store.AddEntrant(ctx, giveawayID, userID)
}

// Leave withdraws an entry, leaving without having entered is a no-op
func (e *Engine) Leave(ctx context.Context, giveawayID, userID int64) error {
	handle := e.locks.Lock(giveawayID, 10*time.Second, time.Minute)
	if handle == -1 {
		return errors.New("timed out waiting for giveaway lock")
	}
	defer e.locks.Unlock(giveawayID, handle)

	return e.store.RemoveEntrant(ctx, giveawayID, userID)
}

// Get returns an active giveaway
func (e *Engine) Get(ctx context.Context, giveawayID int64) (*Giveaway, error) {
	return e.store.Get(ctx, giveawayID)
}

// ListActive returns the guilds running giveaways ordered by end time
func (e *Engine) ListActive(ctx context.Context, guildID int64) ([]*Giveaway, error) {
	return e.store.ListActive(ctx, guildID)
}

// Cancel removes a giveaway without drawing winners. The claim decides the
// race against the firing timer, losing it means the giveaway already
// resolved and the cancel is a no-op.
func (e *Engine) Cancel(ctx context.Context, giveawayID int64) error {
	g, _, err := e.store.Claim(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}

		return err
	}

	// the timer may have fired already and lost the claim, that cancel
	// failing is fine
	_, err = e.scheduler.Cancel(ctx, giveawayID)
	if err != nil {
		logger.WithError(err).WithField("giveaway", giveawayID).Error("failed canceling resolution timer")
	}

	logger.WithField("guild", g.GuildID).WithField("giveaway", g.ID).Info("canceled giveaway")
	return e.dispatch.GiveawayCanceled(ctx, g)
}

// HandleTimerFire resolves the giveaway whose timer fired. A missing row
// means the giveaway was canceled, which is a no-op.
func (e *Engine) HandleTimerFire(ctx context.Context, giveawayID int64) (retry bool, err error) {
	g, entrants, err := e.store.Claim(ctx, giveawayID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return false, nil
		}

		return true, err
	}

	winners := PickWinners(entrants, g.NumWinners)

	logger.WithField("guild", g.GuildID).WithField("giveaway", g.ID).
		WithField("entrants", len(entrants)).WithField("winners", len(winners)).Info("resolved giveaway")

	// the draw is final once claimed, a failed announcement is not retried
	// through the scheduler since re-claiming would find nothing
	err = e.dispatch.GiveawayResolved(ctx, g, winners)
	if err != nil {
		return false, errors.Wrap(err, "announce resolution")
	}

	return false, nil
}
