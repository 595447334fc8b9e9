package giveaway

import (
	"context"
	"time"
)

// Giveaway is an active giveaway, its id is the id of the scheduled timer
// that resolves it
type Giveaway struct {
	ID int64

	GuildID   int64
	ChannelID int64
	MessageID int64
	HostID    int64

	Prize      string
	NumWinners int

	LevelRequirement int
	RolesRequirement []int64

	CreatedAt time.Time
	EndsAt    time.Time
}

// Store is the persistence boundary of the engine
type Store interface {
	Insert(ctx context.Context, g *Giveaway) error
	Get(ctx context.Context, id int64) (*Giveaway, error)
	ListActive(ctx context.Context, guildID int64) ([]*Giveaway, error)

	// AddEntrant records an entry, inserting again is a no-op
	AddEntrant(ctx context.Context, giveawayID, userID int64) error
	RemoveEntrant(ctx context.Context, giveawayID, userID int64) error
	CountEntrants(ctx context.Context, giveawayID int64) (int, error)

	// Claim atomically removes the giveaway and returns it together with its
	// entrants. Exactly one of the racing callers (timer fire, cancel)
	// succeeds, the rest get common.ErrNotFound.
	Claim(ctx context.Context, id int64) (*Giveaway, []int64, error)
}
