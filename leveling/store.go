package leveling

import "context"

// UserLevel is the persisted progress of a guild member, XP is the amount
// accumulated towards the next level
type UserLevel struct {
	GuildID int64
	UserID  int64
	Level   int
	XP      int64
}

// Store is the persistence boundary of the engine, PostgresStore is the real
// implementation, tests swap in an in-memory one.
type Store interface {
	GetConfig(ctx context.Context, guildID int64) (*LevelConfig, error)
	SetConfig(ctx context.Context, conf *LevelConfig) error

	// GetUserLevel returns a zeroed entry for members without a row
	GetUserLevel(ctx context.Context, guildID, userID int64) (*UserLevel, error)
	SetUserLevel(ctx context.Context, entry *UserLevel) error
	DeleteUserLevel(ctx context.Context, guildID, userID int64) error

	// TopUsers returns the guild leaderboard ordered by level then xp descending
	TopUsers(ctx context.Context, guildID int64, offset, limit int) ([]*UserLevel, error)
}
