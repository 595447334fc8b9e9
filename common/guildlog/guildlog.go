// Package guildlog keeps a per guild audit trail of engine actions, surfaced
// on the control panel.
package guildlog

import (
	"context"
	"database/sql"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
)

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS guild_logs (
	id BIGSERIAL PRIMARY KEY,
	guild_id BIGINT NOT NULL,

	created_at TIMESTAMP WITH TIME ZONE NOT NULL,

	plugin TEXT NOT NULL,
	user_id BIGINT NOT NULL,
	channel_id BIGINT NOT NULL,
	type SMALLINT NOT NULL,
	action TEXT NOT NULL
);
`, `
CREATE INDEX IF NOT EXISTS guild_logs_guild_created_at_idx ON guild_logs(guild_id, created_at);
`}

func InitSchema() {
	common.InitSchemas("guildlog", DBSchemas...)
}

type LogType int16

const (
	LogTypeConfigChange LogType = iota
	LogTypeGiveaway
	LogTypeLevelReward
	LogTypeError
)

type Entry struct {
	ID        int64
	GuildID   int64
	CreatedAt time.Time

	Plugin    string
	UserID    int64
	ChannelID int64
	Type      LogType
	Action    string
}

// Add appends an entry to the guilds audit trail
func Add(ctx context.Context, entry *Entry) error {
	const q = `INSERT INTO guild_logs (guild_id, created_at, plugin, user_id, channel_id, type, action)
	VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`

	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	err := common.PQ.QueryRowContext(ctx, q, entry.GuildID, createdAt, entry.Plugin,
		entry.UserID, entry.ChannelID, entry.Type, entry.Action).Scan(&entry.ID)
	return errors.WithStackIf(err)
}

// GetGuildEntries returns the latest entries for a guild, newest first
func GetGuildEntries(ctx context.Context, guildID int64, limit int) ([]*Entry, error) {
	const q = `SELECT id, guild_id, created_at, plugin, user_id, channel_id, type, action
	FROM guild_logs WHERE guild_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := common.PQ.QueryContext(ctx, q, guildID, limit)
	if err != nil {
		return nil, errors.WithStackIf(err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*Entry, error) {
	var result []*Entry
	for rows.Next() {
		entry := &Entry{}
		err := rows.Scan(&entry.ID, &entry.GuildID, &entry.CreatedAt, &entry.Plugin,
			&entry.UserID, &entry.ChannelID, &entry.Type, &entry.Action)
		if err != nil {
			return nil, errors.WithStackIf(err)
		}

		result = append(result, entry)
	}

	return result, rows.Err()
}

// ClearOldEntries trims entries older than the retention window
func ClearOldEntries(ctx context.Context, olderThan time.Duration) (int64, error) {
	result, err := common.PQ.ExecContext(ctx, `DELETE FROM guild_logs WHERE created_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, errors.WithStackIf(err)
	}

	n, _ := result.RowsAffected()
	return n, nil
}
