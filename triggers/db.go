package triggers

import (
	"context"
	"database/sql"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
)

const triggerColumns = `guild_id, local_id, kind, phrase, response, case_sensitive`

// Create validates and inserts the trigger, assigning the next local id
// within the guild
func Create(ctx context.Context, t *Trigger) error {
	err := t.Validate()
	if err != nil {
		return err
	}

	err = common.PQ.QueryRowContext(ctx, `INSERT INTO triggers (`+triggerColumns+`)
VALUES ($1, (SELECT COALESCE(MAX(local_id), 0) + 1 FROM triggers WHERE guild_id = $1), $2, $3, $4, $5)
RETURNING local_id`,
		t.GuildID, t.Kind, t.Phrase, t.Response, t.CaseSensitive).Scan(&t.LocalID)

	return errors.WithMessage(err, "insert trigger")
}

func Update(ctx context.Context, t *Trigger) error {
	err := t.Validate()
	if err != nil {
		return err
	}

	result, err := common.PQ.ExecContext(ctx, `UPDATE triggers SET
	kind = $3, phrase = $4, response = $5, case_sensitive = $6
WHERE guild_id = $1 AND local_id = $2`,
		t.GuildID, t.LocalID, t.Kind, t.Phrase, t.Response, t.CaseSensitive)
	if err != nil {
		return errors.WithMessage(err, "update trigger")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return common.ErrNotFound
	}

	return nil
}

func Delete(ctx context.Context, guildID, localID int64) error {
	result, err := common.PQ.ExecContext(ctx, `DELETE FROM triggers WHERE guild_id = $1 AND local_id = $2`,
		guildID, localID)
	if err != nil {
		return errors.WithMessage(err, "delete trigger")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return common.ErrNotFound
	}

	return nil
}

func Get(ctx context.Context, guildID, localID int64) (*Trigger, error) {
	row := common.PQ.QueryRowContext(ctx, `SELECT `+triggerColumns+` FROM triggers
WHERE guild_id = $1 AND local_id = $2`, guildID, localID)

	t := &Trigger{}
	err := row.Scan(&t.GuildID, &t.LocalID, &t.Kind, &t.Phrase, &t.Response, &t.CaseSensitive)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.ErrNotFound
		}
		return nil, errors.WithMessage(err, "scan trigger")
	}

	return t, nil
}

// ListGuild returns all triggers of a guild ordered by local id
func ListGuild(ctx context.Context, guildID int64) ([]*Trigger, error) {
	rows, err := common.PQ.QueryContext(ctx, `SELECT `+triggerColumns+` FROM triggers
WHERE guild_id = $1 ORDER BY local_id ASC`, guildID)
	if err != nil {
		return nil, errors.WithMessage(err, "query triggers")
	}
	defer rows.Close()

	var result []*Trigger
	for rows.Next() {
		t := &Trigger{}
		err = rows.Scan(&t.GuildID, &t.LocalID, &t.Kind, &t.Phrase, &t.Response, &t.CaseSensitive)
		if err != nil {
			return nil, errors.WithMessage(err, "scan trigger row")
		}

		result = append(result, t)
	}

	return result, rows.Err()
}

// Match returns the first trigger of the guild the content trips, in local
// id order
func Match(ctx context.Context, guildID int64, content string) (*Trigger, error) {
	guildTriggers, err := ListGuild(ctx, guildID)
	if err != nil {
		return nil, err
	}

	for _, t := range guildTriggers {
		if t.Matches(content) {
			return t, nil
		}
	}

	return nil, common.ErrNotFound
}
