package customcommands

import (
	"context"
	"database/sql"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
	"github.com/lib/pq"
)

const ccColumns = `guild_id, local_id, name, response, required_permissions,
roles, roles_whitelist_mode, channels, channels_whitelist_mode, users, users_whitelist_mode`

// Create validates and inserts the command, assigning the next local id
// within the guild
func Create(ctx context.Context, cc *CustomCommand) error {
	err := cc.Validate()
	if err != nil {
		return err
	}

	err = common.PQ.QueryRowContext(ctx, `INSERT INTO custom_commands (`+ccColumns+`)
VALUES ($1, (SELECT COALESCE(MAX(local_id), 0) + 1 FROM custom_commands WHERE guild_id = $1),
	$2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING local_id`,
		cc.GuildID, cc.Name, cc.Response, cc.RequiredPermissions,
		pq.Array(emptyNotNil(cc.Roles)), cc.RolesWhitelistMode,
		pq.Array(emptyNotNil(cc.Channels)), cc.ChannelsWhitelistMode,
		pq.Array(emptyNotNil(cc.Users)), cc.UsersWhitelistMode).Scan(&cc.LocalID)

	return errors.WithMessage(err, "insert custom command")
}

// Update rewrites the command in place
func Update(ctx context.Context, cc *CustomCommand) error {
	err := cc.Validate()
	if err != nil {
		return err
	}

	result, err := common.PQ.ExecContext(ctx, `UPDATE custom_commands SET
	name = $3, response = $4, required_permissions = $5,
	roles = $6, roles_whitelist_mode = $7,
	channels = $8, channels_whitelist_mode = $9,
	users = $10, users_whitelist_mode = $11
WHERE guild_id = $1 AND local_id = $2`,
		cc.GuildID, cc.LocalID, cc.Name, cc.Response, cc.RequiredPermissions,
		pq.Array(emptyNotNil(cc.Roles)), cc.RolesWhitelistMode,
		pq.Array(emptyNotNil(cc.Channels)), cc.ChannelsWhitelistMode,
		pq.Array(emptyNotNil(cc.Users)), cc.UsersWhitelistMode)
	if err != nil {
		return errors.WithMessage(err, "update custom command")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return common.ErrNotFound
	}

	return nil
}

func Delete(ctx context.Context, guildID, localID int64) error {
	result, err := common.PQ.ExecContext(ctx, `DELETE FROM custom_commands WHERE guild_id = $1 AND local_id = $2`,
		guildID, localID)
	if err != nil {
		return errors.WithMessage(err, "delete custom command")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return common.ErrNotFound
	}

	return nil
}

func scanCommand(row interface{ Scan(...interface{}) error }) (*CustomCommand, error) {
	cc := &CustomCommand{}
	err := row.Scan(&cc.GuildID, &cc.LocalID, &cc.Name, &cc.Response, &cc.RequiredPermissions,
		pq.Array(&cc.Roles), &cc.RolesWhitelistMode,
		pq.Array(&cc.Channels), &cc.ChannelsWhitelistMode,
		pq.Array(&cc.Users), &cc.UsersWhitelistMode)
	return cc, err
}

// Find returns the guild command with the exact name
func Find(ctx context.Context, guildID int64, name string) (*CustomCommand, error) {
	row := common.PQ.QueryRowContext(ctx, `SELECT `+ccColumns+` FROM custom_commands
WHERE guild_id = $1 AND name = $2`, guildID, name)

	cc, err := scanCommand(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.ErrNotFound
		}
		return nil, errors.WithMessage(err, "scan custom command")
	}

	return cc, nil
}

// ListGuild returns all commands of a guild ordered by local id
func ListGuild(ctx context.Context, guildID int64) ([]*CustomCommand, error) {
	rows, err := common.PQ.QueryContext(ctx, `SELECT `+ccColumns+` FROM custom_commands
WHERE guild_id = $1 ORDER BY local_id ASC`, guildID)
	if err != nil {
		return nil, errors.WithMessage(err, "query custom commands")
	}
	defer rows.Close()

	var result []*CustomCommand
	for rows.Next() {
		cc, err := scanCommand(rows)
		if err != nil {
			return nil, errors.WithMessage(err, "scan custom command row")
		}

		result = append(result, cc)
	}

	return result, rows.Err()
}

func emptyNotNil(s []int64) []int64 {
	if s == nil {
		return []int64{}
	}

	return s
}
