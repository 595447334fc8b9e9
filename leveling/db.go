package leveling

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
	"github.com/lib/pq"
)

// PostgresStore implements Store on top of common.PQ
type PostgresStore struct{}

func NewPostgresStore() *PostgresStore {
	return &PostgresStore{}
}

const configColumns = `guild_id, module_enabled, role_stack, base, factor, min_gain, max_gain,
cooldown_rate, cooldown_per_seconds, level_up_message, level_up_message_overrides, level_up_channel,
blacklisted_roles, blacklisted_channels, blacklisted_users,
level_roles, multiplier_roles, multiplier_channels, reset_on_leave`

func (p *PostgresStore) GetConfig(ctx context.Context, guildID int64) (*LevelConfig, error) {
	row := common.PQ.QueryRowContext(ctx, `SELECT `+configColumns+` FROM level_configs WHERE guild_id = $1`, guildID)

	conf := &LevelConfig{}
	var cooldownPerSeconds int
	var overrides, levelRoles, multiplierRoles, multiplierChannels []byte

	err := row.Scan(&conf.GuildID, &conf.ModuleEnabled, &conf.RoleStack, &conf.Base, &conf.Factor,
		&conf.MinGain, &conf.MaxGain, &conf.CooldownRate, &cooldownPerSeconds,
		&conf.LevelUpMessage, &overrides, &conf.LevelUpChannel,
		pq.Array(&conf.BlacklistedRoles), pq.Array(&conf.BlacklistedChannels), pq.Array(&conf.BlacklistedUsers),
		&levelRoles, &multiplierRoles, &multiplierChannels, &conf.ResetOnLeave)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, common.ErrNotFound
		}
		return nil, errors.WithMessage(err, "scan level config")
	}

	conf.CooldownPer = time.Duration(cooldownPerSeconds) * time.Second

	if err := decodeIntKeyed(overrides, &conf.LevelUpMessageOverrides); err != nil {
		return nil, err
	}
	if err := decodeIntKeyed(levelRoles, &conf.LevelRoles); err != nil {
		return nil, err
	}
	if err := decodeInt64Keyed(multiplierRoles, &conf.MultiplierRoles); err != nil {
		return nil, err
	}
	if err := decodeInt64Keyed(multiplierChannels, &conf.MultiplierChannels); err != nil {
		return nil, err
	}

	return conf, nil
}

func (p *PostgresStore) SetConfig(ctx context.Context, conf *LevelConfig) error {
	overrides, err := encodeIntKeyed(conf.LevelUpMessageOverrides)
	if err != nil {
		return err
	}
	levelRoles, err := encodeIntKeyed(conf.LevelRoles)
	if err != nil {
		return err
	}
	multiplierRoles, err := encodeInt64Keyed(conf.MultiplierRoles)
	if err != nil {
		return err
	}
	multiplierChannels, err := encodeInt64Keyed(conf.MultiplierChannels)
	if err != nil {
		return err
	}

	_, err = common.PQ.ExecContext(ctx, `INSERT INTO level_configs (`+configColumns+`)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
ON CONFLICT (guild_id) DO UPDATE SET
	module_enabled = $2, role_stack = $3, base = $4, factor = $5, min_gain = $6, max_gain = $7,
	cooldown_rate = $8, cooldown_per_seconds = $9, level_up_message = $10,
	level_up_message_overrides = $11, level_up_channel = $12,
	blacklisted_roles = $13, blacklisted_channels = $14, blacklisted_users = $15,
	level_roles = $16, multiplier_roles = $17, multiplier_channels = $18, reset_on_leave = $19`,
		conf.GuildID, conf.ModuleEnabled, conf.RoleStack, conf.Base, conf.Factor, conf.MinGain, conf.MaxGain,
		conf.CooldownRate, int(conf.CooldownPer/time.Second), conf.LevelUpMessage, overrides, conf.LevelUpChannel,
		pq.Array(emptyNotNil(conf.BlacklistedRoles)), pq.Array(emptyNotNil(conf.BlacklistedChannels)), pq.Array(emptyNotNil(conf.BlacklistedUsers)),
		levelRoles, multiplierRoles, multiplierChannels, conf.ResetOnLeave)

	return errors.WithMessage(err, "upsert level config")
}

func (p *PostgresStore) GetUserLevel(ctx context.Context, guildID, userID int64) (*UserLevel, error) {
	entry := &UserLevel{GuildID: guildID, UserID: userID}

	row := common.PQ.QueryRowContext(ctx, `SELECT level, xp FROM user_levels WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	err := row.Scan(&entry.Level, &entry.XP)
	if err != nil && err != sql.ErrNoRows {
		return nil, errors.WithMessage(err, "scan user level")
	}

	return entry, nil
}

func (p *PostgresStore) SetUserLevel(ctx context.Context, entry *UserLevel) error {
	_, err := common.PQ.ExecContext(ctx, `INSERT INTO user_levels (guild_id, user_id, level, xp)
VALUES ($1, $2, $3, $4)
ON CONFLICT (guild_id, user_id) DO UPDATE SET level = $3, xp = $4`,
		entry.GuildID, entry.UserID, entry.Level, entry.XP)

	return errors.WithMessage(err, "upsert user level")
}

func (p *PostgresStore) DeleteUserLevel(ctx context.Context, guildID, userID int64) error {
	result, err := common.PQ.ExecContext(ctx, `DELETE FROM user_levels WHERE guild_id = $1 AND user_id = $2`, guildID, userID)
	if err != nil {
		return errors.WithMessage(err, "delete user level")
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return common.ErrNotFound
	}

	return nil
}

func (p *PostgresStore) TopUsers(ctx context.Context, guildID int64, offset, limit int) ([]*UserLevel, error) {
	rows, err := common.PQ.QueryContext(ctx, `SELECT user_id, level, xp FROM user_levels
WHERE guild_id = $1 ORDER BY level DESC, xp DESC LIMIT $2 OFFSET $3`, guildID, limit, offset)
	if err != nil {
		return nil, errors.WithMessage(err, "query top users")
	}
	defer rows.Close()

	var result []*UserLevel
	for rows.Next() {
		entry := &UserLevel{GuildID: guildID}
		err = rows.Scan(&entry.UserID, &entry.Level, &entry.XP)
		if err != nil {
			return nil, errors.WithMessage(err, "scan top user")
		}

		result = append(result, entry)
	}

	return result, rows.Err()
}

// jsonb object keys are always strings, the int keyed maps go through a
// string keyed intermediate

func encodeIntKeyed[V any](m map[int]V) ([]byte, error) {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strconv.Itoa(k)] = v
	}

	serialized, err := json.Marshal(out)
	return serialized, errors.WithMessage(err, "marshal int keyed map")
}

func decodeIntKeyed[V any](raw []byte, dst *map[int]V) error {
	intermediate := make(map[string]V)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &intermediate); err != nil {
			return errors.WithMessage(err, "unmarshal int keyed map")
		}
	}

	*dst = make(map[int]V, len(intermediate))
	for k, v := range intermediate {
		parsed, err := strconv.Atoi(k)
		if err != nil {
			return errors.WithMessage(err, "parse int map key")
		}

		(*dst)[parsed] = v
	}

	return nil
}

func encodeInt64Keyed[V any](m map[int64]V) ([]byte, error) {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[strconv.FormatInt(k, 10)] = v
	}

	serialized, err := json.Marshal(out)
	return serialized, errors.WithMessage(err, "marshal int64 keyed map")
}

func decodeInt64Keyed[V any](raw []byte, dst *map[int64]V) error {
	intermediate := make(map[string]V)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &intermediate); err != nil {
			return errors.WithMessage(err, "unmarshal int64 keyed map")
		}
	}

	*dst = make(map[int64]V, len(intermediate))
	for k, v := range intermediate {
		parsed, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return errors.WithMessage(err, "parse int64 map key")
		}

		(*dst)[parsed] = v
	}

	return nil
}

func emptyNotNil(s []int64) []int64 {
	if s == nil {
		return []int64{}
	}

	return s
}
