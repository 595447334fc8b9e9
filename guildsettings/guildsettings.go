// Package guildsettings holds the small per guild settings record shared by
// the other plugins: command prefix and the role allowed to host giveaways.
package guildsettings

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
	"github.com/karlseguin/ccache"
)

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Guild Settings",
		SysName:  "guildsettings",
		Category: common.PluginCategoryCore,
	}
}

var logger = common.GetPluginLogger(&Plugin{})

func RegisterPlugin() {
	common.InitSchemas("guildsettings", DBSchemas...)
	common.RegisterPlugin(&Plugin{})
}

const DefaultPrefix = "-"

type GuildSettings struct {
	GuildID        int64
	Prefix         string
	GiveawayRoleID int64
}

// Store is a keyed guild settings store with a short lived local cache,
// settings are created with their defaults the first time a guild is touched
type Store struct {
	cache *ccache.Cache
}

func NewStore() *Store {
	return &Store{
		cache: ccache.New(ccache.Configure().MaxSize(10000)),
	}
}

func cacheKey(guildID int64) string {
	return "guild_settings:" + strconv.FormatInt(guildID, 10)
}

// Get returns the settings for the guild, lazily creating the row
func (s *Store) Get(ctx context.Context, guildID int64) (*GuildSettings, error) {
	if item := s.cache.Get(cacheKey(guildID)); item != nil && !item.Expired() {
		return item.Value().(*GuildSettings), nil
	}

	settings, err := s.fetch(ctx, guildID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKey(guildID), settings, time.Minute)
	return settings, nil
}

func (s *Store) fetch(ctx context.Context, guildID int64) (*GuildSettings, error) {
	const q = `INSERT INTO guild_configs (guild_id, prefix, giveaway_role_id)
	VALUES ($1, $2, 0)
	ON CONFLICT (guild_id) DO UPDATE SET guild_id = $1
	RETURNING guild_id, prefix, giveaway_role_id`

	settings := &GuildSettings{}
	err := common.PQ.QueryRowContext(ctx, q, guildID, DefaultPrefix).
		Scan(&settings.GuildID, &settings.Prefix, &settings.GiveawayRoleID)
	if err != nil {
		return nil, errors.WithStackIf(err)
	}

	return settings, nil
}

// Update writes the settings row and invalidates the cache entry
func (s *Store) Update(ctx context.Context, settings *GuildSettings) error {
	if settings.Prefix == "" {
		return common.NewValidationError("prefix", "cannot be empty")
	}

	const q = `UPDATE guild_configs SET prefix=$2, giveaway_role_id=$3 WHERE guild_id=$1`
	result, err := common.PQ.ExecContext(ctx, q, settings.GuildID, settings.Prefix, settings.GiveawayRoleID)
	if err != nil {
		return errors.WithStackIf(err)
	}

	if rows, _ := result.RowsAffected(); rows == 0 {
		return common.ErrNotFound
	}

	s.Invalidate(settings.GuildID)
	return nil
}

// Invalidate drops the local cache entry for the guild
func (s *Store) Invalidate(guildID int64) {
	s.cache.Delete(cacheKey(guildID))
}

// Delete removes the guilds settings, called when the bot leaves a guild
func (s *Store) Delete(ctx context.Context, guildID int64) error {
	_, err := common.PQ.ExecContext(ctx, "DELETE FROM guild_configs WHERE guild_id=$1", guildID)
	if err != nil && err != sql.ErrNoRows {
		return errors.WithStackIf(err)
	}

	s.Invalidate(guildID)
	return nil
}
