package leveling

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
	"github.com/jonas747/engage/common/keylock"
)

// Dispatcher delivers level up announcements, the bot layer implements it on
// top of the discord session.
type Dispatcher interface {
	LevelUpMessage(ctx context.Context, guildID int64, target MessageTarget, message string) error
}

// RoleManager grants and revokes guild roles for reward handling
type RoleManager interface {
	AddRole(ctx context.Context, guildID, userID, roleID int64) error
	RemoveRole(ctx context.Context, guildID, userID, roleID int64) error
}

type memberKey struct {
	GuildID int64
	UserID  int64
}

// Engine drives experience accrual and reward handling. Activity for the
// same member is serialized through the key lock, different members proceed
// concurrently.
type Engine struct {
	store     Store
	dispatch  Dispatcher
	roles     RoleManager
	cooldowns *cooldownTracker
	locks     *keylock.KeyLock[memberKey]
}

func NewEngine(store Store, dispatch Dispatcher, roles RoleManager) *Engine {
	return &Engine{
		store:     store,
		dispatch:  dispatch,
		roles:     roles,
		cooldowns: newCooldownTracker(),
		locks:     keylock.NewKeyLock[memberKey](),
	}
}

// Activity is one qualifying guild message
type Activity struct {
	GuildID   int64
	ChannelID int64
	UserID    int64
	RoleIDs   []int64
	Bot       bool
}

// RecordActivity processes a message for experience gain. Ineligible or
// cooldown gated messages are silent no-ops, only storage and delivery
// failures surface as errors.
func (e *Engine) RecordActivity(ctx context.Context, activity *Activity) error {
	if activity.Bot {
		return nil
	}

	conf, err := e.store.GetConfig(ctx, activity.GuildID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return errors.WithMessage(err, "get config")
	}

	if !conf.ModuleEnabled {
		return nil
	}

	if e.blacklisted(conf, activity) {
		return nil
	}

	key := memberKey{GuildID: activity.GuildID, UserID: activity.UserID}
	handle := e.locks.Lock(key, 10*time.Second, time.Minute)
	if handle == -1 {
		return errors.New("timed out waiting for member lock")
	}
	defer e.locks.Unlock(key, handle)

	if !e.cooldowns.Allow(activity.GuildID, activity.UserID, conf.CooldownRate, conf.CooldownPer, time.Now()) {
		return nil
	}

	gain := e.rollGain(conf, activity)

	entry, err := e.store.GetUserLevel(ctx, activity.GuildID, activity.UserID)
	if err != nil {
		return errors.WithMessage(err, "get user level")
	}

	entry.XP += gain

	var climbed []int
	for entry.XP >= XPForLevel(conf.Base, conf.Factor, entry.Level) {
		entry.XP -= XPForLevel(conf.Base, conf.Factor, entry.Level)
		entry.Level++
		climbed = append(climbed, entry.Level)
	}

	// persist before any announcements or role changes, a delivery failure
	// must not lose earned experience
	err = e.store.SetUserLevel(ctx, entry)
	if err != nil {
		return errors.WithMessage(err, "set user level")
	}

	if len(climbed) == 0 {
		return nil
	}

	common.StatsdIncr("engage.leveling.levelups", []string{fmt.Sprintf("guild:%d", activity.GuildID)}, 1)

	err = e.announceLevels(ctx, conf, activity, climbed)
	if err != nil {
		return err
	}

	return e.applyLevelRoles(ctx, conf, activity, climbed)
}

func (e *Engine) blacklisted(conf *LevelConfig, activity *Activity) bool {
	if common.ContainsInt64Slice(conf.BlacklistedUsers, activity.UserID) {
		return true
	}

	if common.ContainsInt64Slice(conf.BlacklistedChannels, activity.ChannelID) {
		return true
	}

	return common.ContainsInt64SliceOneOf(conf.BlacklistedRoles, activity.RoleIDs)
}

func (e *Engine) rollGain(conf *LevelConfig, activity *Activity) int64 {
	roll := conf.MinGain
	if conf.MaxGain > conf.MinGain {
		roll += rand.Intn(conf.MaxGain - conf.MinGain + 1)
	}

	multiplier := float64(1)
	for _, roleID := range activity.RoleIDs {
		if m, ok := conf.MultiplierRoles[roleID]; ok {
			multiplier *= m
		}
	}

	if m, ok := conf.MultiplierChannels[activity.ChannelID]; ok {
		multiplier *= m
	}

	gain := int64(math.Round(float64(roll) * multiplier))
	if gain < 1 {
		gain = 1
	}

	return gain
}

func (e *Engine) announceLevels(ctx context.Context, conf *LevelConfig, activity *Activity, climbed []int) error {
	target, ok := conf.LevelUpChannel.Resolve(activity.ChannelID, activity.UserID)
	if !ok {
		return nil
	}

	for _, level := range climbed {
		message := replaceLevelUpTokens(conf.LevelUpMessageFor(level), activity.UserID, level)
		err := e.dispatch.LevelUpMessage(ctx, activity.GuildID, target, message)
		if err != nil {
			return errors.WithMessage(err, "level up message")
		}
	}

	return nil
}

// applyLevelRoles grants the reward roles for the crossed levels in ascending
// order. Without role stacking only the highest reward the member is entitled
// to stays, lower ones are revoked including any held from before.
func (e *Engine) applyLevelRoles(ctx context.Context, conf *LevelConfig, activity *Activity, climbed []int) error {
	var granted []int64
	for _, level := range climbed {
		roleID, ok := conf.LevelRoles[level]
		if !ok {
			continue
		}

		err := e.roles.AddRole(ctx, activity.GuildID, activity.UserID, roleID)
		if err != nil {
			return errors.WithMessage(err, "add level role")
		}

		granted = append(granted, roleID)
	}

	if conf.RoleStack || len(granted) == 0 {
		return nil
	}

	keep := highestAttainedRole(conf, climbed[len(climbed)-1])

	held := make([]int64, 0, len(activity.RoleIDs)+len(granted))
	held = append(held, activity.RoleIDs...)
	held = append(held, granted...)

	removed := make(map[int64]bool)
	for _, roleID := range held {
		if roleID == keep || removed[roleID] {
			continue
		}

		if !isLevelRole(conf, roleID) {
			continue
		}

		err := e.roles.RemoveRole(ctx, activity.GuildID, activity.UserID, roleID)
		if err != nil {
			return errors.WithMessage(err, "remove superseded level role")
		}

		removed[roleID] = true
	}

	return nil
}

// highestAttainedRole returns the reward role for the highest configured
// level at or below the members level
func highestAttainedRole(conf *LevelConfig, memberLevel int) int64 {
	levels := make([]int, 0, len(conf.LevelRoles))
	for level := range conf.LevelRoles {
		levels = append(levels, level)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(levels)))

	for _, level := range levels {
		if level <= memberLevel {
			return conf.LevelRoles[level]
		}
	}

	return 0
}

func isLevelRole(conf *LevelConfig, roleID int64) bool {
	for _, v := range conf.LevelRoles {
		if v == roleID {
			return true
		}
	}

	return false
}

// RankedUser is a leaderboard row
type RankedUser struct {
	Rank int
	*UserLevel
}

// Leaderboard returns a page of the guild ranking ordered by level then xp,
// rank numbers continue across pages
func (e *Engine) Leaderboard(ctx context.Context, guildID int64, offset, limit int) ([]*RankedUser, error) {
	entries, err := e.store.TopUsers(ctx, guildID, offset, limit)
	if err != nil {
		return nil, errors.WithMessage(err, "top users")
	}

	result := make([]*RankedUser, len(entries))
	for i, entry := range entries {
		result[i] = &RankedUser{Rank: offset + i + 1, UserLevel: entry}
	}

	return result, nil
}

// SetConfig validates and persists a guild configuration
func (e *Engine) SetConfig(ctx context.Context, conf *LevelConfig) error {
	err := conf.Validate()
	if err != nil {
		return err
	}

	return e.store.SetConfig(ctx, conf)
}

// ResetGuildMember wipes the progress of a member, used when they leave a
// guild with reset_on_leave enabled
func (e *Engine) ResetGuildMember(ctx context.Context, guildID, userID int64) error {
	conf, err := e.store.GetConfig(ctx, guildID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		return err
	}

	if !conf.ResetOnLeave {
		return nil
	}

	err = e.store.DeleteUserLevel(ctx, guildID, userID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}

	return nil
}

func replaceLevelUpTokens(template string, userID int64, level int) string {
	replacer := strings.NewReplacer(
		"{user.mention}", fmt.Sprintf("<@%d>", userID),
		"{user.id}", strconv.FormatInt(userID, 10),
		"{level}", strconv.Itoa(level),
	)

	return replacer.Replace(template)
}
