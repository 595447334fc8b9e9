package leveling

import (
	"math"
	"time"

	"github.com/jonas747/engage/common"
)

// ChannelPolicy controls where level up announcements go. The values 0-2
// have special meanings, anything above is an explicit channel id.
type ChannelPolicy int64

const (
	ChannelPolicySuppress ChannelPolicy = 0
	ChannelPolicySource   ChannelPolicy = 1
	ChannelPolicyDM       ChannelPolicy = 2
)

// Resolve returns the message target for a level up that happened in
// sourceChannelID, ok is false when announcements are suppressed
func (p ChannelPolicy) Resolve(sourceChannelID int64, userID int64) (target MessageTarget, ok bool) {
	switch p {
	case ChannelPolicySuppress:
		return MessageTarget{}, false
	case ChannelPolicySource:
		return MessageTarget{ChannelID: sourceChannelID}, true
	case ChannelPolicyDM:
		return MessageTarget{UserID: userID}, true
	default:
		return MessageTarget{ChannelID: int64(p)}, true
	}
}

// MessageTarget is either a guild channel or a user DM, exactly one id is set
type MessageTarget struct {
	ChannelID int64
	UserID    int64
}

const DefaultLevelUpMessage = "Congratulations {user.mention}, you advanced to level {level}!"

// LevelConfig is the per guild leveling configuration. All of it is
// validated when written, the engine assumes a valid config at activity time.
type LevelConfig struct {
	GuildID int64

	ModuleEnabled bool
	RoleStack     bool

	Base    int64
	Factor  float64
	MinGain int
	MaxGain int

	CooldownRate int
	CooldownPer  time.Duration

	LevelUpMessage          string
	LevelUpMessageOverrides map[int]string
	LevelUpChannel          ChannelPolicy

	BlacklistedRoles    []int64
	BlacklistedChannels []int64
	BlacklistedUsers    []int64

	LevelRoles         map[int]int64
	MultiplierRoles    map[int64]float64
	MultiplierChannels map[int64]float64

	ResetOnLeave bool
}

// DefaultConfig returns the configuration a guild starts out with,
// leveling itself starts disabled
func DefaultConfig(guildID int64) *LevelConfig {
	return &LevelConfig{
		GuildID: guildID,

		ModuleEnabled: false,
		RoleStack:     true,

		Base:    100,
		Factor:  1.25,
		MinGain: 15,
		MaxGain: 25,

		CooldownRate: 1,
		CooldownPer:  time.Minute,

		LevelUpMessage: DefaultLevelUpMessage,
		LevelUpChannel: ChannelPolicySource,

		LevelUpMessageOverrides: make(map[int]string),
		LevelRoles:              make(map[int]int64),
		MultiplierRoles:         make(map[int64]float64),
		MultiplierChannels:      make(map[int64]float64),
	}
}

// Validate checks the config invariants, returning a *common.ValidationError
// describing the first violation found
func (c *LevelConfig) Validate() error {
	if c.Base < 1 {
		return common.NewValidationError("base", "has to be at least 1")
	}

	if c.Factor <= 1.0 {
		return common.NewValidationError("factor", "has to be above 1.0, the level curve never diverges otherwise")
	}

	if c.MinGain < 1 {
		return common.NewValidationError("min_gain", "has to be at least 1")
	}

	if c.MaxGain < c.MinGain {
		return common.NewValidationError("max_gain", "has to be at least min_gain (%d)", c.MinGain)
	}

	if c.CooldownRate < 1 {
		return common.NewValidationError("cooldown_rate", "has to be at least 1")
	}

	if c.CooldownPer < time.Second {
		return common.NewValidationError("cooldown_per", "has to be at least a second")
	}

	for level, roleID := range c.LevelRoles {
		if level < 1 {
			return common.NewValidationError("level_roles", "level %d is not a reachable reward level", level)
		}
		if roleID <= 0 {
			return common.NewValidationError("level_roles", "invalid role id for level %d", level)
		}
	}

	for roleID, multiplier := range c.MultiplierRoles {
		if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
			return common.NewValidationError("multiplier_roles", "multiplier for role %d has to be a positive number", roleID)
		}
	}

	for channelID, multiplier := range c.MultiplierChannels {
		if multiplier <= 0 || math.IsNaN(multiplier) || math.IsInf(multiplier, 0) {
			return common.NewValidationError("multiplier_channels", "multiplier for channel %d has to be a positive number", channelID)
		}
	}

	for level := range c.LevelUpMessageOverrides {
		if level < 1 {
			return common.NewValidationError("level_up_message_overrides", "level %d is not a reachable level", level)
		}
	}

	return nil
}

// LevelUpMessageFor returns the message template for reaching the level,
// either the per level override or the default one
func (c *LevelConfig) LevelUpMessageFor(level int) string {
	if override, ok := c.LevelUpMessageOverrides[level]; ok {
		return override
	}

	return c.LevelUpMessage
}
