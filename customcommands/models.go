package customcommands

import (
	"github.com/jonas747/engage/common"
)

// CustomCommand is a guild defined command. The roles, channels and users
// lists are interpreted as whitelists or blacklists per their mode flag.
type CustomCommand struct {
	GuildID int64
	LocalID int64

	Name     string
	Response string

	RequiredPermissions int64

	Roles              []int64
	RolesWhitelistMode bool

	Channels              []int64
	ChannelsWhitelistMode bool

	Users              []int64
	UsersWhitelistMode bool
}

const (
	MaxNameLength     = 50
	MaxResponseLength = 2000
)

func (cc *CustomCommand) Validate() error {
	if cc.Name == "" {
		return common.NewValidationError("name", "cannot be empty")
	}

	if len(cc.Name) > MaxNameLength {
		return common.NewValidationError("name", "cannot be longer than %d characters", MaxNameLength)
	}

	if cc.Response == "" {
		return common.NewValidationError("response", "cannot be empty")
	}

	if len(cc.Response) > MaxResponseLength {
		return common.NewValidationError("response", "cannot be longer than %d characters", MaxResponseLength)
	}

	return nil
}

// RunsInChannel returns whether the command is usable in the channel
func (cc *CustomCommand) RunsInChannel(channelID int64) bool {
	for _, v := range cc.Channels {
		if v == channelID {
			if cc.ChannelsWhitelistMode {
				return true
			}

			// command is restricted in this channel
			return false
		}
	}

	// not found
	if cc.ChannelsWhitelistMode {
		return false
	}

	// blacklist mode, and not blacklisted
	return true
}

// RunsForUser returns whether the user passes the role and user toggles and
// holds the required permissions
func (cc *CustomCommand) RunsForUser(userID int64, roleIDs []int64, permissions int64) bool {
	if cc.RequiredPermissions != 0 && permissions&cc.RequiredPermissions != cc.RequiredPermissions {
		return false
	}

	for _, v := range cc.Users {
		if v == userID {
			if cc.UsersWhitelistMode {
				return cc.runsForRoles(roleIDs)
			}

			return false
		}
	}

	if cc.UsersWhitelistMode && len(cc.Users) > 0 {
		return false
	}

	return cc.runsForRoles(roleIDs)
}

func (cc *CustomCommand) runsForRoles(roleIDs []int64) bool {
	if len(cc.Roles) == 0 {
		// in whitelist mode an empty list means no one can use it,
		// in blacklist mode no one is blocked
		return !cc.RolesWhitelistMode
	}

	if common.ContainsInt64SliceOneOf(cc.Roles, roleIDs) {
		return cc.RolesWhitelistMode
	}

	return !cc.RolesWhitelistMode
}
