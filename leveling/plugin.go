// Package leveling implements the XP and leveling system: qualifying
// activity earns a randomized XP roll, subject to per guild configuration
// (blacklists, cooldowns, multipliers), advancing users through an
// exponential level curve with role rewards and level up announcements.
package leveling

import (
	"github.com/jonas747/engage/common"
)

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Leveling",
		SysName:  "leveling",
		Category: common.PluginCategoryEngagement,
	}
}

var logger = common.GetPluginLogger(&Plugin{})

func RegisterPlugin() {
	common.InitSchemas("leveling", DBSchemas...)

	common.RegisterPlugin(&Plugin{})
}
