package giveaway

import (
	"github.com/jonas747/engage/common"
)

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Giveaway",
		SysName:  "giveaway",
		Category: common.PluginCategoryEngagement,
	}
}

var logger = common.GetPluginLogger(&Plugin{})

func RegisterPlugin() {
	common.InitSchemas("giveaway", DBSchemas...)

	common.RegisterPlugin(&Plugin{})
}
