package triggers

import (
	"github.com/jonas747/engage/common"
)

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Triggers",
		SysName:  "triggers",
		Category: common.PluginCategoryEngagement,
	}
}

var logger = common.GetPluginLogger(&Plugin{})

func RegisterPlugin() {
	common.InitSchemas("triggers", DBSchemas...)

	common.RegisterPlugin(&Plugin{})
}
