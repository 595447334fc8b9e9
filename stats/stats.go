package stats

import (
	"context"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
)

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Activity Stats",
		SysName:  "stats",
		Category: common.PluginCategoryMisc,
	}
}

var logger = common.GetPluginLogger(&Plugin{})

func RegisterPlugin() {
	common.InitSchemas("stats", DBSchemas...)

	common.RegisterPlugin(&Plugin{})
}

var DBSchemas = []string{`
CREATE TABLE IF NOT EXISTS activity_stats_hourly (
	guild_id BIGINT NOT NULL,
	channel_id BIGINT NOT NULL,
	t TIMESTAMP WITH TIME ZONE NOT NULL,

	count BIGINT NOT NULL,

	PRIMARY KEY(guild_id, channel_id, t)
);
`, `
CREATE INDEX IF NOT EXISTS activity_stats_hourly_guild_t_idx ON activity_stats_hourly(guild_id, t);
`}

// ChartPeriod is one point of a guild activity chart
type ChartPeriod struct {
	T            time.Time `json:"t"`
	MessageCount int64     `json:"message_count"`
}

// RetrieveChartData returns daily message totals for the guild over the last
// n days
func RetrieveChartData(ctx context.Context, guildID int64, days int) ([]*ChartPeriod, error) {
	rows, err := common.PQ.QueryContext(ctx, `SELECT date_trunc('day', t) AS day, SUM(count)
FROM activity_stats_hourly
WHERE guild_id = $1 AND t > $2
GROUP BY day ORDER BY day ASC`, guildID, time.Now().AddDate(0, 0, -days))
	if err != nil {
		return nil, errors.WithMessage(err, "query chart data")
	}
	defer rows.Close()

	var result []*ChartPeriod
	for rows.Next() {
		period := &ChartPeriod{}
		err = rows.Scan(&period.T, &period.MessageCount)
		if err != nil {
			return nil, errors.WithMessage(err, "scan chart period")
		}

		result = append(result, period)
	}

	return result, rows.Err()
}
