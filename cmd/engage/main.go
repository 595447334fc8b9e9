package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jonas747/engage/common"
	"github.com/jonas747/engage/common/guildlog"
	"github.com/jonas747/engage/common/scheduledevents"
	"github.com/jonas747/engage/customcommands"
	"github.com/jonas747/engage/giveaway"
	"github.com/jonas747/engage/guildsettings"
	"github.com/jonas747/engage/leveling"
	"github.com/jonas747/engage/stats"
	"github.com/jonas747/engage/triggers"
)

// The engines below are the integration surface for a gateway consumer:
// it feeds guild messages into levelingEngine.RecordActivity and
// statsCollector.MsgEvtChan, giveaway entries into giveawayEngine, and reads
// prefixes from settingsStore. The scheduler runs here either way so pending
// timers keep firing.
var (
	flagLogJSON    bool
	flagRunCleanup bool

	statsCollector  *stats.Collector
	levelingEngine  *leveling.Engine
	giveawayEngine  *giveaway.Engine
	settingsStore   *guildsettings.Store
	schedulerHandle *scheduledevents.Scheduler
)

func init() {
	flag.BoolVar(&flagLogJSON, "logjson", false, "Log in json format")
	flag.BoolVar(&flagRunCleanup, "cleanup", true, "Run the scheduled events cleanup worker")
	flag.Parse()
}

func main() {
	if flagLogJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}

	logrus.Info("engage is initializing, version ", common.VERSION)

	err := common.Init()
	if err != nil {
		logrus.WithError(err).Fatal("failed initializing core")
	}

	// plugin setup
	schedulerHandle = scheduledevents.RegisterPlugin()
	guildsettings.RegisterPlugin()
	leveling.RegisterPlugin()
	giveaway.RegisterPlugin()
	customcommands.RegisterPlugin()
	triggers.RegisterPlugin()
	stats.RegisterPlugin()
	guildlog.InitSchema()

	settingsStore = guildsettings.NewStore()

	auditSink := &auditDispatcher{}
	levelingEngine = leveling.NewEngine(leveling.NewPostgresStore(), auditSink, auditSink)
	giveawayEngine = giveaway.NewEngine(giveaway.NewPostgresStore(), schedulerHandle, auditSink)

	giveawayEngine.RegisterHandlers(schedulerHandle)

	statsCollector = stats.NewCollector(logrus.WithField("p", "stats"), time.Minute)

	go schedulerHandle.Run()
	if flagRunCleanup {
		go schedulerHandle.RunCleanupWorker()
	}

	listenSignal()
}

func listenSignal() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	<-c

	logrus.Info("shutting down...")

	var wg sync.WaitGroup
	wg.Add(1)
	schedulerHandle.Stop(&wg)
	wg.Wait()

	logrus.Info("bye")
}

// auditDispatcher records engine events in the guild audit trail, a
// presentation layer consuming the same interfaces renders them to chat
type auditDispatcher struct{}

var _ leveling.Dispatcher = (*auditDispatcher)(nil)
var _ leveling.RoleManager = (*auditDispatcher)(nil)
var _ giveaway.Dispatcher = (*auditDispatcher)(nil)

func (a *auditDispatcher) LevelUpMessage(ctx context.Context, guildID int64, target leveling.MessageTarget, message string) error {
	return guildlog.Add(ctx, &guildlog.Entry{
		GuildID:   guildID,
		Plugin:    "leveling",
		UserID:    target.UserID,
		ChannelID: target.ChannelID,
		Type:      guildlog.LogTypeLevelReward,
		Action:    message,
	})
}

func (a *auditDispatcher) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	return guildlog.Add(ctx, &guildlog.Entry{
		GuildID: guildID,
		Plugin:  "leveling",
		UserID:  userID,
		Type:    guildlog.LogTypeLevelReward,
		Action:  fmt.Sprintf("granted reward role %d", roleID),
	})
}

func (a *auditDispatcher) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	return guildlog.Add(ctx, &guildlog.Entry{
		GuildID: guildID,
		Plugin:  "leveling",
		UserID:  userID,
		Type:    guildlog.LogTypeLevelReward,
		Action:  fmt.Sprintf("revoked reward role %d", roleID),
	})
}

func (a *auditDispatcher) GiveawayResolved(ctx context.Context, g *giveaway.Giveaway, winners []int64) error {
	return guildlog.Add(ctx, &guildlog.Entry{
		GuildID:   g.GuildID,
		Plugin:    "giveaway",
		UserID:    g.HostID,
		ChannelID: g.ChannelID,
		Type:      guildlog.LogTypeGiveaway,
		Action:    fmt.Sprintf("giveaway for %q resolved with %d winners of %d requested", g.Prize, len(winners), g.NumWinners),
	})
}

func (a *auditDispatcher) GiveawayCanceled(ctx context.Context, g *giveaway.Giveaway) error {
	return guildlog.Add(ctx, &guildlog.Entry{
		GuildID:   g.GuildID,
		Plugin:    "giveaway",
		UserID:    g.HostID,
		ChannelID: g.ChannelID,
		Type:      guildlog.LogTypeGiveaway,
		Action:    fmt.Sprintf("giveaway for %q canceled", g.Prize),
	})
}
