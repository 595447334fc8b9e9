// Package scheduledevents provides persistent one shot timers: schedule an
// event at a point in time and a registered handler gets invoked for it
// exactly once, unless the event was canceled first.
//
// Events are stored in postgres, the ones firing within the next hour are
// mirrored into a redis sorted set which a 1 second check loop polls.
package scheduledevents

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"reflect"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/jonas747/engage/common"
	"github.com/mediocregopher/radix/v3"
	"github.com/sirupsen/logrus"
	"github.com/volatiletech/null"
)

const soonSetKey = "scheduled_events_soon"

// soonThreshold is how far ahead of time events get mirrored into redis
const soonThreshold = time.Hour

type ScheduledEvent struct {
	ID         int64
	CreatedAt  time.Time
	TriggersAt time.Time

	GuildID   int64
	EventName string
	Data      []byte

	Processed bool
	Error     null.String
}

// HandlerFunc is invoked when an event fires. Returning retry causes the
// event to be re-attempted with backoff, a bounded number of times.
type HandlerFunc func(evt *ScheduledEvent, data interface{}) (retry bool, err error)

type registeredHandler struct {
	evtName    string
	dataFormat interface{}
	handler    HandlerFunc
}

type Plugin struct{}

func (p *Plugin) PluginInfo() *common.PluginInfo {
	return &common.PluginInfo{
		Name:     "Scheduled Events",
		SysName:  "scheduled_events",
		Category: common.PluginCategoryCore,
	}
}

var logger = common.GetPluginLogger(&Plugin{})

// Scheduler runs the check loop and owns the handler registry
type Scheduler struct {
	stop    chan *sync.WaitGroup
	running bool

	handlers map[string]*registeredHandler

	currentlyProcessingMU sync.Mutex
	currentlyProcessing   map[int64]bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		stop:                make(chan *sync.WaitGroup),
		handlers:            make(map[string]*registeredHandler),
		currentlyProcessing: make(map[int64]bool),
	}
}

func RegisterPlugin() *Scheduler {
	common.InitSchemas("scheduledevents", DBSchemas...)
	common.RegisterPlugin(&Plugin{})
	return NewScheduler()
}

// RegisterHandler registers a handler for the specified event name.
// dataFormat is optional and should not be a pointer, it should match the
// type passed into Schedule.
func (s *Scheduler) RegisterHandler(eventName string, dataFormat interface{}, handler HandlerFunc) {
	if s.running {
		panic("tried adding handler while the scheduler is running")
	}

	s.handlers[eventName] = &registeredHandler{
		evtName:    eventName,
		dataFormat: dataFormat,
		handler:    handler,
	}

	logger.Debug("Registered handler for ", eventName)
}

// Schedule persists a new event and returns its id
func (s *Scheduler) Schedule(ctx context.Context, eventName string, guildID int64, runAt time.Time, data interface{}) (int64, error) {
	serialized := []byte("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return 0, errors.WithMessage(err, "marshal")
		}

		serialized = b
	}

	const q = `INSERT INTO scheduled_events (created_at, triggers_at, guild_id, event_name, data, processed)
	VALUES ($1, $2, $3, $4, $5, false) RETURNING id`

	var id int64
	err := common.PQ.QueryRowContext(ctx, q, time.Now(), runAt, guildID, eventName, serialized).Scan(&id)
	if err != nil {
		return 0, errors.WithStackIf(err)
	}

	if time.Now().Add(soonThreshold).After(runAt) {
		err = flushEventToRedis(id, guildID, runAt)
	}

	return id, errors.WithMessage(err, "flush")
}

// Cancel removes a pending event, returning false if it was already
// processed or never existed (benign for callers racing the firing)
func (s *Scheduler) Cancel(ctx context.Context, id int64) (bool, error) {
	const q = `DELETE FROM scheduled_events WHERE id=$1 AND NOT processed RETURNING guild_id`

	var guildID int64
	err := common.PQ.QueryRowContext(ctx, q, id).Scan(&guildID)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}

		return false, errors.WithStackIf(err)
	}

	err = common.RedisPool.Do(radix.Cmd(nil, "ZREM", soonSetKey, fmt.Sprintf("%d:%d", id, guildID)))
	if err != nil {
		logger.WithError(err).Error("failed removing canceled event from redis")
	}

	return true, nil
}

func flushEventToRedis(id int64, guildID int64, runAt time.Time) error {
	member := fmt.Sprintf("%d:%d", id, guildID)
	return common.RedisPool.Do(radix.FlatCmd(nil, "ZADD", soonSetKey, runAt.UTC().Unix(), member))
}

// Run starts the check loop, call Stop to shut it down
func (s *Scheduler) Run() {
	s.running = true
	s.flushUpcomingEvents()

	checkTicker := time.NewTicker(time.Second)
	flushTicker := time.NewTicker(time.Minute * 10)
	defer checkTicker.Stop()
	defer flushTicker.Stop()

	for {
		select {
		case wg := <-s.stop:
			wg.Done()
			return
		case <-flushTicker.C:
			s.flushUpcomingEvents()
		case <-checkTicker.C:
			s.check()
		}
	}
}

func (s *Scheduler) Stop(wg *sync.WaitGroup) {
	s.stop <- wg
}

// flushUpcomingEvents mirrors events triggering within the soon threshold
// into the redis set, picking up events scheduled by other processes
func (s *Scheduler) flushUpcomingEvents() {
	const q = `SELECT id, guild_id, triggers_at FROM scheduled_events WHERE NOT processed AND triggers_at < $1`

	rows, err := common.PQ.Query(q, time.Now().Add(soonThreshold))
	if err != nil {
		logger.WithError(err).Error("failed querying upcoming events")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var id, guildID int64
		var triggersAt time.Time
		if err := rows.Scan(&id, &guildID, &triggersAt); err != nil {
			logger.WithError(err).Error("failed scanning upcoming event")
			return
		}

		if err := flushEventToRedis(id, guildID, triggersAt); err != nil {
			logger.WithError(err).Error("failed flushing event to redis")
		}
	}
}

func (s *Scheduler) check() {
	s.currentlyProcessingMU.Lock()
	defer s.currentlyProcessingMU.Unlock()

	var pairs []string
	err := common.RedisPool.Do(radix.FlatCmd(&pairs, "ZRANGEBYSCORE", soonSetKey, 0, time.Now().UTC().Unix()))
	if err != nil {
		logger.WithError(err).Error("failed checking for scheduled events to process")
		return
	}

	numHandling := 0
	for _, pair := range pairs {
		id, guildID, err := parseIDGuildIDPair(pair)
		if err != nil {
			logger.WithError(err).Error("failed parsing id guildID pair")
			continue
		}

		if s.currentlyProcessing[id] {
			continue
		}

		numHandling++
		s.currentlyProcessing[id] = true
		go s.processItem(id, guildID)
	}

	if numHandling > 0 {
		common.StatsdIncr("engage.scheduledevents.processed", nil, float64(numHandling))
		logger.Info("triggered ", numHandling, " scheduled events")
	}
}

var errBadPairLength = errors.NewPlain("id - guildID pair corrupted")

func parseIDGuildIDPair(pair string) (id int64, guildID int64, err error) {
	split := strings.SplitN(pair, ":", 2)
	if len(split) < 2 {
		err = errBadPairLength
		return
	}

	id, err = strconv.ParseInt(split[0], 10, 64)
	if err != nil {
		return
	}

	guildID, err = strconv.ParseInt(split[1], 10, 64)
	return
}

func (s *Scheduler) processItem(id int64, guildID int64) {
	l := logger.WithField("id", id).WithField("guild", guildID)

	defer func() {
		s.currentlyProcessingMU.Lock()
		delete(s.currentlyProcessing, id)
		s.currentlyProcessingMU.Unlock()
	}()

	item, err := s.findEvent(id)
	if err != nil {
		if err == sql.ErrNoRows {
			// canceled in the meantime
			s.markDoneID(id, guildID, nil)
		} else {
			l.WithError(err).Error("failed finding scheduled event")
		}
		return
	}

	if item.Processed {
		s.markDoneID(id, guildID, nil)
		return
	}

	handler, ok := s.handlers[item.EventName]
	if !ok {
		l.Error("unknown event: ", item.EventName)
		s.markDone(item, errors.NewPlain("no registered handler"))
		return
	}

	var decodedData interface{}
	if handler.dataFormat != nil {
		typ := reflect.TypeOf(handler.dataFormat)

		decodedData = reflect.New(typ).Interface()
		err := json.Unmarshal(item.Data, decodedData)
		if err != nil {
			l.WithError(err).Error("failed decoding event data")
			s.markDone(item, errors.WithMessage(err, "json"))
			return
		}
	}

	defer func() {
		if r := recover(); r != nil {
			stack := string(debug.Stack())
			l.Errorf("recovered from panic in scheduled event handler \n%v\n%v", r, stack)
		}
	}()

	retryDelay := time.Second
	for nRetry := 0; nRetry < 10; nRetry++ {
		var retry bool
		retry, err = handler.handler(item, decodedData)
		if err != nil {
			l.WithError(err).Error("handler returned an error")
		}

		if retry {
			l.WithError(err).Warn("retrying handling event")
			time.Sleep(retryDelay)
			retryDelay *= 2
			if retryDelay > time.Second*10 {
				retryDelay = time.Second * 10
			}
			continue
		}

		break
	}

	s.markDone(item, err)
}

func (s *Scheduler) findEvent(id int64) (*ScheduledEvent, error) {
	const q = `SELECT id, created_at, triggers_at, guild_id, event_name, data, processed, error
	FROM scheduled_events WHERE id=$1`

	evt := &ScheduledEvent{}
	err := common.PQ.QueryRow(q, id).Scan(&evt.ID, &evt.CreatedAt, &evt.TriggersAt,
		&evt.GuildID, &evt.EventName, &evt.Data, &evt.Processed, &evt.Error)
	return evt, err
}

func (s *Scheduler) markDone(item *ScheduledEvent, runErr error) {
	var updateErr null.String
	if runErr != nil {
		updateErr = null.StringFrom(runErr.Error())
	}

	s.markDoneQuery(item.ID, item.GuildID, updateErr)
}

func (s *Scheduler) markDoneID(id int64, guildID int64, runErr error) {
	var updateErr null.String
	if runErr != nil {
		updateErr = null.StringFrom(runErr.Error())
	}

	s.markDoneQuery(id, guildID, updateErr)
}

func (s *Scheduler) markDoneQuery(id int64, guildID int64, updateErr null.String) {
	const q = `UPDATE scheduled_events SET processed=true, error=$2 WHERE id=$1`
	_, err := common.PQ.Exec(q, id, updateErr)
	if err != nil {
		logger.WithError(err).Error("failed marking item as processed")
	}

	err = common.RedisPool.Do(radix.Cmd(nil, "ZREM", soonSetKey, fmt.Sprintf("%d:%d", id, guildID)))
	if err != nil {
		logger.WithError(err).Error("failed marking item as done in redis")
	}
}

// RunCleanupWorker deletes processed events once an hour
func (s *Scheduler) RunCleanupWorker() {
	t := time.NewTicker(time.Hour)
	for {
		result, err := common.PQ.Exec("DELETE FROM scheduled_events WHERE processed")
		if err != nil {
			logrus.WithError(err).Error("[scheduledevents] error running cleanup")
		} else {
			n, _ := result.RowsAffected()
			logger.Info("cleaned up ", n, " processed events")
		}

		<-t.C
	}
}
