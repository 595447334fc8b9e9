package scheduledevents

import (
	"context"
	"encoding/json"
	"reflect"
	"sync"
	"time"

	"emperror.dev/errors"
	"github.com/bwmarrin/snowflake"
)

// MemoryScheduler is a non persistent scheduler with the same firing
// semantics as Scheduler, used by tests and by dry-run mode
type MemoryScheduler struct {
	mu       sync.Mutex
	handlers map[string]*registeredHandler
	pending  map[int64]*memoryEvent
	node     *snowflake.Node
}

type memoryEvent struct {
	evt   *ScheduledEvent
	timer *time.Timer
}

func NewMemoryScheduler() *MemoryScheduler {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}

	return &MemoryScheduler{
		handlers: make(map[string]*registeredHandler),
		pending:  make(map[int64]*memoryEvent),
		node:     node,
	}
}

func (s *MemoryScheduler) RegisterHandler(eventName string, dataFormat interface{}, handler HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.handlers[eventName] = &registeredHandler{
		evtName:    eventName,
		dataFormat: dataFormat,
		handler:    handler,
	}
}

func (s *MemoryScheduler) Schedule(ctx context.Context, eventName string, guildID int64, runAt time.Time, data interface{}) (int64, error) {
	serialized := []byte("{}")
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return 0, errors.WithMessage(err, "marshal")
		}

		serialized = b
	}

	id := s.node.Generate().Int64()
	evt := &ScheduledEvent{
		ID:         id,
		CreatedAt:  time.Now(),
		TriggersAt: runAt,
		GuildID:    guildID,
		EventName:  eventName,
		Data:       serialized,
	}

	s.mu.Lock()
	s.pending[id] = &memoryEvent{
		evt:   evt,
		timer: time.AfterFunc(time.Until(runAt), func() { s.fire(id) }),
	}
	s.mu.Unlock()

	return id, nil
}

func (s *MemoryScheduler) Cancel(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	pending, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
		pending.timer.Stop()
	}
	s.mu.Unlock()

	return ok, nil
}

// fire claims the event before running the handler so that a racing Cancel
// can never result in both firing and cancellation succeeding
func (s *MemoryScheduler) fire(id int64) {
	s.mu.Lock()
	pending, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	handler := (*registeredHandler)(nil)
	if ok {
		handler = s.handlers[pending.evt.EventName]
	}
	s.mu.Unlock()

	if !ok {
		// lost the race against Cancel
		return
	}

	if handler == nil {
		logger.Error("unknown event: ", pending.evt.EventName)
		return
	}

	var decodedData interface{}
	if handler.dataFormat != nil {
		typ := reflect.TypeOf(handler.dataFormat)

		decodedData = reflect.New(typ).Interface()
		if err := json.Unmarshal(pending.evt.Data, decodedData); err != nil {
			logger.WithError(err).Error("failed decoding event data")
			return
		}
	}

	if _, err := handler.handler(pending.evt, decodedData); err != nil {
		logger.WithError(err).Error("handler returned an error")
	}
}
