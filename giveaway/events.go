package giveaway

import (
	"context"

	"github.com/jonas747/engage/common/scheduledevents"
)

// RegisterHandlers hooks the resolution handler into the scheduler, call it
// before the scheduler starts running. The event id doubles as the giveaway
// id so the event data carries nothing.
func (e *Engine) RegisterHandlers(s *scheduledevents.Scheduler) {
	s.RegisterHandler(EventResolve, ResolveEventData{}, func(evt *scheduledevents.ScheduledEvent, data interface{}) (bool, error) {
		return e.HandleTimerFire(context.Background(), evt.ID)
	})
}
