package scheduledevents

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testEvtData struct {
	Value int64 `json:"value"`
}

func TestMemorySchedulerFiresOnce(t *testing.T) {
	s := NewMemoryScheduler()

	var fired int64
	var gotValue int64
	done := make(chan struct{})

	s.RegisterHandler("test_evt", testEvtData{}, func(evt *ScheduledEvent, data interface{}) (bool, error) {
		atomic.AddInt64(&fired, 1)
		gotValue = data.(*testEvtData).Value
		close(done)
		return false, nil
	})

	_, err := s.Schedule(context.Background(), "test_evt", 1, time.Now().Add(time.Millisecond*20), &testEvtData{Value: 42})
	if err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(time.Second * 5):
		t.Fatal("event did not fire")
	}

	time.Sleep(time.Millisecond * 100)
	if n := atomic.LoadInt64(&fired); n != 1 {
		t.Error("event fired ", n, " times")
	}

	if gotValue != 42 {
		t.Error("wrong data roundtripped: ", gotValue)
	}
}

func TestMemorySchedulerNotBeforeTime(t *testing.T) {
	s := NewMemoryScheduler()

	started := time.Now()
	var firedAfter time.Duration
	done := make(chan struct{})

	s.RegisterHandler("test_evt", nil, func(evt *ScheduledEvent, data interface{}) (bool, error) {
		firedAfter = time.Since(started)
		close(done)
		return false, nil
	})

	_, err := s.Schedule(context.Background(), "test_evt", 1, started.Add(time.Millisecond*100), nil)
	if err != nil {
		t.Fatal(err)
	}

	<-done
	if firedAfter < time.Millisecond*100 {
		t.Error("fired early, after ", firedAfter)
	}
}

func TestMemorySchedulerCancel(t *testing.T) {
	s := NewMemoryScheduler()

	var fired int64
	s.RegisterHandler("test_evt", nil, func(evt *ScheduledEvent, data interface{}) (bool, error) {
		atomic.AddInt64(&fired, 1)
		return false, nil
	})

	id, err := s.Schedule(context.Background(), "test_evt", 1, time.Now().Add(time.Millisecond*50), nil)
	if err != nil {
		t.Fatal(err)
	}

	canceled, err := s.Cancel(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if !canceled {
		t.Fatal("cancel reported failure on a pending event")
	}

	time.Sleep(time.Millisecond * 150)
	if atomic.LoadInt64(&fired) != 0 {
		t.Error("canceled event still fired")
	}

	// canceling again reports not found
	canceled, _ = s.Cancel(context.Background(), id)
	if canceled {
		t.Error("double cancel reported success")
	}
}

func TestMemorySchedulerCancelFireRace(t *testing.T) {
	// exactly one of fire/cancel should observe the event, across many runs
	for i := 0; i < 50; i++ {
		s := NewMemoryScheduler()

		var fired int64
		s.RegisterHandler("race_evt", nil, func(evt *ScheduledEvent, data interface{}) (bool, error) {
			atomic.AddInt64(&fired, 1)
			return false, nil
		})

		id, err := s.Schedule(context.Background(), "race_evt", 1, time.Now().Add(time.Millisecond), nil)
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		var canceled bool
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			canceled, _ = s.Cancel(context.Background(), id)
		}()
		wg.Wait()

		time.Sleep(time.Millisecond * 20)

		nFired := atomic.LoadInt64(&fired) == 1
		if nFired == canceled {
			t.Fatalf("run %d: fired=%v canceled=%v, exactly one expected", i, nFired, canceled)
		}
	}
}

func TestParseIDGuildIDPair(t *testing.T) {
	id, guildID, err := parseIDGuildIDPair("123:456")
	if err != nil {
		t.Fatal(err)
	}
	if id != 123 || guildID != 456 {
		t.Error("wrong pair: ", id, guildID)
	}

	_, _, err = parseIDGuildIDPair("garbage")
	if err == nil {
		t.Error("expected an error on a corrupted pair")
	}
}
