package giveaway

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonas747/engage/common"
	"github.com/pkg/errors"
)

type memoryStore struct {
	mu        sync.Mutex
	giveaways map[int64]*Giveaway
	entrants  map[int64][]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		giveaways: make(map[int64]*Giveaway),
		entrants:  make(map[int64][]int64),
	}
}

func (m *memoryStore) Insert(ctx context.Context, g *Giveaway) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cop := *g
	m.giveaways[g.ID] = &cop
	return nil
}

func (m *memoryStore) Get(ctx context.Context, id int64) (*Giveaway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.giveaways[id]
	if !ok {
		return nil, common.ErrNotFound
	}

	cop := *g
	return &cop, nil
}

func (m *memoryStore) ListActive(ctx context.Context, guildID int64) ([]*Giveaway, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*Giveaway
	for _, g := range m.giveaways {
		if g.GuildID == guildID {
			cop := *g
			result = append(result, &cop)
		}
	}

	return result, nil
}

func (m *memoryStore) AddEntrant(ctx context.Context, giveawayID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.entrants[giveawayID] {
		if existing == userID {
			return nil
		}
	}

	m.entrants[giveawayID] = append(m.entrants[giveawayID], userID)
	return nil
}

func (m *memoryStore) RemoveEntrant(ctx context.Context, giveawayID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.entrants[giveawayID]
	for i, existing := range list {
		if existing == userID {
			m.entrants[giveawayID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}

	return nil
}

func (m *memoryStore) CountEntrants(ctx context.Context, giveawayID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entrants[giveawayID]), nil
}

func (m *memoryStore) Claim(ctx context.Context, id int64) (*Giveaway, []int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.giveaways[id]
	if !ok {
		return nil, nil, common.ErrNotFound
	}

	delete(m.giveaways, id)
	entrants := m.entrants[id]
	delete(m.entrants, id)

	cop := *g
	return &cop, entrants, nil
}

type fakeScheduler struct {
	mu       sync.Mutex
	nextID   int64
	pending  map[int64]time.Time
	canceled []int64
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{pending: make(map[int64]time.Time)}
}

func (f *fakeScheduler) Schedule(ctx context.Context, eventName string, guildID int64, runAt time.Time, data interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	f.pending[f.nextID] = runAt
	return f.nextID, nil
}

func (f *fakeScheduler) Cancel(ctx context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.pending[id]; !ok {
		return false, nil
	}

	delete(f.pending, id)
	f.canceled = append(f.canceled, id)
	return true, nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	resolved []*Giveaway
	winners  [][]int64
	canceled []*Giveaway
}

func (r *recordingDispatcher) GiveawayResolved(ctx context.Context, g *Giveaway, winners []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolved = append(r.resolved, g)
	r.winners = append(r.winners, winners)
	return nil
}

func (r *recordingDispatcher) GiveawayCanceled(ctx context.Context, g *Giveaway) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.canceled = append(r.canceled, g)
	return nil
}

func testEngine() (*Engine, *memoryStore, *fakeScheduler, *recordingDispatcher) {
	store := newMemoryStore()
	scheduler := newFakeScheduler()
	dispatch := &recordingDispatcher{}
	return NewEngine(store, scheduler, dispatch), store, scheduler, dispatch
}

func validParams() *CreateParams {
	return &CreateParams{
		GuildID:    1,
		ChannelID:  10,
		MessageID:  20,
		HostID:     100,
		Prize:      "a pony",
		Duration:   time.Hour,
		NumWinners: 1,
	}
}

func TestCreateSchedulesAndPersists(t *testing.T) {
	engine, store, scheduler, _ := testEngine()

	g, err := engine.Create(context.Background(), validParams())
	if err != nil {
		t.Fatal(err)
	}

	if _, ok := scheduler.pending[g.ID]; !ok {
		t.Error("a resolution timer should be pending under the giveaway id")
	}

	stored, err := store.Get(context.Background(), g.ID)
	if err != nil {
		t.Fatal("giveaway should be persisted:", err)
	}

	if stored.Prize != "a pony" || stored.NumWinners != 1 {
		t.Errorf("stored giveaway mangled: %+v", stored)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*CreateParams)
	}{
		{"empty prize", func(p *CreateParams) { p.Prize = "" }},
		{"overlong prize", func(p *CreateParams) { p.Prize = string(make([]byte, 101)) }},
		{"too short", func(p *CreateParams) { p.Duration = time.Second }},
		{"too long", func(p *CreateParams) { p.Duration = 31 * 24 * time.Hour }},
		{"zero winners", func(p *CreateParams) { p.NumWinners = 0 }},
		{"too many winners", func(p *CreateParams) { p.NumWinners = 101 }},
		{"negative level requirement", func(p *CreateParams) { p.LevelRequirement = -1 }},
		{"absurd level requirement", func(p *CreateParams) { p.LevelRequirement = 501 }},
		{"too many required roles", func(p *CreateParams) {
			p.RolesRequirement = make([]int64, 11)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, _, scheduler, _ := testEngine()

			params := validParams()
			tc.mutate(params)

			_, err := engine.Create(context.Background(), params)
			if !common.IsValidationError(err) {
				t.Errorf("expected a validation error, got %v", err)
			}
			if len(scheduler.pending) != 0 {
				t.Error("nothing should be scheduled for rejected parameters")
			}
		})
	}
}

func TestEnterIdempotent(t *testing.T) {
	engine, store, _, _ := testEngine()

	g, err := engine.Create(context.Background(), validParams())
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		err = engine.Enter(context.Background(), g.ID, 200, 0, nil)
		if err != nil {
			t.Fatal("entry should succeed:", err)
		}
	}

	count, _ := store.CountEntrants(context.Background(), g.ID)
	if count != 1 {
		t.Errorf("repeat entries should collapse to one, got %d", count)
	}
}

func TestEnterLevelRequirement(t *testing.T) {
	engine, _, _, _ := testEngine()

	params := validParams()
	params.LevelRequirement = 10
	g, err := engine.Create(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}

	err = engine.Enter(context.Background(), g.ID, 200, 9, nil)
	if !IsIneligible(err) {
		t.Errorf("level 9 against requirement 10 should be rejected, got %v", err)
	}

	err = engine.Enter(context.Background(), g.ID, 200, 10, nil)
	if err != nil {
		t.Errorf("level 10 meets the requirement exactly, got %v", err)
	}
}

func TestEnterRoleRequirement(t *testing.T) {
	engine, _, _, _ := testEngine()

	params := validParams()
	params.RolesRequirement = []int64{500, 501}
	g, err := engine.Create(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}

	err = engine.Enter(context.Background(), g.ID, 200, 0, []int64{400})
	if !IsIneligible(err) {
		t.Errorf("no required role should be rejected, got %v", err)
	}

	// holding any one of the required roles suffices
	err = engine.Enter(context.Background(), g.ID, 200, 0, []int64{400, 501})
	if err != nil {
		t.Errorf("one matching role should suffice, got %v", err)
	}
}

func TestEnterUnknownGiveaway(t *testing.T) {
	engine, _, _, _ := testEngine()

	err := engine.Enter(context.Background(), 999, 200, 0, nil)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestLeave(t *testing.T) {
	engine, store, _, _ := testEngine()

	g, err := engine.Create(context.Background(), validParams())
	if err != nil {
		t.Fatal(err)
	}

	if err = engine.Enter(context.Background(), g.ID, 200, 0, nil); err != nil {
		t.Fatal(err)
	}
	if err = engine.Leave(context.Background(), g.ID, 200); err != nil {
		t.Fatal(err)
	}

	count, _ := store.CountEntrants(context.Background(), g.ID)
	if count != 0 {
		t.Errorf("leaving should remove the entry, %d left", count)
	}

	// leaving again is a no-op
	if err = engine.Leave(context.Background(), g.ID, 200); err != nil {
		t.Errorf("leaving without an entry should be fine, got %v", err)
	}
}

func TestHandleTimerFireResolves(t *testing.T) {
	engine, store, _, dispatch := testEngine()

	params := validParams()
	params.NumWinners = 2
	g, err := engine.Create(context.Background(), params)
	if err != nil {
		t.Fatal(err)
	}

	for _, userID := range []int64{200, 201, 202} {
		if err = engine.Enter(context.Background(), g.ID, userID, 0, nil); err != nil {
			t.Fatal(err)
		}
	}

	retry, err := engine.HandleTimerFire(context.Background(), g.ID)
	if err != nil {
		t.Fatal(err)
	}
	if retry {
		t.Error("successful resolution should not request a retry")
	}

	if len(dispatch.resolved) != 1 {
		t.Fatalf("expected one resolution announcement, got %d", len(dispatch.resolved))
	}
	if len(dispatch.winners[0]) != 2 {
		t.Errorf("expected 2 winners, got %v", dispatch.winners[0])
	}

	if _, err := store.Get(context.Background(), g.ID); !errors.Is(err, common.ErrNotFound) {
		t.Error("a resolved giveaway should leave no row behind")
	}
}

func TestHandleTimerFireNoEntrants(t *testing.T) {
	engine, _, _, dispatch := testEngine()

	g, err := engine.Create(context.Background(), validParams())
	if err != nil {
		t.Fatal(err)
	}

	retry, err := engine.HandleTimerFire(context.Background(), g.ID)
	if err != nil || retry {
		t.Fatal(err, retry)
	}

	if len(dispatch.resolved) != 1 || len(dispatch.winners[0]) != 0 {
		t.Error("a giveaway without entrants resolves with zero winners")
	}
}

func TestCancel(t *testing.T) {
	engine, store, scheduler, dispatch := testEngine()

	g, err := engine.Create(context.Background(), validParams())
	if err != nil {
		t.Fatal(err)
	}

	err = engine.Cancel(context.Background(), g.ID)
	if err != nil {
		t.Fatal(err)
	}

	if len(scheduler.canceled) != 1 || scheduler.canceled[0] != g.ID {
		t.Error("the resolution timer should be canceled with the giveaway")
	}
	if len(dispatch.canceled) != 1 {
		t.Error("cancellation should be announced")
	}
	if _, err := store.Get(context.Background(), g.ID); !errors.Is(err, common.ErrNotFound) {
		t.Error("a canceled giveaway should leave no row behind")
	}
}

func TestCancelAfterResolution(t *testing.T) {
	engine, _, _, dispatch := testEngine()

	g, err := engine.Create(context.Background(), validParams())
	if err != nil {
		t.Fatal(err)
	}

	if _, err = engine.HandleTimerFire(context.Background(), g.ID); err != nil {
		t.Fatal(err)
	}

	// the claim is gone, the losing cancel is a benign no-op
	err = engine.Cancel(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("canceling a resolved giveaway should not error, got %v", err)
	}

	if len(dispatch.canceled) != 0 {
		t.Error("a no-op cancel must not announce a cancellation")
	}
}

func TestCancelFireRace(t *testing.T) {
	// whichever of cancel and timer fire claims the row first wins, the
	// other sees nothing
	for trial := 0; trial < 50; trial++ {
		engine, _, _, dispatch := testEngine()

		g, err := engine.Create(context.Background(), validParams())
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		var cancelErr, fireErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			cancelErr = engine.Cancel(context.Background(), g.ID)
		}()
		go func() {
			defer wg.Done()
			_, fireErr = engine.HandleTimerFire(context.Background(), g.ID)
		}()
		wg.Wait()

		// losing the claim is benign for both sides
		if cancelErr != nil {
			t.Fatalf("cancel errored in the race: %v", cancelErr)
		}
		if fireErr != nil {
			t.Fatalf("timer fire errored in the race: %v", fireErr)
		}

		resolved := len(dispatch.resolved)
		canceled := len(dispatch.canceled)
		if resolved+canceled != 1 {
			t.Fatalf("exactly one of resolve and cancel must win, got %d resolved %d canceled", resolved, canceled)
		}
	}
}

func TestEnterAfterResolution(t *testing.T) {
	engine, _, _, _ := testEngine()

	g, err := engine.Create(context.Background(), validParams())
	if err != nil {
		t.Fatal(err)
	}

	if _, err = engine.HandleTimerFire(context.Background(), g.ID); err != nil {
		t.Fatal(err)
	}

	err = engine.Enter(context.Background(), g.ID, 200, 0, nil)
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("entering a resolved giveaway should fail with not found, got %v", err)
	}
}
