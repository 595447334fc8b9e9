package leveling

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/jonas747/engage/common"
)

type memoryStore struct {
	mu      sync.Mutex
	configs map[int64]*LevelConfig
	levels  map[memberKey]*UserLevel
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		configs: make(map[int64]*LevelConfig),
		levels:  make(map[memberKey]*UserLevel),
	}
}

func (m *memoryStore) GetConfig(ctx context.Context, guildID int64) (*LevelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conf, ok := m.configs[guildID]
	if !ok {
		return nil, common.ErrNotFound
	}

	cop := *conf
	return &cop, nil
}

func (m *memoryStore) SetConfig(ctx context.Context, conf *LevelConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cop := *conf
	m.configs[conf.GuildID] = &cop
	return nil
}

func (m *memoryStore) GetUserLevel(ctx context.Context, guildID, userID int64) (*UserLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.levels[memberKey{guildID, userID}]; ok {
		cop := *entry
		return &cop, nil
	}

	return &UserLevel{GuildID: guildID, UserID: userID}, nil
}

func (m *memoryStore) SetUserLevel(ctx context.Context, entry *UserLevel) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cop := *entry
	m.levels[memberKey{entry.GuildID, entry.UserID}] = &cop
	return nil
}

func (m *memoryStore) DeleteUserLevel(ctx context.Context, guildID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memberKey{guildID, userID}
	if _, ok := m.levels[key]; !ok {
		return common.ErrNotFound
	}

	delete(m.levels, key)
	return nil
}

func (m *memoryStore) TopUsers(ctx context.Context, guildID int64, offset, limit int) ([]*UserLevel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var all []*UserLevel
	for _, entry := range m.levels {
		if entry.GuildID == guildID {
			cop := *entry
			all = append(all, &cop)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Level != all[j].Level {
			return all[i].Level > all[j].Level
		}
		return all[i].XP > all[j].XP
	})

	if offset > len(all) {
		offset = len(all)
	}
	all = all[offset:]
	if limit < len(all) {
		all = all[:limit]
	}

	return all, nil
}

type recordingDispatcher struct {
	mu       sync.Mutex
	messages []string
	targets  []MessageTarget
}

func (r *recordingDispatcher) LevelUpMessage(ctx context.Context, guildID int64, target MessageTarget, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.messages = append(r.messages, message)
	r.targets = append(r.targets, target)
	return nil
}

type recordingRoleManager struct {
	mu      sync.Mutex
	added   []int64
	removed []int64
}

func (r *recordingRoleManager) AddRole(ctx context.Context, guildID, userID, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.added = append(r.added, roleID)
	return nil
}

func (r *recordingRoleManager) RemoveRole(ctx context.Context, guildID, userID, roleID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removed = append(r.removed, roleID)
	return nil
}

func testEngine(t *testing.T, conf *LevelConfig) (*Engine, *memoryStore, *recordingDispatcher, *recordingRoleManager) {
	t.Helper()

	store := newMemoryStore()
	dispatch := &recordingDispatcher{}
	roles := &recordingRoleManager{}
	engine := NewEngine(store, dispatch, roles)

	if conf != nil {
		err := engine.SetConfig(context.Background(), conf)
		if err != nil {
			t.Fatal("setting config:", err)
		}
	}

	return engine, store, dispatch, roles
}

// fixed gain config so tests do not depend on the roll
func fixedGainConfig(guildID int64, gain int) *LevelConfig {
	conf := DefaultConfig(guildID)
	conf.ModuleEnabled = true
	conf.MinGain = gain
	conf.MaxGain = gain
	conf.CooldownRate = 1000
	return conf
}

func TestRecordActivityNoConfig(t *testing.T) {
	engine, store, dispatch, _ := testEngine(t, nil)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal("unconfigured guild should be a no-op, got:", err)
	}

	if len(store.levels) != 0 || len(dispatch.messages) != 0 {
		t.Error("no state should change for an unconfigured guild")
	}
}

func TestRecordActivityModuleDisabled(t *testing.T) {
	conf := fixedGainConfig(1, 10)
	conf.ModuleEnabled = false
	engine, store, _, _ := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal(err)
	}

	if len(store.levels) != 0 {
		t.Error("disabled module should not accrue xp")
	}
}

func TestRecordActivityBlacklists(t *testing.T) {
	cases := []struct {
		name     string
		mutate   func(*LevelConfig)
		activity *Activity
	}{
		{"user", func(c *LevelConfig) { c.BlacklistedUsers = []int64{100} },
			&Activity{GuildID: 1, ChannelID: 10, UserID: 100}},
		{"channel", func(c *LevelConfig) { c.BlacklistedChannels = []int64{10} },
			&Activity{GuildID: 1, ChannelID: 10, UserID: 100}},
		{"role", func(c *LevelConfig) { c.BlacklistedRoles = []int64{55} },
			&Activity{GuildID: 1, ChannelID: 10, UserID: 100, RoleIDs: []int64{44, 55}}},
		{"bot", func(c *LevelConfig) {},
			&Activity{GuildID: 1, ChannelID: 10, UserID: 100, Bot: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conf := fixedGainConfig(1, 10)
			tc.mutate(conf)
			engine, store, _, _ := testEngine(t, conf)

			err := engine.RecordActivity(context.Background(), tc.activity)
			if err != nil {
				t.Fatal(err)
			}

			if len(store.levels) != 0 {
				t.Error("blacklisted activity should not accrue xp")
			}
		})
	}
}

func TestRecordActivityCooldown(t *testing.T) {
	conf := fixedGainConfig(1, 10)
	conf.CooldownRate = 3
	conf.CooldownPer = time.Hour
	engine, store, _, _ := testEngine(t, conf)

	for i := 0; i < 10; i++ {
		err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
		if err != nil {
			t.Fatal(err)
		}
	}

	entry, _ := store.GetUserLevel(context.Background(), 1, 100)
	if entry.XP != 30 {
		t.Errorf("only 3 of 10 messages should count within the window, got %d xp", entry.XP)
	}
}

func TestRecordActivityCooldownPerMember(t *testing.T) {
	conf := fixedGainConfig(1, 10)
	conf.CooldownRate = 1
	conf.CooldownPer = time.Hour
	engine, store, _, _ := testEngine(t, conf)

	for _, userID := range []int64{100, 101, 100} {
		err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: userID})
		if err != nil {
			t.Fatal(err)
		}
	}

	first, _ := store.GetUserLevel(context.Background(), 1, 100)
	second, _ := store.GetUserLevel(context.Background(), 1, 101)
	if first.XP != 10 || second.XP != 10 {
		t.Errorf("cooldowns are per member, got %d and %d xp", first.XP, second.XP)
	}
}

func TestRecordActivityMultipliersCompose(t *testing.T) {
	conf := fixedGainConfig(1, 10)
	conf.MultiplierRoles = map[int64]float64{200: 1.5}
	conf.MultiplierChannels = map[int64]float64{10: 2.0}
	engine, store, _, _ := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100, RoleIDs: []int64{200}})
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := store.GetUserLevel(context.Background(), 1, 100)
	if entry.XP != 30 {
		t.Errorf("expected 10 * 1.5 * 2.0 = 30 xp, got %d", entry.XP)
	}
}

func TestRecordActivityMinimumGain(t *testing.T) {
	conf := fixedGainConfig(1, 10)
	conf.MultiplierChannels = map[int64]float64{10: 0.001}
	engine, store, _, _ := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := store.GetUserLevel(context.Background(), 1, 100)
	if entry.XP != 1 {
		t.Errorf("tiny multipliers still award at least 1 xp, got %d", entry.XP)
	}
}

func TestRecordActivityLevelUp(t *testing.T) {
	conf := fixedGainConfig(1, 120)
	engine, store, dispatch, _ := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := store.GetUserLevel(context.Background(), 1, 100)
	if entry.Level != 1 {
		t.Fatalf("120 xp past the 100 requirement should reach level 1, got level %d", entry.Level)
	}
	if entry.XP != 20 {
		t.Errorf("xp should hold the remainder past the level, got %d", entry.XP)
	}

	if len(dispatch.messages) != 1 {
		t.Fatalf("expected one announcement, got %d", len(dispatch.messages))
	}
	want := "Congratulations <@100>, you advanced to level 1!"
	if dispatch.messages[0] != want {
		t.Errorf("announcement = %q, want %q", dispatch.messages[0], want)
	}
	if dispatch.targets[0].ChannelID != 10 {
		t.Errorf("source channel policy should announce in channel 10, got %d", dispatch.targets[0].ChannelID)
	}
}

func TestRecordActivityMultiLevelJump(t *testing.T) {
	// base 100 factor 1.25: levels 0..2 need 100, 125, 156
	conf := fixedGainConfig(1, 400)
	engine, store, dispatch, _ := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := store.GetUserLevel(context.Background(), 1, 100)
	if entry.Level != 3 {
		t.Fatalf("400 xp should clear levels 0-2, got level %d", entry.Level)
	}
	if entry.XP != 400-100-125-156 {
		t.Errorf("remainder xp = %d, want %d", entry.XP, 400-100-125-156)
	}

	if len(dispatch.messages) != 3 {
		t.Errorf("one announcement per crossed level, got %d", len(dispatch.messages))
	}
}

func TestRecordActivityChannelPolicies(t *testing.T) {
	run := func(policy ChannelPolicy) (*recordingDispatcher, error) {
		conf := fixedGainConfig(1, 120)
		conf.LevelUpChannel = policy
		engine, _, dispatch, _ := testEngine(t, conf)
		err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
		return dispatch, err
	}

	dispatch, err := run(ChannelPolicySuppress)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatch.messages) != 0 {
		t.Error("suppress policy should send nothing")
	}

	dispatch, err = run(ChannelPolicyDM)
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatch.targets) != 1 || dispatch.targets[0].UserID != 100 {
		t.Error("dm policy should target the user")
	}

	dispatch, err = run(ChannelPolicy(777))
	if err != nil {
		t.Fatal(err)
	}
	if len(dispatch.targets) != 1 || dispatch.targets[0].ChannelID != 777 {
		t.Error("explicit policy should target the configured channel")
	}
}

func TestRecordActivityMessageOverride(t *testing.T) {
	conf := fixedGainConfig(1, 120)
	conf.LevelUpMessageOverrides = map[int]string{1: "welcome to {level}, {user.id}"}
	engine, _, dispatch, _ := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal(err)
	}

	if len(dispatch.messages) != 1 || dispatch.messages[0] != "welcome to 1, 100" {
		t.Errorf("override template not applied, got %v", dispatch.messages)
	}
}

func TestRecordActivityLevelRolesStacked(t *testing.T) {
	conf := fixedGainConfig(1, 400)
	conf.LevelRoles = map[int]int64{1: 1001, 3: 1003}
	engine, _, _, roles := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal(err)
	}

	if len(roles.added) != 2 || roles.added[0] != 1001 || roles.added[1] != 1003 {
		t.Errorf("expected grants [1001 1003] in ascending order, got %v", roles.added)
	}
	if len(roles.removed) != 0 {
		t.Errorf("stacked rewards are never revoked, got removals %v", roles.removed)
	}
}

func TestRecordActivityLevelRolesUnstacked(t *testing.T) {
	conf := fixedGainConfig(1, 400)
	conf.RoleStack = false
	conf.LevelRoles = map[int]int64{1: 1001, 2: 1002, 3: 1003}
	engine, _, _, roles := testEngine(t, conf)

	// member already holds the level 1 reward from a previous session
	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100, RoleIDs: []int64{1001}})
	if err != nil {
		t.Fatal(err)
	}

	removed := make(map[int64]bool)
	for _, id := range roles.removed {
		removed[id] = true
	}

	if removed[1003] {
		t.Error("the highest attained reward must stay")
	}
	if !removed[1001] || !removed[1002] {
		t.Errorf("lower rewards should be revoked without stacking, removed %v", roles.removed)
	}
}

func TestResetGuildMember(t *testing.T) {
	conf := fixedGainConfig(1, 10)
	conf.ResetOnLeave = true
	engine, store, _, _ := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal(err)
	}

	err = engine.ResetGuildMember(context.Background(), 1, 100)
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := store.GetUserLevel(context.Background(), 1, 100)
	if entry.XP != 0 || entry.Level != 0 {
		t.Error("progress should be wiped on leave")
	}

	// resetting an already clean member is fine
	err = engine.ResetGuildMember(context.Background(), 1, 100)
	if err != nil {
		t.Fatal("resetting a clean member:", err)
	}
}

func TestResetGuildMemberDisabled(t *testing.T) {
	conf := fixedGainConfig(1, 10)
	conf.ResetOnLeave = false
	engine, store, _, _ := testEngine(t, conf)

	err := engine.RecordActivity(context.Background(), &Activity{GuildID: 1, ChannelID: 10, UserID: 100})
	if err != nil {
		t.Fatal(err)
	}

	err = engine.ResetGuildMember(context.Background(), 1, 100)
	if err != nil {
		t.Fatal(err)
	}

	entry, _ := store.GetUserLevel(context.Background(), 1, 100)
	if entry.XP == 0 {
		t.Error("progress should survive leaving when reset_on_leave is off")
	}
}

func TestLeaderboard(t *testing.T) {
	conf := fixedGainConfig(1, 10)
	engine, store, _, _ := testEngine(t, conf)

	for userID, level := range map[int64]int{100: 5, 101: 3, 102: 8} {
		err := store.SetUserLevel(context.Background(), &UserLevel{GuildID: 1, UserID: userID, Level: level})
		if err != nil {
			t.Fatal(err)
		}
	}

	page, err := engine.Leaderboard(context.Background(), 1, 0, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(page) != 2 || page[0].UserID != 102 || page[1].UserID != 100 {
		t.Fatalf("unexpected first page: %+v", page)
	}
	if page[0].Rank != 1 || page[1].Rank != 2 {
		t.Errorf("ranks should start at 1, got %d and %d", page[0].Rank, page[1].Rank)
	}

	page, err = engine.Leaderboard(context.Background(), 1, 2, 2)
	if err != nil {
		t.Fatal(err)
	}

	if len(page) != 1 || page[0].UserID != 101 || page[0].Rank != 3 {
		t.Errorf("rank numbers should continue across pages, got %+v", page)
	}
}

func TestSetConfigRejectsInvalid(t *testing.T) {
	engine, _, _, _ := testEngine(t, nil)

	conf := DefaultConfig(1)
	conf.Factor = 0.5

	err := engine.SetConfig(context.Background(), conf)
	if !common.IsValidationError(err) {
		t.Errorf("expected a validation error, got %v", err)
	}
}
