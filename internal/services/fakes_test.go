package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
)

var errBoom = errors.New("boom")

type fakeAssets struct {
	mu     sync.Mutex
	assets map[uuid.UUID]models.Asset
}

func newFakeAssets(assets ...*models.Asset) *fakeAssets {
	f := &fakeAssets{assets: map[uuid.UUID]models.Asset{}}
	for _, a := range assets {
		f.assets[a.ID] = *a
	}
	return f
}

func (f *fakeAssets) Create(_ context.Context, a *models.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a.ID = uuid.New()
	f.assets[a.ID] = *a
	return nil
}

func (f *fakeAssets) GetByID(_ context.Context, id uuid.UUID) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &a, nil
}

func (f *fakeAssets) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.Asset, error) {
	var out []*models.Asset
	for _, id := range ids {
		if a, err := f.GetByID(ctx, id); err == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAssets) UpdateState(_ context.Context, id uuid.UUID, from, to models.AssetState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.assets[id]
	if a.State != from {
		return repositories.ErrStateChanged
	}
	a.State = to
	f.assets[id] = a
	return nil
}

func (f *fakeAssets) ApplyAnalysis(_ context.Context, id uuid.UUID, from, to models.AssetState, res models.AnalysisResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a := f.assets[id]
	if a.State != from {
		return repositories.ErrStateChanged
	}
	a.State = to
	a.RiskScore = res.RiskScore
	a.QualityScore = res.QualityScore
	a.PlatformCompatibility = res.PlatformCompatibility
	f.assets[id] = a
	return nil
}

func (f *fakeAssets) state(id uuid.UUID) models.AssetState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assets[id].State
}

type fakeAnalyzer struct {
	submitted []uuid.UUID
	err       error
}

func (f *fakeAnalyzer) Submit(_ context.Context, a *models.Asset) error {
	f.submitted = append(f.submitted, a.ID)
	return f.err
}

type fakeIntents struct {
	intents map[uuid.UUID]models.CampaignIntent
	history []models.IntentState
}

func newFakeIntents(i *models.CampaignIntent) *fakeIntents {
	return &fakeIntents{intents: map[uuid.UUID]models.CampaignIntent{i.ID: *i}}
}

func (f *fakeIntents) Create(_ context.Context, i *models.CampaignIntent) error {
	i.ID = uuid.New()
	i.State = models.IntentStateDraft
	f.intents[i.ID] = *i
	return nil
}

func (f *fakeIntents) GetByID(_ context.Context, id uuid.UUID) (*models.CampaignIntent, error) {
	i, ok := f.intents[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &i, nil
}

func (f *fakeIntents) UpdateState(_ context.Context, id uuid.UUID, from, to models.IntentState, lastError *string) error {
	i := f.intents[id]
	if i.State != from {
		return repositories.ErrStateChanged
	}
	i.State = to
	i.LastError = lastError
	f.intents[id] = i
	f.history = append(f.history, to)
	return nil
}

type fakeConnections struct {
	conns map[uuid.UUID]*models.AdAccountConnection
	err   error
}

func newFakeConnections(conns ...*models.AdAccountConnection) *fakeConnections {
	f := &fakeConnections{conns: map[uuid.UUID]*models.AdAccountConnection{}}
	for _, c := range conns {
		f.conns[c.ID] = c
	}
	return f
}

func (f *fakeConnections) GetByID(_ context.Context, id uuid.UUID) (*models.AdAccountConnection, error) {
	if f.err != nil {
		return nil, f.err
	}
	c, ok := f.conns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

func (f *fakeConnections) ListByIDs(_ context.Context, ids []uuid.UUID) ([]*models.AdAccountConnection, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.AdAccountConnection
	for _, id := range ids {
		if c, ok := f.conns[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeConnections) ListByProject(_ context.Context, projectID uuid.UUID) ([]*models.AdAccountConnection, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.AdAccountConnection
	for _, c := range f.conns {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeCampaigns struct {
	mu        sync.Mutex
	campaigns map[uuid.UUID]models.Campaign
	order     []uuid.UUID
	listErr   error
}

func newFakeCampaigns(cs ...*models.Campaign) *fakeCampaigns {
	f := &fakeCampaigns{campaigns: map[uuid.UUID]models.Campaign{}}
	for _, c := range cs {
		f.put(c)
	}
	return f
}

func (f *fakeCampaigns) put(c *models.Campaign) {
	if _, ok := f.campaigns[c.ID]; !ok {
		f.order = append(f.order, c.ID)
	}
	f.campaigns[c.ID] = *c
}

func (f *fakeCampaigns) Create(_ context.Context, c *models.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c.ID = uuid.New()
	c.State = models.CampaignStateActive
	now := time.Now()
	c.LaunchedAt = &now
	f.put(c)
	return nil
}

func (f *fakeCampaigns) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.campaigns[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (f *fakeCampaigns) List(_ context.Context, filter repositories.CampaignFilter) ([]*models.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Campaign
	for _, id := range f.order {
		c := f.campaigns[id]
		if c.ProjectID != filter.ProjectID {
			continue
		}
		if len(filter.States) > 0 {
			match := false
			for _, s := range filter.States {
				if s == c.State {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, &c)
	}
	return out, nil
}

func (f *fakeCampaigns) UpdateState(_ context.Context, id uuid.UUID, from, to models.CampaignState, pausedByUser bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.campaigns[id]
	if c.State != from {
		return repositories.ErrStateChanged
	}
	c.State = to
	c.PausedByUser = pausedByUser
	f.campaigns[id] = c
	return nil
}

func (f *fakeCampaigns) UpdateDailyBudget(_ context.Context, id uuid.UUID, budget float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.campaigns[id]
	c.DailyBudget = budget
	f.campaigns[id] = c
	return nil
}

func (f *fakeCampaigns) MarkSoftLaunch(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.campaigns[id]
	c.SoftLaunch = true
	f.campaigns[id] = c
	return nil
}

func (f *fakeCampaigns) get(id uuid.UUID) models.Campaign {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.campaigns[id]
}

type fakeRules struct {
	rules map[uuid.UUID]*models.AutomationRule
	order []uuid.UUID
}

func newFakeRules(rs ...*models.AutomationRule) *fakeRules {
	f := &fakeRules{rules: map[uuid.UUID]*models.AutomationRule{}}
	for _, r := range rs {
		_ = f.Create(context.Background(), r)
	}
	return f
}

func (f *fakeRules) Create(_ context.Context, r *models.AutomationRule) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.State == "" {
		r.State = models.RuleStateActive
	}
	f.rules[r.ID] = r
	f.order = append(f.order, r.ID)
	return nil
}

func (f *fakeRules) GetByID(_ context.Context, id uuid.UUID) (*models.AutomationRule, error) {
	r, ok := f.rules[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRules) ListActive(_ context.Context, projectID uuid.UUID) ([]*models.AutomationRule, error) {
	var out []*models.AutomationRule
	for _, id := range f.order {
		r := f.rules[id]
		if r.ProjectID == projectID && r.State == models.RuleStateActive {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeRules) UpdateState(_ context.Context, id uuid.UUID, from, to models.RuleState) error {
	r := f.rules[id]
	if r.State != from {
		return repositories.ErrStateChanged
	}
	r.State = to
	return nil
}

type fakeLauncher struct {
	launched []models.Platform
	failOn   models.Platform
}

func (f *fakeLauncher) Launch(_ context.Context, req LaunchRequest) (string, error) {
	if req.Account.Platform == f.failOn {
		return "", errBoom
	}
	f.launched = append(f.launched, req.Account.Platform)
	return "ext-" + string(req.Account.Platform), nil
}

type fakeTokens struct {
	err error
}

func (f *fakeTokens) GetAccessToken(context.Context, uuid.UUID) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "access-token", nil
}

type fakeExecutor struct {
	mu       sync.Mutex
	requests []ActionRequest
	err      error
	// before runs ahead of every call, outside the lock.
	before func()
}

func (f *fakeExecutor) Execute(_ context.Context, req ActionRequest) error {
	if f.before != nil {
		f.before()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.requests = append(f.requests, req)
	return nil
}

type fakeLocks struct {
	holder   string
	released bool
}

func (f *fakeLocks) Acquire(_ context.Context, _ uuid.UUID, _ string, holder string, ttl int) (repositories.LockResult, error) {
	if f.holder != "" && f.holder != holder {
		return repositories.LockResult{HolderID: f.holder}, nil
	}
	f.holder = holder
	return repositories.LockResult{Acquired: true, HolderID: holder, ExpiresAt: time.Now().Add(time.Duration(ttl) * time.Second)}, nil
}

func (f *fakeLocks) Release(_ context.Context, _ uuid.UUID, _ string, holder string) (bool, error) {
	if f.holder != holder {
		return false, nil
	}
	f.holder = ""
	f.released = true
	return true, nil
}

// fakeCounters mirrors the ceiling semantics of CounterRepo in memory.
type fakeCounters struct {
	globalLimit int
	global      int
	tokens      map[uuid.UUID]bool
	ruleCalls   int
	campCalls   int
	budget      map[uuid.UUID]float64
	rollbacks   int
	globalErr   error
}

func newFakeCounters(globalLimit int) *fakeCounters {
	return &fakeCounters{globalLimit: globalLimit, tokens: map[uuid.UUID]bool{}, budget: map[uuid.UUID]float64{}}
}

func (f *fakeCounters) IncrementRuleAction(_ context.Context, _ uuid.UUID, cooldownMinutes, _ int) (repositories.CounterResult, error) {
	f.ruleCalls++
	ends := time.Now().Add(time.Duration(cooldownMinutes) * time.Minute)
	return repositories.CounterResult{Success: true, NewActionsToday: f.ruleCalls, CooldownEndsAt: &ends}, nil
}

func (f *fakeCounters) IncrementCampaignAction(_ context.Context, _ uuid.UUID, cooldownMinutes, _ int) (repositories.CounterResult, error) {
	f.campCalls++
	ends := time.Now().Add(time.Duration(cooldownMinutes) * time.Minute)
	return repositories.CounterResult{Success: true, NewActionsToday: 1, CooldownEndsAt: &ends}, nil
}

func (f *fakeCounters) IncrementGlobalAction(context.Context, uuid.UUID, uuid.UUID) (repositories.GlobalResult, error) {
	if f.globalErr != nil {
		return repositories.GlobalResult{}, f.globalErr
	}
	if f.global >= f.globalLimit {
		return repositories.GlobalResult{NewActionsToday: f.global, ErrorMessage: "global daily action limit reached"}, nil
	}
	f.global++
	token := uuid.New()
	f.tokens[token] = true
	return repositories.GlobalResult{Success: true, NewActionsToday: f.global, Token: token}, nil
}

func (f *fakeCounters) RollbackGlobalAction(_ context.Context, _, _ uuid.UUID, token uuid.UUID) (bool, error) {
	if !f.tokens[token] {
		return false, nil
	}
	delete(f.tokens, token)
	f.global--
	f.rollbacks++
	return true, nil
}

func (f *fakeCounters) AddBudgetIncrease(_ context.Context, id uuid.UUID, percent, maxPercent float64) (repositories.BudgetResult, error) {
	if f.budget[id]+percent > maxPercent {
		return repositories.BudgetResult{NewIncreasePercent: f.budget[id], ErrorMessage: "daily budget increase limit reached"}, nil
	}
	f.budget[id] += percent
	return repositories.BudgetResult{Success: true, NewIncreasePercent: f.budget[id]}, nil
}

type fakeProjects struct {
	enabled bool
	owner   uuid.UUID
	err     error
	ids     []uuid.UUID
}

func (f *fakeProjects) ListAutomationProjects(context.Context) ([]uuid.UUID, error) {
	return f.ids, nil
}

func (f *fakeProjects) IsAutomationEnabled(context.Context, uuid.UUID) (bool, error) {
	return f.enabled, f.err
}

func (f *fakeProjects) GetOwner(context.Context, uuid.UUID) (uuid.UUID, error) {
	return f.owner, nil
}

func (f *fakeProjects) SetAutomationEnabled(_ context.Context, _ uuid.UUID, enabled bool) error {
	if f.err != nil {
		return f.err
	}
	f.enabled = enabled
	return nil
}

type fakeCooldowns struct {
	status repositories.CooldownStatus
}

func (f *fakeCooldowns) CheckRuleCooldown(context.Context, uuid.UUID) (repositories.CooldownStatus, error) {
	return f.status, nil
}

func intPtr(v int) *int { return &v }
