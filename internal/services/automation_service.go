package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adpilot/backend/internal/audit"
	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
	"github.com/adpilot/backend/internal/safety"
	"github.com/adpilot/backend/internal/statemachine"
)

// SweepLockKey serializes automation sweeps of one project across processes.
const SweepLockKey = "automation_sweep"

// Sweep outcomes
const (
	OutcomeExecuted   = "executed"
	OutcomeSkipped    = "skipped"
	OutcomeFailed     = "failed"
	OutcomeStoreError = "store_error"
)

// ActionRequest is one automation action ready to be performed on a platform.
type ActionRequest struct {
	Campaign    *models.Campaign
	Rule        *models.AutomationRule
	Action      models.ActionType
	Params      map[string]any
	NewBudget   *float64
	AccessToken string
}

type ActionExecutor interface {
	Execute(ctx context.Context, req ActionRequest) error
}

// TokenSource hands out a decrypted, fresh access token for an ad account connection.
type TokenSource interface {
	GetAccessToken(ctx context.Context, connectionID uuid.UUID) (string, error)
}

type Locker interface {
	Acquire(ctx context.Context, projectID uuid.UUID, lockKey, holderID string, ttlSeconds int) (repositories.LockResult, error)
	Release(ctx context.Context, projectID uuid.UUID, lockKey, holderID string) (bool, error)
}

type ActionCounters interface {
	IncrementRuleAction(ctx context.Context, ruleID uuid.UUID, cooldownMinutes, max int) (repositories.CounterResult, error)
	IncrementCampaignAction(ctx context.Context, campaignID uuid.UUID, cooldownMinutes, max int) (repositories.CounterResult, error)
	IncrementGlobalAction(ctx context.Context, projectID, userID uuid.UUID) (repositories.GlobalResult, error)
	RollbackGlobalAction(ctx context.Context, projectID, userID, token uuid.UUID) (bool, error)
	AddBudgetIncrease(ctx context.Context, campaignID uuid.UUID, percent, maxPercent float64) (repositories.BudgetResult, error)
}

type ProjectSettings interface {
	ListAutomationProjects(ctx context.Context) ([]uuid.UUID, error)
	IsAutomationEnabled(ctx context.Context, projectID uuid.UUID) (bool, error)
	GetOwner(ctx context.Context, projectID uuid.UUID) (uuid.UUID, error)
	SetAutomationEnabled(ctx context.Context, projectID uuid.UUID, enabled bool) error
}

type ConnectionReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.AdAccountConnection, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]*models.AdAccountConnection, error)
}

type AutomationConfig struct {
	InstanceID     string
	LockTTL        time.Duration
	RuleDailyLimit int
}

type SweepOutcome struct {
	RuleID     *uuid.UUID        `json:"rule_id,omitempty"`
	CampaignID uuid.UUID         `json:"campaign_id"`
	Action     models.ActionType `json:"action"`
	Outcome    string            `json:"outcome"`
	SkipReason string            `json:"skip_reason,omitempty"`
	Reason     string            `json:"reason,omitempty"`
}

type SweepReport struct {
	ProjectID uuid.UUID `json:"project_id"`
	// LockHeldBy is set when another holder owned the sweep lock and nothing ran.
	LockHeldBy  string         `json:"lock_held_by,omitempty"`
	Evaluated   int            `json:"evaluated"`
	Executed    int            `json:"executed"`
	Skipped     int            `json:"skipped"`
	Failed      int            `json:"failed"`
	StoreErrors int            `json:"store_errors"`
	Outcomes    []SweepOutcome `json:"outcomes"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
}

func (r *SweepReport) add(o SweepOutcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Outcome {
	case OutcomeExecuted:
		r.Executed++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	case OutcomeStoreError:
		r.StoreErrors++
	}
}

// sweep is the per-run state of one RunSweep call.
type sweep struct {
	projectID  uuid.UUID
	owner      uuid.UUID
	killSwitch bool
	accounts   map[uuid.UUID]models.ConnectionState
	cycle      *safety.CycleTracker
	now        time.Time
	report     *SweepReport
}

type AutomationService struct {
	engine     *safety.Engine
	conditions *ConditionEvaluator
	rules      RuleStore
	campaigns  CampaignStore
	accounts   ConnectionReader
	projects   ProjectSettings
	counters   ActionCounters
	locks      Locker
	tokens     TokenSource
	executor   ActionExecutor
	registry   *statemachine.Registry
	trail      trail
	cfg        AutomationConfig
	log        *zap.Logger
	now        func() time.Time
}

func NewAutomationService(
	engine *safety.Engine,
	conditions *ConditionEvaluator,
	rules RuleStore,
	campaigns CampaignStore,
	accounts ConnectionReader,
	projects ProjectSettings,
	counters ActionCounters,
	locks Locker,
	tokens TokenSource,
	executor ActionExecutor,
	registry *statemachine.Registry,
	recorder audit.Recorder,
	cfg AutomationConfig,
	log *zap.Logger,
) *AutomationService {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Minute
	}
	if cfg.RuleDailyLimit <= 0 {
		cfg.RuleDailyLimit = 10
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	return &AutomationService{
		engine:     engine,
		conditions: conditions,
		rules:      rules,
		campaigns:  campaigns,
		accounts:   accounts,
		projects:   projects,
		counters:   counters,
		locks:      locks,
		tokens:     tokens,
		executor:   executor,
		registry:   registry,
		trail:      trail{recorder: recorder, log: log},
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// automationStates are the campaign states a sweep looks at. The engine decides
// what may happen to each; STOPPED campaigns are never loaded.
var automationStates = []models.CampaignState{
	models.CampaignStateActive,
	models.CampaignStatePaused,
	models.CampaignStateUserPaused,
	models.CampaignStateRecovery,
	models.CampaignStateDisapproved,
}

// RunSweep evaluates every active rule of the project against its campaigns
// and executes the actions the safety engine allows. Only one sweep per project
// runs at a time; a sweep that finds the lock held returns a report with
// LockHeldBy set and does nothing else.
func (s *AutomationService) RunSweep(ctx context.Context, projectID uuid.UUID) (*SweepReport, error) {
	report := &SweepReport{ProjectID: projectID, StartedAt: s.now()}

	// each invocation holds the lock under its own id; the backends are
	// re-entrant for an identical holder
	holder := s.cfg.InstanceID + ":" + uuid.NewString()
	lock, err := s.locks.Acquire(ctx, projectID, SweepLockKey, holder, int(s.cfg.LockTTL.Seconds()))
	if err != nil {
		return nil, fmt.Errorf("acquire sweep lock: %w", err)
	}
	if !lock.Acquired {
		s.log.Info("automation sweep skipped, lock held",
			zap.String("project_id", projectID.String()),
			zap.String("holder", lock.HolderID),
		)
		report.LockHeldBy = lock.HolderID
		report.FinishedAt = s.now()
		return report, nil
	}
	defer func() {
		if _, err := s.locks.Release(context.WithoutCancel(ctx), projectID, SweepLockKey, holder); err != nil {
			s.log.Error("failed to release sweep lock", zap.String("project_id", projectID.String()), zap.Error(err))
		}
	}()

	sw, err := s.prepare(ctx, projectID, report)
	if err != nil {
		return nil, err
	}

	rules, err := s.rules.ListActive(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	campaigns, err := s.campaigns.List(ctx, repositories.CampaignFilter{ProjectID: projectID, States: automationStates})
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}

	for _, c := range campaigns {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if safety.SoftLaunchEligible(c, sw.now, s.engine.Policy().SoftLaunchWindow) {
			s.softLaunch(ctx, sw, c)
		}
	}

	for _, rule := range rules {
		for _, c := range campaigns {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if !rule.AppliesTo(c.ID) {
				continue
			}
			s.evaluate(ctx, sw, rule, c)
		}
	}

	report.FinishedAt = s.now()
	s.log.Info("automation sweep finished",
		zap.String("project_id", projectID.String()),
		zap.Int("evaluated", report.Evaluated),
		zap.Int("executed", report.Executed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("store_errors", report.StoreErrors),
		zap.Duration("duration", report.FinishedAt.Sub(report.StartedAt)),
	)
	return report, nil
}

// SweepAll runs one sweep for every project with an active rule. Projects with
// automation switched off are swept too, so their rule matches are recorded as
// kill-switch skips. A failing project is logged and does not stop the others.
func (s *AutomationService) SweepAll(ctx context.Context) ([]*SweepReport, error) {
	projects, err := s.projects.ListAutomationProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list automation projects: %w", err)
	}

	reports := make([]*SweepReport, 0, len(projects))
	for _, projectID := range projects {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		report, err := s.RunSweep(ctx, projectID)
		if err != nil {
			s.log.Error("automation sweep failed", zap.String("project_id", projectID.String()), zap.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// prepare reads the kill switch, the project owner and the ad account states.
// A failed kill-switch read aborts the sweep.
func (s *AutomationService) prepare(ctx context.Context, projectID uuid.UUID, report *SweepReport) (*sweep, error) {
	enabled, err := s.projects.IsAutomationEnabled(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("read kill switch: %w", err)
	}
	owner, err := s.projects.GetOwner(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("read project owner: %w", err)
	}
	conns, err := s.accounts.ListByProject(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list ad accounts: %w", err)
	}

	sw := &sweep{
		projectID:  projectID,
		owner:      owner,
		killSwitch: !enabled,
		accounts:   make(map[uuid.UUID]models.ConnectionState, len(conns)),
		cycle:      safety.NewCycleTracker(),
		now:        s.now(),
		report:     report,
	}
	for _, conn := range conns {
		state := conn.State
		if !conn.IsUsable() {
			state = models.ConnectionStateDisconnected
		}
		sw.accounts[conn.ID] = state
	}
	return sw, nil
}

func (s *AutomationService) evaluate(ctx context.Context, sw *sweep, rule *models.AutomationRule, c *models.Campaign) {
	matched, err := s.conditions.Matches(rule.Condition, c.Metrics(sw.now))
	if err != nil {
		s.log.Warn("rule condition failed",
			zap.String("rule_id", rule.ID.String()),
			zap.String("condition", rule.Condition),
			zap.Error(err),
		)
		s.skip(ctx, sw, rule, c, rule.Action, safety.Decision{
			Reason:      err.Error(),
			SkipReason:  "INVALID_CONDITION",
			FailedCheck: "condition",
		})
		return
	}
	if !matched {
		return
	}
	sw.report.Evaluated++

	if d := sw.cycle.Check(c.ID); !d.Allowed {
		s.skip(ctx, sw, rule, c, rule.Action, d)
		return
	}

	in := safety.Input{
		Campaign:         c,
		Rule:             rule,
		Action:           rule.Action,
		RequestedPercent: rule.Percent(),
		AccountState:     sw.accounts[c.AccountID],
		KillSwitchActive: sw.killSwitch,
		Now:              sw.now,
	}
	if d := s.engine.Evaluate(in); !d.Allowed {
		s.skip(ctx, sw, rule, c, rule.Action, d)
		return
	}
	if d := s.checkRegistry(c, rule.Action); !d.Allowed {
		s.skip(ctx, sw, rule, c, rule.Action, d)
		return
	}

	s.act(ctx, sw, rule, c, rule.Action)
}

func (s *AutomationService) softLaunch(ctx context.Context, sw *sweep, c *models.Campaign) {
	action := models.ActionEnableSoftLaunch
	sw.report.Evaluated++

	if d := sw.cycle.Check(c.ID); !d.Allowed {
		s.skip(ctx, sw, nil, c, action, d)
		return
	}
	d := s.engine.EvaluateSoftLaunch(safety.Input{
		Campaign:         c,
		AccountState:     sw.accounts[c.AccountID],
		KillSwitchActive: sw.killSwitch,
		Now:              sw.now,
	})
	if !d.Allowed {
		s.skip(ctx, sw, nil, c, action, d)
		return
	}
	if d := s.checkRegistry(c, action); !d.Allowed {
		s.skip(ctx, sw, nil, c, action, d)
		return
	}

	if err := s.execute(ctx, ActionRequest{Campaign: c, Action: action}); err != nil {
		s.failed(ctx, sw, nil, c, action, err)
		return
	}
	if err := s.campaigns.MarkSoftLaunch(ctx, c.ID); err != nil {
		s.storeError(sw, nil, c, action, err)
		return
	}
	c.SoftLaunch = true
	sw.cycle.MarkActed(c.ID)
	s.executed(ctx, sw, nil, c, action, nil)
}

// checkRegistry rejects actions the campaign's current state does not permit.
// It runs after the safety engine so engine skip reasons keep precedence.
func (s *AutomationService) checkRegistry(c *models.Campaign, action models.ActionType) safety.Decision {
	if err := s.registry.CheckAction(statemachine.KindCampaign, string(c.State), string(action)); err != nil {
		return safety.Decision{
			Reason:      err.Error(),
			SkipReason:  "INVALID_TRANSITION",
			FailedCheck: "state_machine",
		}
	}
	return safety.Decision{Allowed: true}
}

// act reserves a global slot, performs the action and persists the counters.
// The reservation is rolled back when the action fails.
func (s *AutomationService) act(ctx context.Context, sw *sweep, rule *models.AutomationRule, c *models.Campaign, action models.ActionType) {
	global, err := s.counters.IncrementGlobalAction(ctx, sw.projectID, sw.owner)
	if err != nil {
		s.storeError(sw, rule, c, action, err)
		return
	}
	if !global.Success {
		s.skip(ctx, sw, rule, c, action, safety.Decision{
			Reason:      global.ErrorMessage,
			SkipReason:  safety.ReasonDailyLimitExceeded,
			FailedCheck: "global_limit",
		})
		return
	}

	req := ActionRequest{Campaign: c, Rule: rule, Action: action, Params: rule.ActionParams}
	percent := rule.Percent()
	switch action {
	case models.ActionIncreaseBudget:
		b := c.DailyBudget * (1 + percent/100)
		req.NewBudget = &b
	case models.ActionDecreaseBudget:
		b := c.DailyBudget * (1 - percent/100)
		if b < 0 {
			b = 0
		}
		req.NewBudget = &b
	}

	if err := s.execute(ctx, req); err != nil {
		if _, rerr := s.counters.RollbackGlobalAction(context.WithoutCancel(ctx), sw.projectID, sw.owner, global.Token); rerr != nil {
			s.log.Error("failed to roll back global action",
				zap.String("project_id", sw.projectID.String()),
				zap.String("token", global.Token.String()),
				zap.Error(rerr),
			)
		}
		s.failed(ctx, sw, rule, c, action, err)
		return
	}

	if err := s.persist(ctx, rule, c, action, percent, req.NewBudget); err != nil {
		s.storeError(sw, rule, c, action, err)
		// the platform change happened; the campaign must not be touched again this sweep
		sw.cycle.MarkActed(c.ID)
		return
	}

	meta := map[string]any{"global_actions_today": global.NewActionsToday}
	if req.NewBudget != nil {
		meta["new_budget"] = *req.NewBudget
		meta["percent"] = percent
	}
	sw.cycle.MarkActed(c.ID)
	s.executed(ctx, sw, rule, c, action, meta)
}

func (s *AutomationService) execute(ctx context.Context, req ActionRequest) error {
	token, err := s.tokens.GetAccessToken(ctx, req.Campaign.AccountID)
	if err != nil {
		return fmt.Errorf("access token: %w", err)
	}
	req.AccessToken = token
	return s.executor.Execute(ctx, req)
}

// persist records the executed action on the rule and the campaign. The in-memory
// copies are updated so later evaluations in the same sweep see the new counters.
func (s *AutomationService) persist(ctx context.Context, rule *models.AutomationRule, c *models.Campaign, action models.ActionType, percent float64, newBudget *float64) error {
	cooldown := int(s.engine.Policy().CooldownFor(action, rule.CooldownMinutes).Minutes())
	now := s.now()

	ruleRes, err := s.counters.IncrementRuleAction(ctx, rule.ID, cooldown, s.cfg.RuleDailyLimit)
	if err != nil {
		return err
	}
	if !ruleRes.Success {
		s.log.Warn("rule counter refused after execution",
			zap.String("rule_id", rule.ID.String()),
			zap.String("reason", ruleRes.ErrorMessage),
		)
	}
	rule.LastTriggeredAt = &now
	rule.CooldownEndsAt = ruleRes.CooldownEndsAt
	rule.ActionsToday = ruleRes.NewActionsToday

	campRes, err := s.counters.IncrementCampaignAction(ctx, c.ID, cooldown, s.engine.Policy().MaxActionsPerCampaignPerDay)
	if err != nil {
		return err
	}
	if !campRes.Success {
		s.log.Warn("campaign counter refused after execution",
			zap.String("campaign_id", c.ID.String()),
			zap.String("reason", campRes.ErrorMessage),
		)
	}
	c.ActionsToday = campRes.NewActionsToday
	c.CooldownEndsAt = campRes.CooldownEndsAt
	c.LastActionAt = &now

	if action == models.ActionIncreaseBudget {
		budgetRes, err := s.counters.AddBudgetIncrease(ctx, c.ID, percent, s.engine.Policy().MaxBudgetIncreasePercent)
		if err != nil {
			return err
		}
		if !budgetRes.Success {
			s.log.Warn("budget increase counter refused after execution",
				zap.String("campaign_id", c.ID.String()),
				zap.String("reason", budgetRes.ErrorMessage),
			)
		}
		c.BudgetIncreasedTodayPercent = budgetRes.NewIncreasePercent
	}
	if newBudget != nil {
		if err := s.campaigns.UpdateDailyBudget(ctx, c.ID, *newBudget); err != nil {
			return err
		}
		c.DailyBudget = *newBudget
	}

	if target, ok := s.registry.Machine(statemachine.KindCampaign).TargetOf(string(action)); ok && target != string(c.State) {
		if err := s.registry.CheckTransition(statemachine.KindCampaign, string(c.State), target); err != nil {
			return err
		}
		to := models.CampaignState(target)
		if err := s.campaigns.UpdateState(ctx, c.ID, c.State, to, c.PausedByUser); err != nil {
			return err
		}
		s.trail.transitioned(ctx, change{
			entityType: models.EntityCampaign,
			entityID:   c.ID,
			projectID:  c.ProjectID,
			from:       string(c.State),
			to:         target,
			action:     string(action),
			source:     models.SourceAutomation,
			meta:       map[string]any{"rule_id": rule.ID.String()},
		})
		c.State = to
	}
	return nil
}

// EvaluateDryRun runs the safety engine for one prospective action without
// executing it or recording anything.
func (s *AutomationService) EvaluateDryRun(ctx context.Context, campaignID uuid.UUID, ruleID *uuid.UUID, action models.ActionType, percent float64) (safety.Decision, error) {
	c, err := s.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return safety.Decision{}, err
	}
	enabled, err := s.projects.IsAutomationEnabled(ctx, c.ProjectID)
	if err != nil {
		return safety.Decision{}, err
	}

	in := safety.Input{
		Campaign:         c,
		Action:           action,
		RequestedPercent: percent,
		KillSwitchActive: !enabled,
		Now:              s.now(),
	}
	if ruleID != nil {
		rule, err := s.rules.GetByID(ctx, *ruleID)
		if err != nil {
			return safety.Decision{}, err
		}
		in.Rule = rule
		if in.Action == "" {
			in.Action = rule.Action
		}
	}

	conn, err := s.accounts.GetByID(ctx, c.AccountID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
	case err != nil:
		return safety.Decision{}, err
	case conn.IsUsable():
		in.AccountState = conn.State
	}

	if in.Action == models.ActionEnableSoftLaunch {
		return s.engine.EvaluateSoftLaunch(in), nil
	}
	return s.engine.Evaluate(in), nil
}

// AutomationEnabled reports the project's kill switch; true means automation may act.
func (s *AutomationService) AutomationEnabled(ctx context.Context, projectID uuid.UUID) (bool, error) {
	return s.projects.IsAutomationEnabled(ctx, projectID)
}

// SetAutomationEnabled flips the project's kill switch. Sweeps already running
// read the switch once at start; the next sweep sees the new value.
func (s *AutomationService) SetAutomationEnabled(ctx context.Context, projectID uuid.UUID, enabled bool, source models.EventSource) error {
	before, err := s.projects.IsAutomationEnabled(ctx, projectID)
	if err != nil {
		return err
	}
	if err := s.projects.SetAutomationEnabled(ctx, projectID, enabled); err != nil {
		return err
	}

	action := "DISABLE_AUTOMATION"
	if enabled {
		action = "ENABLE_AUTOMATION"
	}
	s.trail.transitioned(ctx, change{
		entityType: models.EntityProject,
		entityID:   projectID,
		projectID:  projectID,
		from:       automationLabel(before),
		to:         automationLabel(enabled),
		action:     action,
		source:     source,
	})
	s.log.Info("automation kill switch changed",
		zap.String("project_id", projectID.String()),
		zap.Bool("automation_enabled", enabled),
	)
	return nil
}

func automationLabel(enabled bool) string {
	if enabled {
		return "AUTOMATION_ENABLED"
	}
	return "AUTOMATION_DISABLED"
}

func outcome(rule *models.AutomationRule, c *models.Campaign, action models.ActionType, result string) SweepOutcome {
	o := SweepOutcome{CampaignID: c.ID, Action: action, Outcome: result}
	if rule != nil {
		id := rule.ID
		o.RuleID = &id
	}
	return o
}

func (s *AutomationService) event(eventType string, rule *models.AutomationRule, c *models.Campaign, action models.ActionType) models.AuditEvent {
	ev := change{
		entityType: models.EntityCampaign,
		entityID:   c.ID,
		projectID:  c.ProjectID,
		from:       string(c.State),
		action:     string(action),
		source:     models.SourceAutomation,
		meta:       map[string]any{},
	}.event(eventType)
	if rule != nil {
		ev.Metadata["rule_id"] = rule.ID.String()
		ev.Metadata["rule_name"] = rule.Name
	}
	return ev
}

func (s *AutomationService) skip(ctx context.Context, sw *sweep, rule *models.AutomationRule, c *models.Campaign, action models.ActionType, d safety.Decision) {
	o := outcome(rule, c, action, OutcomeSkipped)
	o.SkipReason, o.Reason = d.SkipReason, d.Reason
	sw.report.add(o)

	ev := s.event(models.EventSkipped, rule, c, action)
	ev.Reason = models.StrPtr(d.Reason)
	ev.Outcome = models.StrPtr(models.OutcomeFailure)
	ev.Metadata["skip_reason"] = d.SkipReason
	ev.Metadata["failed_check"] = d.FailedCheck
	s.trail.record(ctx, ev)
}

func (s *AutomationService) failed(ctx context.Context, sw *sweep, rule *models.AutomationRule, c *models.Campaign, action models.ActionType, err error) {
	o := outcome(rule, c, action, OutcomeFailed)
	o.Reason = err.Error()
	sw.report.add(o)

	s.log.Warn("automation action failed",
		zap.String("campaign_id", c.ID.String()),
		zap.String("action", string(action)),
		zap.Error(err),
	)
	ev := s.event(models.EventActionFailed, rule, c, action)
	ev.Reason = models.StrPtr(err.Error())
	ev.Outcome = models.StrPtr(models.OutcomeFailure)
	s.trail.record(ctx, ev)
}

func (s *AutomationService) executed(ctx context.Context, sw *sweep, rule *models.AutomationRule, c *models.Campaign, action models.ActionType, meta map[string]any) {
	sw.report.add(outcome(rule, c, action, OutcomeExecuted))

	ev := s.event(models.EventActionExecuted, rule, c, action)
	ev.Outcome = models.StrPtr(models.OutcomeSuccess)
	for k, v := range meta {
		ev.Metadata[k] = v
	}
	s.trail.record(ctx, ev)
}

// storeError fails the campaign closed. It is reported but never turned into
// a skip reason.
func (s *AutomationService) storeError(sw *sweep, rule *models.AutomationRule, c *models.Campaign, action models.ActionType, err error) {
	o := outcome(rule, c, action, OutcomeStoreError)
	o.Reason = err.Error()
	sw.report.add(o)
	s.log.Error("automation store error",
		zap.String("campaign_id", c.ID.String()),
		zap.String("action", string(action)),
		zap.Error(err),
	)
}
