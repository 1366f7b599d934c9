package services

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/adpilot/backend/internal/models"
)

var ErrEmptyCondition = errors.New("rule condition is empty")

// ConditionEvaluator compiles rule conditions written in CEL over campaign
// metrics. Compiled programs are cached by expression.
type ConditionEvaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

func NewConditionEvaluator() (*ConditionEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("spend", cel.DoubleType),
		cel.Variable("impressions", cel.IntType),
		cel.Variable("clicks", cel.IntType),
		cel.Variable("conversions", cel.IntType),
		cel.Variable("ctr", cel.DoubleType),
		cel.Variable("cpc", cel.DoubleType),
		cel.Variable("cpa", cel.DoubleType),
		cel.Variable("roas", cel.DoubleType),
		cel.Variable("daily_budget", cel.DoubleType),
		cel.Variable("hours_since_launch", cel.DoubleType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL env: %w", err)
	}
	return &ConditionEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Compile checks that expr is a boolean expression over the metric variables.
func (e *ConditionEvaluator) Compile(expr string) error {
	_, err := e.program(expr)
	return err
}

// Matches evaluates expr against m. An empty expression never matches.
func (e *ConditionEvaluator) Matches(expr string, m models.CampaignMetrics) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"spend":              m.Spend,
		"impressions":        m.Impressions,
		"clicks":             m.Clicks,
		"conversions":        m.Conversions,
		"ctr":                m.CTR,
		"cpc":                m.CPC,
		"cpa":                m.CPA,
		"roas":               m.ROAS,
		"daily_budget":       m.DailyBudget,
		"hours_since_launch": m.HoursSinceLaunch,
	})
	if err != nil {
		return false, fmt.Errorf("evaluate condition: %w", err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return a bool", expr)
	}
	return matched, nil
}

func (e *ConditionEvaluator) program(expr string) (cel.Program, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, ErrEmptyCondition
	}

	e.mu.RLock()
	prg, ok := e.cache[expr]
	e.mu.RUnlock()
	if ok {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, ok := e.cache[expr]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile condition: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition %q must be boolean, got %s", expr, ast.OutputType())
	}
	prg, err := e.env.Program(ast, cel.InterruptCheckFrequency(100), cel.CostLimit(10000))
	if err != nil {
		return nil, fmt.Errorf("build condition program: %w", err)
	}
	e.cache[expr] = prg
	return prg, nil
}
