package safety

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/adpilot/backend/internal/models"
)

// CycleTracker remembers which campaigns already received an action during the
// current sweep. It gives no guarantee across processes.
type CycleTracker struct {
	mu    sync.Mutex
	acted map[uuid.UUID]struct{}
}

func NewCycleTracker() *CycleTracker {
	return &CycleTracker{acted: make(map[uuid.UUID]struct{})}
}

func (t *CycleTracker) Reset() {
	t.mu.Lock()
	t.acted = make(map[uuid.UUID]struct{})
	t.mu.Unlock()
}

func (t *CycleTracker) HasActed(campaignID uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.acted[campaignID]
	return ok
}

func (t *CycleTracker) MarkActed(campaignID uuid.UUID) {
	t.mu.Lock()
	t.acted[campaignID] = struct{}{}
	t.mu.Unlock()
}

// Check returns the rejection for a campaign that already acted this cycle.
func (t *CycleTracker) Check(campaignID uuid.UUID) Decision {
	if t.HasActed(campaignID) {
		return Decision{
			Reason:      "campaign already received an action in this sweep",
			SkipReason:  ReasonAlreadyActedThisCycle,
			FailedCheck: "single_action_per_cycle",
		}
	}
	return Decision{Allowed: true}
}

// SoftLaunchEligible reports whether a freshly launched campaign should get the
// soft-launch treatment: launched within window and not already soft-launched.
func SoftLaunchEligible(c *models.Campaign, now time.Time, window time.Duration) bool {
	if c.SoftLaunch || c.LaunchedAt == nil || c.State != models.CampaignStateActive {
		return false
	}
	return now.Sub(*c.LaunchedAt) < window
}
