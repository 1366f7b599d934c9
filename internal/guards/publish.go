package guards

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/statemachine"
)

// Publish guard codes
const (
	CodeNoReadyAssets                = "NO_READY_ASSETS"
	CodeAccountCannotLaunch          = "ACCOUNT_CANNOT_LAUNCH"
	CodeAudienceIncomplete           = "AUDIENCE_INCOMPLETE"
	CodeUnsupportedObjective         = "UNSUPPORTED_OBJECTIVE"
	CodePlatformObjectiveUnsupported = "PLATFORM_OBJECTIVE_UNSUPPORTED"
	CodeNoCompatibleAsset            = "NO_COMPATIBLE_ASSET"
)

// SupportedObjective is the only objective the publisher can translate today.
const SupportedObjective = models.ObjectiveConversions

// DefaultPlatformObjectives lists the objectives each network accepts.
var DefaultPlatformObjectives = map[models.Platform][]models.Objective{
	models.PlatformGoogle:   {models.ObjectiveConversions, models.ObjectiveTraffic, models.ObjectiveAwareness},
	models.PlatformTikTok:   {models.ObjectiveConversions, models.ObjectiveTraffic},
	models.PlatformSnapchat: {models.ObjectiveConversions, models.ObjectiveAwareness},
}

// PublishContext carries an intent with the assets and connections it references.
type PublishContext struct {
	Intent   *models.CampaignIntent
	Assets   []*models.Asset
	Accounts map[uuid.UUID]*models.AdAccountConnection
}

func (c PublishContext) readyAssets() []*models.Asset {
	var out []*models.Asset
	for _, a := range c.Assets {
		if a.State == models.AssetStateReadyForLaunch {
			out = append(out, a)
		}
	}
	return out
}

// NewPublishGuard builds the campaign-publish guard set. A nil objectives table
// falls back to DefaultPlatformObjectives.
func NewPublishGuard(reg *statemachine.Registry, objectives map[models.Platform][]models.Objective) *Set[PublishContext] {
	if objectives == nil {
		objectives = DefaultPlatformObjectives
	}
	return NewSet("campaign_publish",
		Guard[PublishContext]{Name: "ready_assets", Check: hasReadyAssets},
		Guard[PublishContext]{Name: "account_launch_permission", Check: func(c PublishContext) Result {
			return accountsCanLaunch(reg, c)
		}},
		Guard[PublishContext]{Name: "audience_complete", Check: audienceComplete},
		Guard[PublishContext]{Name: "objective_supported", Check: objectiveSupported},
		Guard[PublishContext]{Name: "platform_objective", Check: func(c PublishContext) Result {
			return platformsSupportObjective(objectives, c)
		}},
		Guard[PublishContext]{Name: "platform_assets", Check: platformsHaveAssets},
	)
}

func hasReadyAssets(c PublishContext) Result {
	if len(c.readyAssets()) == 0 {
		return Deny(CodeNoReadyAssets, "at least one asset must be READY_FOR_LAUNCH")
	}
	return Allow()
}

func accountsCanLaunch(reg *statemachine.Registry, c PublishContext) Result {
	if len(c.Intent.AccountSelections) == 0 {
		return Deny(CodeAccountCannotLaunch, "no ad account selected")
	}
	for _, sel := range c.Intent.AccountSelections {
		acc, ok := c.Accounts[sel.ConnectionID]
		if !ok {
			return Deny(CodeAccountCannotLaunch, fmt.Sprintf("ad account %s not found", sel.ConnectionID))
		}
		if !acc.IsUsable() || !reg.IsAdAccountActionAllowed(acc.State, acc.Permissions, statemachine.ActionLaunch) {
			return Deny(CodeAccountCannotLaunch, fmt.Sprintf("%s ad account %s cannot launch campaigns (state %s)", acc.Platform, acc.ID, acc.State))
		}
	}
	return Allow()
}

func audienceComplete(c PublishContext) Result {
	a := c.Intent.Audience
	if len(a.Countries) == 0 {
		return Deny(CodeAudienceIncomplete, "audience needs at least one country")
	}
	if len(a.Languages) == 0 {
		return Deny(CodeAudienceIncomplete, "audience needs at least one language")
	}
	return Allow()
}

func objectiveSupported(c PublishContext) Result {
	if c.Intent.Objective != SupportedObjective {
		return Deny(CodeUnsupportedObjective, fmt.Sprintf("objective %s is not supported, use %s", c.Intent.Objective, SupportedObjective))
	}
	return Allow()
}

func platformsSupportObjective(objectives map[models.Platform][]models.Objective, c PublishContext) Result {
	for _, p := range c.Intent.Platforms() {
		supported := false
		for _, o := range objectives[p] {
			if o == c.Intent.Objective {
				supported = true
				break
			}
		}
		if !supported {
			return Deny(CodePlatformObjectiveUnsupported, fmt.Sprintf("%s does not support objective %s", p, c.Intent.Objective))
		}
	}
	return Allow()
}

func platformsHaveAssets(c PublishContext) Result {
	ready := c.readyAssets()
	for _, p := range c.Intent.Platforms() {
		found := false
		for _, a := range ready {
			if a.IsCompatibleWith(p) {
				found = true
				break
			}
		}
		if !found {
			return Deny(CodeNoCompatibleAsset, fmt.Sprintf("no ready asset is compatible with %s", p))
		}
	}
	return Allow()
}
