package guards

import (
	"fmt"

	"github.com/adpilot/backend/internal/models"
)

// DefaultRiskThreshold is the highest analyzer risk score an asset may carry
// and still be marked ready.
const DefaultRiskThreshold = 50

// Asset guard codes
const (
	CodeAssetNotApproved     = "ASSET_NOT_APPROVED"
	CodeRiskTooHigh          = "RISK_TOO_HIGH"
	CodePlatformIncompatible = "PLATFORM_INCOMPATIBLE"
)

// AssetReadyContext carries the inputs of the asset-ready guard. A nil
// RiskThreshold means DefaultRiskThreshold; zero admits only assets scored 0.
type AssetReadyContext struct {
	Asset          *models.Asset
	RiskThreshold  *int
	TargetPlatform *models.Platform
}

var AssetReady = NewSet("asset_ready",
	Guard[AssetReadyContext]{Name: "asset_approved", Check: assetApproved},
	Guard[AssetReadyContext]{Name: "risk_score", Check: riskWithinThreshold},
	Guard[AssetReadyContext]{Name: "platform_compatibility", Check: platformCompatible},
)

func assetApproved(c AssetReadyContext) Result {
	if c.Asset.State != models.AssetStateApproved {
		if c.Asset.RiskScore != nil {
			return Deny(CodeAssetNotApproved, fmt.Sprintf("asset is %s with risk score %d, must be APPROVED", c.Asset.State, *c.Asset.RiskScore))
		}
		return Deny(CodeAssetNotApproved, fmt.Sprintf("asset is %s, must be APPROVED", c.Asset.State))
	}
	return Allow()
}

func riskWithinThreshold(c AssetReadyContext) Result {
	threshold := DefaultRiskThreshold
	if c.RiskThreshold != nil {
		threshold = *c.RiskThreshold
	}
	if c.Asset.RiskScore != nil && *c.Asset.RiskScore > threshold {
		return Deny(CodeRiskTooHigh, fmt.Sprintf("risk score %d exceeds threshold %d", *c.Asset.RiskScore, threshold))
	}
	return Allow()
}

func platformCompatible(c AssetReadyContext) Result {
	if c.TargetPlatform == nil {
		return Allow()
	}
	if !c.Asset.IsCompatibleWith(*c.TargetPlatform) {
		return Deny(CodePlatformIncompatible, fmt.Sprintf("asset is not compatible with %s", *c.TargetPlatform))
	}
	return Allow()
}
