package models

import (
	"time"

	"github.com/google/uuid"
)

type AssetType string

const (
	AssetTypeVideo AssetType = "video"
	AssetTypeImage AssetType = "image"
	AssetTypeText  AssetType = "text"
)

type AssetState string

// Asset states
const (
	AssetStateUploaded       AssetState = "UPLOADED"
	AssetStateAnalyzing      AssetState = "ANALYZING"
	AssetStateApproved       AssetState = "APPROVED"
	AssetStateBlocked        AssetState = "BLOCKED"
	AssetStateReadyForLaunch AssetState = "READY_FOR_LAUNCH"
	AssetStateUsedInCampaign AssetState = "USED_IN_CAMPAIGN"
)

type Asset struct {
	ID                    uuid.UUID  `json:"id"`
	ProjectID             uuid.UUID  `json:"project_id"`
	Type                  AssetType  `json:"type"`
	State                 AssetState `json:"state"`
	RiskScore             *int       `json:"risk_score,omitempty"`
	QualityScore          *int       `json:"quality_score,omitempty"`
	PlatformCompatibility []Platform `json:"platform_compatibility"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (a *Asset) IsCompatibleWith(p Platform) bool {
	for _, c := range a.PlatformCompatibility {
		if c == p {
			return true
		}
	}
	return false
}

// AnalysisResult is what the creative-compliance analyzer reports back for an asset.
type AnalysisResult struct {
	Approved              bool       `json:"approved"`
	RiskScore             *int       `json:"risk_score,omitempty"`
	QualityScore          *int       `json:"quality_score,omitempty"`
	PlatformCompatibility []Platform `json:"platform_compatibility"`
}
