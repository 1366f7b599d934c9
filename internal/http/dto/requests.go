package dto

type MarkReadyRequest struct {
	// Platform narrows the compatibility check; empty requires any platform.
	Platform *string `json:"platform,omitempty" validate:"omitempty,platform"`
}

type RegisterAssetRequest struct {
	Type string `json:"type" validate:"required,oneof=video image text"`
}

type AccountSelectionRequest struct {
	ConnectionID string `json:"connection_id" validate:"required,uuid"`
	Platform     string `json:"platform" validate:"required,platform"`
}

type AudienceRequest struct {
	Countries []string `json:"countries" validate:"dive,len=2"`
	Languages []string `json:"languages" validate:"dive,min=2,max=5"`
	AgeMin    *int     `json:"age_min,omitempty" validate:"omitempty,min=13,max=100"`
	AgeMax    *int     `json:"age_max,omitempty" validate:"omitempty,min=13,max=100"`
}

type CreateIntentRequest struct {
	AssetIDs          []string                  `json:"asset_ids" validate:"required,min=1,dive,uuid"`
	AccountSelections []AccountSelectionRequest `json:"account_selections" validate:"required,min=1,dive"`
	Audience          AudienceRequest           `json:"audience"`
	Objective         string                    `json:"objective" validate:"required,oneof=CONVERSIONS TRAFFIC AWARENESS"`
	DailyBudget       float64                   `json:"daily_budget" validate:"gt=0"`
}

type AnalysisResultRequest struct {
	Approved              bool     `json:"approved"`
	RiskScore             *int     `json:"risk_score,omitempty" validate:"omitempty,min=0,max=100"`
	QualityScore          *int     `json:"quality_score,omitempty" validate:"omitempty,min=0,max=100"`
	PlatformCompatibility []string `json:"platform_compatibility" validate:"dive,platform"`
}

type CreateRuleRequest struct {
	Name            string         `json:"name" validate:"required,max=200"`
	Condition       string         `json:"condition" validate:"required,max=2000"`
	Action          string         `json:"action" validate:"required,action_type"`
	ActionParams    map[string]any `json:"action_params,omitempty"`
	CampaignIDs     []string       `json:"campaign_ids,omitempty" validate:"dive,uuid"`
	CooldownMinutes int            `json:"cooldown_minutes" validate:"min=0,max=10080"`
}

type EvaluateActionRequest struct {
	CampaignID string  `json:"campaign_id" validate:"required,uuid"`
	RuleID     *string `json:"rule_id,omitempty" validate:"omitempty,uuid"`
	Action     string  `json:"action" validate:"required,action_type"`
	Percent    float64 `json:"percent" validate:"min=0,max=1000"`
}

type KillSwitchRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

type ConnectRequest struct {
	Platform string `json:"platform" validate:"required,platform"`
}

type UpdatePermissionsRequest struct {
	CanAnalyze  bool `json:"can_analyze"`
	CanLaunch   bool `json:"can_launch"`
	CanOptimize bool `json:"can_optimize"`
}
