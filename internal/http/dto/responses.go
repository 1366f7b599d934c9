package dto

type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	// Details carries the structured rejection (allowed actions, guard name).
	Details any `json:"details,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type KillSwitchResponse struct {
	ProjectID         string `json:"project_id"`
	AutomationEnabled bool   `json:"automation_enabled"`
}
