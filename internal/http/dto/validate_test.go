package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tiktok := "tiktok"
	myspace := "myspace"
	tooRisky := 140

	tests := []struct {
		name    string
		req     any
		wantErr string
	}{
		{name: "mark ready any platform", req: MarkReadyRequest{}},
		{name: "mark ready known platform", req: MarkReadyRequest{Platform: &tiktok}},
		{name: "mark ready unknown platform", req: MarkReadyRequest{Platform: &myspace}, wantErr: "platform failed platform"},
		{name: "risk out of range", req: AnalysisResultRequest{RiskScore: &tooRisky}, wantErr: "risk_score failed max"},
		{
			name: "rule ok",
			req:  CreateRuleRequest{Name: "pause losers", Condition: "ctr < 0.5", Action: "PAUSE_CAMPAIGN"},
		},
		{
			name:    "rule unknown action",
			req:     CreateRuleRequest{Name: "x", Condition: "ctr < 0.5", Action: "DELETE_EVERYTHING"},
			wantErr: "action failed action_type",
		},
		{name: "evaluate missing campaign", req: EvaluateActionRequest{Action: "PAUSE_CAMPAIGN"}, wantErr: "campaign_id failed required"},
		{name: "kill switch missing flag", req: KillSwitchRequest{}, wantErr: "enabled failed required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.req)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
