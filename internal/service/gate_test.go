package service

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/switchyardlabs/switchyard/internal/config"
	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
)

func testGateConfig() *config.Gate {
	cfg := config.Defaults().Gate
	return &cfg
}

func newTestGate(store *mockStore) *GateService {
	return NewGateService(store, nil, testGateConfig())
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClassifyRisk(t *testing.T) {
	tests := []struct {
		actionType string
		want       hitl.RiskCategory
	}{
		{"file_read", hitl.RiskSafe},
		{"dns_record_delete", hitl.RiskDestructive},
		{"git_push_force", hitl.RiskCritical},
		// Substring heuristics for unseen types.
		{"mailbox_search", hitl.RiskSafe},
		{"policy_update", hitl.RiskModerate},
		{"tenant_remove", hitl.RiskDestructive},
		{"table_truncate", hitl.RiskCritical},
		// Safe substrings win over later categories by check order.
		{"get_then_delete", hitl.RiskSafe},
		// Nothing matches: moderate.
		{"reboot_appliance", hitl.RiskModerate},
	}

	for _, tt := range tests {
		t.Run(tt.actionType, func(t *testing.T) {
			if got := ClassifyRisk(tt.actionType); got != tt.want {
				t.Errorf("ClassifyRisk(%q) = %s, want %s", tt.actionType, got, tt.want)
			}
		})
	}
}

func TestGateAlwaysPause(t *testing.T) {
	gate := newTestGate(newMockStore())
	ctx := context.Background()

	// Even a long approval streak cannot unlock the always-pause list.
	for i := 0; i < 50; i++ {
		if _, err := gate.RecordDecision(ctx, hitl.Action{Type: "git_push_force"}, true, ""); err != nil {
			t.Fatal(err)
		}
	}

	pause, reason := gate.ShouldPause(ctx, hitl.Action{Type: "git_push_force"}, nil)
	if !pause {
		t.Errorf("ShouldPause = false, want always-pause (reason %q)", reason)
	}
}

func TestGateConfidenceBlend(t *testing.T) {
	store := newMockStore()
	gate := newTestGate(store)
	ctx := context.Background()

	// Unseen type: pure prior.
	if got := gate.Confidence(ctx, "file_read", nil); !almostEqual(got, 0.95) {
		t.Errorf("unseen safe confidence = %.3f, want prior 0.95", got)
	}

	// 3 approvals, 1 rejection: learned = 0.75, blend = 0.3*0.70 + 0.7*0.75.
	for _, approved := range []bool{true, true, true, false} {
		if _, err := gate.RecordDecision(ctx, hitl.Action{Type: "ticket_update"}, approved, ""); err != nil {
			t.Fatal(err)
		}
	}
	want := 0.3*0.70 + 0.7*0.75
	if got := gate.Confidence(ctx, "ticket_update", nil); !almostEqual(got, want) {
		t.Errorf("blended confidence = %.3f, want %.3f", got, want)
	}
}

func TestGateLearnedConfidenceRatio(t *testing.T) {
	store := newMockStore()
	gate := newTestGate(store)
	ctx := context.Background()

	verdicts := []bool{true, false, true, true, false, true}
	var row *hitl.LearnedConfidence
	var err error
	for _, v := range verdicts {
		row, err = gate.RecordDecision(ctx, hitl.Action{Type: "file_write"}, v, "")
		if err != nil {
			t.Fatal(err)
		}
	}

	if row.ApprovalCount != 4 || row.RejectionCount != 2 {
		t.Fatalf("counts = %d/%d, want 4/2", row.ApprovalCount, row.RejectionCount)
	}
	if !almostEqual(row.Confidence, float64(4)/6) {
		t.Errorf("learned confidence = %.3f, want approvals/(approvals+rejections) = %.3f", row.Confidence, float64(4)/6)
	}
	if len(store.decisions) != len(verdicts) {
		t.Errorf("decision log = %d entries, want %d", len(store.decisions), len(verdicts))
	}
}

func TestGateContextMultipliers(t *testing.T) {
	gate := newTestGate(newMockStore())
	ctx := context.Background()

	tests := []struct {
		name string
		actx *hitl.ActionContext
		want float64
	}{
		{"production environment", &hitl.ActionContext{Environment: "production"}, 0.95 * 0.7},
		{"development environment", &hitl.ActionContext{Environment: "development"}, 0.95 * 1.1},
		{"sensitive path", &hitl.ActionContext{Path: "/etc/prod/main.conf"}, 0.95 * 0.8},
		{"production and sensitive path", &hitl.ActionContext{Environment: "production", Path: "deploy/production.yaml"}, 0.95 * 0.7 * 0.8},
		{"no context", nil, 0.95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := gate.Confidence(ctx, "file_read", tt.actx)
			want := tt.want
			if want > 1 {
				want = 1
			}
			if !almostEqual(got, want) {
				t.Errorf("confidence = %.4f, want %.4f", got, want)
			}
		})
	}
}

func TestGateBulkOverride(t *testing.T) {
	gate := newTestGate(newMockStore())
	ctx := context.Background()

	action := hitl.Action{
		Type:    "file_read",
		Targets: []string{"a", "b", "c", "d"},
	}
	pause, reason := gate.ShouldPause(ctx, action, nil)
	if !pause {
		t.Errorf("bulk safe action not paused (reason %q)", reason)
	}

	action.Targets = action.Targets[:3]
	if pause, _ := gate.ShouldPause(ctx, action, nil); pause {
		t.Error("three targets paused, want at-threshold to pass")
	}
}

func TestGateRateWindow(t *testing.T) {
	gate := newTestGate(newMockStore())
	ctx := context.Background()

	now := time.Unix(1000000, 0)
	gate.now = func() time.Time { return now }

	action := hitl.Action{Type: "file_read"}
	for i := 0; i < 10; i++ {
		gate.RecordAttempt()
		if pause, reason := gate.ShouldPause(ctx, action, nil); pause {
			t.Fatalf("attempt %d paused early: %s", i+1, reason)
		}
		now = now.Add(time.Second)
	}

	gate.RecordAttempt()
	if pause, _ := gate.ShouldPause(ctx, action, nil); !pause {
		t.Error("11th action inside the window not paused")
	}

	// Advance past the window: the old attempts fall out.
	now = now.Add(61 * time.Second)
	gate.RecordAttempt()
	if pause, reason := gate.ShouldPause(ctx, action, nil); pause {
		t.Errorf("action after window expiry paused: %s", reason)
	}
}

func TestGateThreshold(t *testing.T) {
	gate := newTestGate(newMockStore())
	ctx := context.Background()

	// Destructive prior 0.40 < 0.70 pauses.
	if pause, _ := gate.ShouldPause(ctx, hitl.Action{Type: "file_delete"}, nil); !pause {
		t.Error("destructive action with no history not paused")
	}

	// Moderate prior 0.70 is not below the 0.70 threshold.
	if pause, reason := gate.ShouldPause(ctx, hitl.Action{Type: "ticket_update"}, nil); pause {
		t.Errorf("moderate action paused: %s", reason)
	}

	// Safe prior in production: 0.95*0.7 = 0.665 < 0.70 pauses.
	actx := &hitl.ActionContext{Environment: "production"}
	if pause, _ := gate.ShouldPause(ctx, hitl.Action{Type: "file_read"}, actx); !pause {
		t.Error("safe action in production not paused")
	}
}

func TestGateRejectionsLowerConfidence(t *testing.T) {
	gate := newTestGate(newMockStore())
	ctx := context.Background()

	before := gate.Confidence(ctx, "ticket_update", nil)
	for i := 0; i < 5; i++ {
		if _, err := gate.RecordDecision(ctx, hitl.Action{Type: "ticket_update"}, false, "not like this"); err != nil {
			t.Fatal(err)
		}
	}
	after := gate.Confidence(ctx, "ticket_update", nil)

	if after >= before {
		t.Errorf("confidence after rejections = %.3f, want below %.3f", after, before)
	}
	// All rejections: learned 0.0, blend = 0.3 * prior.
	if !almostEqual(after, 0.3*0.70) {
		t.Errorf("confidence = %.3f, want %.3f", after, 0.3*0.70)
	}
}
