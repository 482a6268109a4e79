package hitl

import "testing"

func TestBasePrior(t *testing.T) {
	tests := []struct {
		cat  RiskCategory
		want float64
	}{
		{RiskSafe, 0.95},
		{RiskModerate, 0.70},
		{RiskDestructive, 0.40},
		{RiskCritical, 0.10},
		{RiskCategory("unknown"), 0.70},
	}

	for _, tt := range tests {
		if got := tt.cat.BasePrior(); got != tt.want {
			t.Errorf("BasePrior(%s) = %v, want %v", tt.cat, got, tt.want)
		}
	}
}

func TestObserved(t *testing.T) {
	l := LearnedConfidence{ActionType: "file_write"}
	if l.Observed() {
		t.Error("fresh row should not be observed")
	}
	l.RejectionCount = 1
	if !l.Observed() {
		t.Error("row with a rejection should be observed")
	}
}
