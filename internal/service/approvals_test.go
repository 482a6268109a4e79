package service

import (
	"context"
	"testing"
	"time"

	"github.com/switchyardlabs/switchyard/internal/domain/hitl"
)

func newTestApprovals(store *mockStore, hub *mockHub, queue *mockQueue, timeout time.Duration) *ApprovalService {
	gate := newTestGate(store)
	if hub == nil {
		return NewApprovalService(gate, nil, nil, nil, timeout)
	}
	return NewApprovalService(gate, hub, queue, nil, timeout)
}

func TestApprovalResolved(t *testing.T) {
	store := newMockStore()
	hub := &mockHub{}
	queue := &mockQueue{}
	svc := newTestApprovals(store, hub, queue, time.Minute)

	action := hitl.Action{Type: "dns_record_delete", Targets: []string{"mx.example.com"}}

	done := make(chan bool, 1)
	go func() {
		approved, err := svc.Await(context.Background(), action, "confidence below threshold", 0.40)
		if err != nil {
			t.Error(err)
		}
		done <- approved
	}()

	// Wait until the request is registered, then resolve it.
	var id string
	deadline := time.Now().Add(2 * time.Second)
	for id == "" {
		if time.Now().After(deadline) {
			t.Fatal("approval request never registered")
		}
		if pending := svc.Pending(); len(pending) == 1 {
			id = pending[0].ID
		} else {
			time.Sleep(time.Millisecond)
		}
	}

	if !svc.Resolve(id, true, "looks fine") {
		t.Fatal("Resolve returned false for a pending approval")
	}

	select {
	case approved := <-done:
		if !approved {
			t.Error("Await = false, want approved")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Await did not return after Resolve")
	}

	// The human verdict was recorded into the learned confidence.
	row, err := store.GetLearnedConfidence(context.Background(), "dns_record_delete")
	if err != nil {
		t.Fatalf("learned confidence missing: %v", err)
	}
	if row.ApprovalCount != 1 || row.RejectionCount != 0 {
		t.Errorf("counts = %d/%d, want 1/0", row.ApprovalCount, row.RejectionCount)
	}
}

func TestApprovalTimeoutDeniesWithoutRecording(t *testing.T) {
	store := newMockStore()
	svc := newTestApprovals(store, nil, nil, 20*time.Millisecond)

	approved, err := svc.Await(context.Background(), hitl.Action{Type: "file_delete"}, "below threshold", 0.40)
	if err != nil {
		t.Fatal(err)
	}
	if approved {
		t.Error("timed-out approval = true, want denied")
	}

	// Timeouts are not human verdicts and must not feed the learner.
	if len(store.decisions) != 0 {
		t.Errorf("decisions recorded on timeout: %d", len(store.decisions))
	}
}

func TestApprovalRejectionRecorded(t *testing.T) {
	store := newMockStore()
	svc := newTestApprovals(store, nil, nil, time.Minute)

	go func() {
		var id string
		for id == "" {
			if pending := svc.Pending(); len(pending) == 1 {
				id = pending[0].ID
			} else {
				time.Sleep(time.Millisecond)
			}
		}
		svc.Resolve(id, false, "too risky right now")
	}()

	approved, err := svc.Await(context.Background(), hitl.Action{Type: "user_offboard"}, "below threshold", 0.40)
	if err != nil {
		t.Fatal(err)
	}
	if approved {
		t.Error("Await = true, want rejected")
	}

	if len(store.decisions) != 1 {
		t.Fatalf("decisions = %d, want 1", len(store.decisions))
	}
	d := store.decisions[0]
	if d.Approved || d.Feedback != "too risky right now" {
		t.Errorf("decision = %+v", d)
	}
}

func TestApprovalResolveUnknownID(t *testing.T) {
	svc := newTestApprovals(newMockStore(), nil, nil, time.Minute)
	if svc.Resolve("nope", true, "") {
		t.Error("Resolve returned true for unknown ID")
	}
}

func TestApprovalContextCancelled(t *testing.T) {
	svc := newTestApprovals(newMockStore(), nil, nil, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Await(ctx, hitl.Action{Type: "file_delete"}, "below threshold", 0.40)
	if err == nil {
		t.Error("Await with cancelled context returned nil error")
	}
}
