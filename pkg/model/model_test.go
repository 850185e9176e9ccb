package model

import (
	"testing"
	"time"
)

func TestConnectionStateTransitions(t *testing.T) {
	tests := []struct {
		from, to ConnectionState
		ok       bool
	}{
		{ConnUnknown, ConnConnected, true},
		{ConnUnknown, ConnDisconnected, true},
		{ConnConnected, ConnDisconnected, true},
		{ConnDisconnected, ConnConnected, true},
		{ConnConnected, ConnUnknown, false},
		{ConnDisconnected, ConnUnknown, false},
		{ConnUnknown, ConnUnknown, true},
		{ConnConnected, ConnConnected, true},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransition(tt.to); got != tt.ok {
			t.Errorf("%s -> %s = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestPriorityUnsetIsDistinctFromLowest(t *testing.T) {
	if PriorityUnset == PriorityMax {
		t.Fatal("unset priority must not equal the lowest priority")
	}
	if PriorityUnset.Set() {
		t.Error("unset priority reports as set")
	}
	if !PriorityMin.Set() || !PriorityMax.Set() {
		t.Error("bounded priorities must report as set")
	}
}

func TestNewProject(t *testing.T) {
	p := NewProject("/home/alice/work/api/.beads")
	if p.RootPath != "/home/alice/work/api" {
		t.Errorf("root = %q", p.RootPath)
	}
	if p.Name != "api" {
		t.Errorf("name = %q", p.Name)
	}
	if p.Connection != ConnUnknown {
		t.Errorf("fresh project connection = %s, want unknown", p.Connection)
	}
	if len(p.ID) != 12 {
		t.Errorf("id length = %d, want 12", len(p.ID))
	}
}

func TestProjectID_IgnoresTrailingSlash(t *testing.T) {
	if ProjectID("/x/.beads") != ProjectID("/x/.beads/") {
		t.Error("id must be stable under path cleaning")
	}
}

func TestCursorMs(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 500_000_000, time.UTC)
	ev := MutationEvent{Kind: MutationUpdate, IssueID: "bd-1", Timestamp: ts}
	if got := ev.CursorMs(); got != ts.UnixMilli() {
		t.Errorf("CursorMs = %d, want %d", got, ts.UnixMilli())
	}
}
