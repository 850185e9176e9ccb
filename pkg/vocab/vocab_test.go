package vocab

import (
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/beadbridge/pkg/model"
)

func TestNormalizeStatus_Synonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Status
	}{
		{"open", model.StatusOpen},
		{"Open", model.StatusOpen},
		{"  todo ", model.StatusOpen},
		{"in_progress", model.StatusInProgress},
		{"in-progress", model.StatusInProgress},
		{"active", model.StatusInProgress},
		{"hooked", model.StatusInProgress},
		{"blocked", model.StatusBlocked},
		{"deferred", model.StatusBlocked},
		{"closed", model.StatusClosed},
		{"DONE", model.StatusClosed},
		{"wont_fix", model.StatusClosed},
		{"mystery-status", model.StatusUnknown},
		{"", model.StatusUnknown},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.raw); got != tt.want {
			t.Errorf("NormalizeStatus(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeStatus_SynonymsCollapse(t *testing.T) {
	// "in-progress" and "active" are different upstream tokens for the same
	// internal state.
	if NormalizeStatus("in-progress") != NormalizeStatus("active") {
		t.Error("in-progress and active should normalize to the same status")
	}
}

func TestNormalizeStatus_Total(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw")
		got := NormalizeStatus(raw)
		if !got.Valid() {
			t.Fatalf("NormalizeStatus(%q) = %q, outside the closed set", raw, got)
		}
	})
}

func TestNormalizeStatus_Deterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw")
		if NormalizeStatus(raw) != NormalizeStatus(raw) {
			t.Fatalf("NormalizeStatus(%q) is not deterministic", raw)
		}
	})
}

func TestRawStatus_RoundTrip(t *testing.T) {
	for _, s := range []model.Status{model.StatusOpen, model.StatusInProgress, model.StatusBlocked, model.StatusClosed} {
		tok, ok := RawStatus(s)
		if !ok {
			t.Fatalf("RawStatus(%q) has no write token", s)
		}
		if got := NormalizeStatus(tok); got != s {
			t.Errorf("NormalizeStatus(RawStatus(%q)) = %q", s, got)
		}
	}

	if _, ok := RawStatus(model.StatusUnknown); ok {
		t.Error("StatusUnknown should have no write token")
	}
}

func TestNormalizePriority(t *testing.T) {
	intp := func(v int) *int { return &v }

	tests := []struct {
		name string
		raw  *int
		want model.Priority
	}{
		{"nil is unset", nil, model.PriorityUnset},
		{"zero is most urgent", intp(0), 0},
		{"in range", intp(3), 3},
		{"clamped high", intp(99), model.PriorityMax},
		{"clamped negative", intp(-7), model.PriorityMin},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePriority(tt.raw); got != tt.want {
				t.Errorf("NormalizePriority = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNormalizePriority_UnsetIsNotLowest(t *testing.T) {
	lowest := int(model.PriorityMax)
	if NormalizePriority(nil) == NormalizePriority(&lowest) {
		t.Error("absent priority must stay distinct from the lowest priority")
	}
}

func TestNormalizePriority_Bounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		v := rapid.Int().Draw(t, "v")
		got := NormalizePriority(&v)
		if got < model.PriorityMin || got > model.PriorityMax {
			t.Fatalf("NormalizePriority(%d) = %d, outside [%d, %d]", v, got, model.PriorityMin, model.PriorityMax)
		}
	})
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		raw  string
		want model.Priority
	}{
		{"critical", 0},
		{"P1", 1},
		{"normal", 2},
		{"low", 3},
		{"", model.PriorityUnset},
		{"whenever", model.PriorityUnset},
	}

	for _, tt := range tests {
		if got := ParsePriority(tt.raw); got != tt.want {
			t.Errorf("ParsePriority(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestNormalizeMutationKind(t *testing.T) {
	tests := []struct {
		raw  string
		want model.MutationKind
	}{
		{"create", model.MutationCreate},
		{"update", model.MutationUpdate},
		{"status", model.MutationUpdate},
		{"delete", model.MutationDelete},
		{"comment", model.MutationComment},
		{"squashed", model.MutationUnknown},
		{"some-future-event", model.MutationUnknown},
	}

	for _, tt := range tests {
		if got := NormalizeMutationKind(tt.raw); got != tt.want {
			t.Errorf("NormalizeMutationKind(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestClassifyDep_UnknownTypesRender(t *testing.T) {
	if ClassifyDep("blocks") != DepBlocking {
		t.Error("blocks should classify as blocking")
	}
	if ClassifyDep("parent-child") != DepHierarchy {
		t.Error("parent-child should classify as hierarchy")
	}
	// Upstream grew from 4 to 9+ edge types across releases; anything new
	// must fall back to a renderable class, never an error.
	if ClassifyDep("quantum-entangled-with") != DepGeneric {
		t.Error("unknown dep types should classify as generic")
	}
}
