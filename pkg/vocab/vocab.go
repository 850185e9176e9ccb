// Package vocab folds the tracker's raw status/priority/event vocabulary
// into the closed internal sets defined in pkg/model, and maps internal
// values back to the tokens the tracker's write API expects.
//
// The mapping tables below are the single source of truth for every
// accepted raw synonym. Adding a new upstream token is a table edit; call
// sites never change. Every function here is total and side-effect-free:
// unrecognized inputs land in the defined fallback bucket, never in an
// error or a panic.
package vocab

import (
	"strings"

	"github.com/vanderheijden86/beadbridge/pkg/model"
)

// statusTable maps every known raw status token (lowercased) to its
// normalized value. The bd tracker's vocabulary has grown release over
// release; synonyms observed in the wild are all listed.
var statusTable = map[string]model.Status{
	"open":    model.StatusOpen,
	"new":     model.StatusOpen,
	"todo":    model.StatusOpen,
	"ready":   model.StatusOpen,
	"backlog": model.StatusOpen,
	"triage":  model.StatusOpen,

	"in_progress": model.StatusInProgress,
	"in-progress": model.StatusInProgress,
	"active":      model.StatusInProgress,
	"started":     model.StatusInProgress,
	"doing":       model.StatusInProgress,
	"wip":         model.StatusInProgress,
	"hooked":      model.StatusInProgress,

	"blocked":  model.StatusBlocked,
	"waiting":  model.StatusBlocked,
	"on_hold":  model.StatusBlocked,
	"on-hold":  model.StatusBlocked,
	"stalled":  model.StatusBlocked,
	"deferred": model.StatusBlocked,

	"closed":    model.StatusClosed,
	"done":      model.StatusClosed,
	"complete":  model.StatusClosed,
	"completed": model.StatusClosed,
	"resolved":  model.StatusClosed,
	"cancelled": model.StatusClosed,
	"canceled":  model.StatusClosed,
	"wont_fix":  model.StatusClosed,
	"wont-fix":  model.StatusClosed,
	"tombstone": model.StatusClosed,
}

// writeTokens maps each normalized status to the raw token the tracker's
// write API accepts. StatusUnknown is intentionally absent: an unknown
// status is renderable but not writable.
var writeTokens = map[model.Status]string{
	model.StatusOpen:       "open",
	model.StatusInProgress: "in_progress",
	model.StatusBlocked:    "blocked",
	model.StatusClosed:     "closed",
}

// NormalizeStatus folds a raw tracker status into the closed internal set.
// Matching is case-insensitive and ignores surrounding whitespace.
func NormalizeStatus(raw string) model.Status {
	if s, ok := statusTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return s
	}
	return model.StatusUnknown
}

// RawStatus returns the tracker write token for a normalized status. The
// second return is false for StatusUnknown (and anything outside the set),
// which has no write representation.
func RawStatus(s model.Status) (string, bool) {
	tok, ok := writeTokens[s]
	return tok, ok
}

// NormalizePriority folds a raw numeric priority into the bounded internal
// range. A nil priority means the tracker reported none; that is preserved
// as PriorityUnset rather than coerced to the lowest value. Out-of-range
// values are clamped.
func NormalizePriority(raw *int) model.Priority {
	if raw == nil {
		return model.PriorityUnset
	}
	p := model.Priority(*raw)
	if p < model.PriorityMin {
		return model.PriorityMin
	}
	if p > model.PriorityMax {
		return model.PriorityMax
	}
	return p
}

// priorityWords maps textual priority tokens (seen in CLI payloads and
// older export formats) to the numeric scale.
var priorityWords = map[string]model.Priority{
	"critical": 0,
	"urgent":   0,
	"p0":       0,
	"high":     1,
	"p1":       1,
	"medium":   2,
	"normal":   2,
	"p2":       2,
	"low":      3,
	"p3":       3,
	"trivial":  4,
	"p4":       4,
}

// ParsePriority folds a textual priority token into the internal range.
// Empty and unrecognized tokens are PriorityUnset.
func ParsePriority(raw string) model.Priority {
	if p, ok := priorityWords[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return p
	}
	return model.PriorityUnset
}

// RawPriority returns the numeric value the tracker's write API expects,
// or false when the priority is unset.
func RawPriority(p model.Priority) (int, bool) {
	if !p.Set() {
		return 0, false
	}
	return int(p), true
}

// mutationTable maps the tracker's mutation event types to the internal
// kinds. The tracker keeps adding event types (status, bonded, squashed,
// burned, ...); anything unlisted falls into MutationUnknown, which
// consumers treat as an update for invalidation.
var mutationTable = map[string]model.MutationKind{
	"create":  model.MutationCreate,
	"created": model.MutationCreate,
	"update":  model.MutationUpdate,
	"updated": model.MutationUpdate,
	"status":  model.MutationUpdate,
	"delete":  model.MutationDelete,
	"deleted": model.MutationDelete,
	"burned":  model.MutationDelete,
	"comment": model.MutationComment,
}

// NormalizeMutationKind folds a raw mutation event type into the internal
// kind set.
func NormalizeMutationKind(raw string) model.MutationKind {
	if k, ok := mutationTable[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return k
	}
	return model.MutationUnknown
}

// DepClass is a coarse rendering hint for dependency edge types. The edge
// type itself is an open string set owned by the tracker, so the class
// exists purely so views can pick an arrow style without enumerating every
// upstream type.
type DepClass string

const (
	DepBlocking  DepClass = "blocking"
	DepHierarchy DepClass = "hierarchy"
	DepReference DepClass = "reference"
	DepGeneric   DepClass = "generic"
)

var depClassTable = map[string]DepClass{
	"blocks":          DepBlocking,
	"waits-on":        DepBlocking,
	"conditional-on":  DepBlocking,
	"parent-child":    DepHierarchy,
	"epic":            DepHierarchy,
	"related":         DepReference,
	"discovered-from": DepReference,
	"duplicate-of":    DepReference,
	"replies-to":      DepReference,
	"tracks":          DepReference,
}

// ClassifyDep returns the rendering class for a dependency edge type.
// Unknown types get DepGeneric so new upstream types render without a
// client release.
func ClassifyDep(depType string) DepClass {
	if c, ok := depClassTable[strings.ToLower(strings.TrimSpace(depType))]; ok {
		return c
	}
	return DepGeneric
}
