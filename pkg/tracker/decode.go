package tracker

import (
	"sort"
	"strings"

	"github.com/vanderheijden86/beadbridge/pkg/model"
	"github.com/vanderheijden86/beadbridge/pkg/vocab"
)

func decodeIssue(r *rawIssue) model.Issue {
	iss := model.Issue{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Notes:       r.Notes,
		Status:      vocab.NormalizeStatus(r.Status),
		RawStatus:   r.Status,
		Priority:    vocab.NormalizePriority(r.Priority),
		IssueType:   r.IssueType,
		Assignee:    r.Assignee,
		Labels:      r.Labels,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		ClosedAt:    r.ClosedAt,
	}
	for _, d := range r.Dependencies {
		if d == nil {
			continue
		}
		iss.Dependencies = append(iss.Dependencies, decodeDependency(d))
	}
	for _, d := range r.Dependents {
		if d == nil {
			continue
		}
		iss.Dependents = append(iss.Dependents, decodeDependency(d))
	}
	for _, c := range r.Comments {
		if c == nil {
			continue
		}
		iss.Comments = append(iss.Comments, decodeComment(c))
	}
	return iss
}

func decodeDependency(r *rawDependency) *model.Dependency {
	return &model.Dependency{
		IssueID:     r.IssueID,
		DependsOnID: r.DependsOnID,
		Type:        r.Type,
		CreatedAt:   r.CreatedAt,
		CreatedBy:   r.CreatedBy,
	}
}

func decodeComment(r *rawComment) *model.Comment {
	return &model.Comment{
		ID:        r.ID,
		IssueID:   r.IssueID,
		Author:    r.Author,
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
	}
}

func decodeIssues(raw []*rawIssue) []model.Issue {
	issues := make([]model.Issue, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		issues = append(issues, decodeIssue(r))
	}
	return issues
}

// decodeMutations folds raw events into the internal kind set and orders
// them by timestamp (the daemon already delivers cursor order; sorting is a
// guard against older daemons).
func decodeMutations(raw []rawMutation) []model.MutationEvent {
	events := make([]model.MutationEvent, 0, len(raw))
	for _, r := range raw {
		events = append(events, model.MutationEvent{
			Kind:      vocab.NormalizeMutationKind(r.Type),
			IssueID:   r.IssueID,
			Timestamp: r.Timestamp,
		})
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.Before(events[j].Timestamp)
	})
	return events
}

func encodeListArgs(filter ListFilter) listArgs {
	args := listArgs{
		Assignee: filter.Assignee,
		Labels:   filter.Labels,
		IDs:      filter.IDs,
		Limit:    filter.Limit,
	}
	if filter.Status != "" {
		if tok, ok := vocab.RawStatus(filter.Status); ok {
			args.Status = tok
		}
	}
	if filter.Priority != nil {
		if v, ok := vocab.RawPriority(*filter.Priority); ok {
			args.Priority = &v
		}
	}
	if filter.UpdatedAfter > 0 {
		args.UpdatedAfter = cursorToISO(filter.UpdatedAfter)
	}
	return args
}

func encodeCreateArgs(fields CreateFields) createArgs {
	args := createArgs{
		Title:        fields.Title,
		Description:  fields.Description,
		IssueType:    fields.IssueType,
		Notes:        fields.Notes,
		Assignee:     fields.Assignee,
		Labels:       fields.Labels,
		Dependencies: fields.Dependencies,
	}
	if args.IssueType == "" {
		args.IssueType = "task"
	}
	if v, ok := vocab.RawPriority(fields.Priority); ok {
		args.Priority = v
	} else {
		args.Priority = 2 // tracker default
	}
	return args
}

func encodeUpdateArgs(id string, fields UpdateFields) updateArgs {
	args := updateArgs{
		ID:          id,
		Title:       fields.Title,
		Description: fields.Description,
		Notes:       fields.Notes,
		Assignee:    fields.Assignee,
	}
	if fields.Status != nil {
		if tok, ok := vocab.RawStatus(*fields.Status); ok {
			args.Status = &tok
		}
	}
	if fields.Priority != nil {
		if v, ok := vocab.RawPriority(*fields.Priority); ok {
			args.Priority = &v
		}
	}
	return args
}

// notFoundError wraps an operation error whose message indicates a missing
// issue so callers can errors.Is(err, ErrNotFound).
func notFoundError(op, msg string) error {
	if strings.Contains(strings.ToLower(msg), "not found") {
		return &OperationError{Op: op, Message: msg, Err: ErrNotFound}
	}
	return &OperationError{Op: op, Message: msg}
}
