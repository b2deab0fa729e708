package service

import (
	"slices"

	"github.com/mtlprog/taskflow/internal/domain"
)

// UpdateRecipients returns the post-mutation assignees, minus the actor.
func UpdateRecipients(task *domain.Task, actorID string) []string {
	return resolveRecipients(actorID, task.AssigneeIDs...)
}

// CommentRecipients returns the creator and all assignees, minus the commenter.
func CommentRecipients(task *domain.Task, authorID string) []string {
	candidates := append([]string{task.CreatorID}, task.AssigneeIDs...)
	return resolveRecipients(authorID, candidates...)
}

// AssignmentRecipients returns only the newly added assignee, unless they assigned themselves.
func AssignmentRecipients(assigneeID, actorID string) []string {
	return resolveRecipients(actorID, assigneeID)
}

// resolveRecipients deduplicates candidates and always drops the actor.
func resolveRecipients(actorID string, candidates ...string) []string {
	set := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if id == "" || id == actorID {
			continue
		}
		set[id] = struct{}{}
	}

	recipients := make([]string, 0, len(set))
	for id := range set {
		recipients = append(recipients, id)
	}
	slices.Sort(recipients)
	return recipients
}
