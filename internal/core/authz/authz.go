// Package authz holds every allow/deny decision for tasks and comments.
//
// All functions are pure: they look only at the caller's identity and the
// stored resource, never at ids supplied in a request body. Admin short
// circuits wherever the role alone is enough; every other check compares
// the caller's numeric id against ownership or the assignment set.
package authz

import (
	"fmt"

	"github.com/taskboard/task-system/internal/core/domain"
)

// Decision is the outcome of an authorization check.
type Decision struct {
	Allowed bool
	// Reason explains a denial. Empty when Allowed.
	Reason string
}

var allow = Decision{Allowed: true}

func deny(reason string) Decision {
	return Decision{Reason: reason}
}

// Err converts a denial into an error wrapping domain.ErrForbidden, or
// domain.ErrUnauthenticated when no identity was supplied. Allowed decisions
// return nil.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	if d.Reason == reasonUnauthenticated {
		return domain.ErrUnauthenticated
	}
	return fmt.Errorf("%w: %s", domain.ErrForbidden, d.Reason)
}

func (d Decision) String() string {
	if d.Allowed {
		return "allow"
	}
	return "deny: " + d.Reason
}

const reasonUnauthenticated = "not authenticated"

// TaskWriteScope lists what a caller may change on an existing task.
type TaskWriteScope struct {
	// Fields covers title, description, category, priority, status,
	// progress and dates.
	Fields bool
	// Assignees covers the assignment set.
	Assignees bool
}

// CanCreateTask decides a task creation carrying assigneeCount assignees.
// Any authenticated caller may create; only admins may assign.
func CanCreateTask(caller domain.Identity, assigneeCount int) Decision {
	if !caller.Authenticated() {
		return deny(reasonUnauthenticated)
	}
	if assigneeCount > 0 && !caller.IsAdmin() {
		return deny("only admins can assign tasks")
	}
	return allow
}

// CanReadTask allows admins, the creator and any assignee.
func CanReadTask(caller domain.Identity, task *domain.Task) Decision {
	if !caller.Authenticated() {
		return deny(reasonUnauthenticated)
	}
	if caller.IsAdmin() || task.IsCreator(caller.ID) || task.IsAssignee(caller.ID) {
		return allow
	}
	return deny("not authorized to view this task")
}

// CanUpdateTask allows the same callers as CanReadTask.
func CanUpdateTask(caller domain.Identity, task *domain.Task) Decision {
	if d := CanReadTask(caller, task); !d.Allowed {
		if d.Reason == reasonUnauthenticated {
			return d
		}
		return deny("not authorized to update this task")
	}
	return allow
}

// WriteScope reports which parts of task the caller may change. A caller
// without the assignee right still gets Fields so that an update carrying
// an assignment list is applied without it instead of being rejected.
func WriteScope(caller domain.Identity, task *domain.Task) TaskWriteScope {
	if !CanUpdateTask(caller, task).Allowed {
		return TaskWriteScope{}
	}
	return TaskWriteScope{Fields: true, Assignees: caller.IsAdmin()}
}

// CanDeleteTask allows admins and the creator. Assignees may not delete.
func CanDeleteTask(caller domain.Identity, task *domain.Task) Decision {
	if !caller.Authenticated() {
		return deny(reasonUnauthenticated)
	}
	if caller.IsAdmin() || task.IsCreator(caller.ID) {
		return allow
	}
	return deny("not authorized to delete this task")
}

// CanCommentOnTask applies the task read rule to the parent task.
func CanCommentOnTask(caller domain.Identity, task *domain.Task) Decision {
	if d := CanReadTask(caller, task); !d.Allowed {
		if d.Reason == reasonUnauthenticated {
			return d
		}
		return deny("not authorized to comment on this task")
	}
	return allow
}

// CanListComments allows any authenticated caller.
func CanListComments(caller domain.Identity) Decision {
	if !caller.Authenticated() {
		return deny(reasonUnauthenticated)
	}
	return allow
}

// CanEditComment allows admins and the author.
func CanEditComment(caller domain.Identity, comment *domain.Comment) Decision {
	return commentOwner(caller, comment, "not authorized to edit this comment")
}

// CanDeleteComment allows admins and the author.
func CanDeleteComment(caller domain.Identity, comment *domain.Comment) Decision {
	return commentOwner(caller, comment, "not authorized to delete this comment")
}

func commentOwner(caller domain.Identity, comment *domain.Comment, reason string) Decision {
	if !caller.Authenticated() {
		return deny(reasonUnauthenticated)
	}
	if caller.IsAdmin() || comment.UserID == caller.ID {
		return allow
	}
	return deny(reason)
}

// CanListUsers allows admins only.
func CanListUsers(caller domain.Identity) Decision {
	if !caller.Authenticated() {
		return deny(reasonUnauthenticated)
	}
	if !caller.IsAdmin() {
		return deny("only admins can view all users")
	}
	return allow
}
