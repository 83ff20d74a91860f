package authz

import "github.com/taskboard/task-system/internal/core/domain"

// Visibility is the predicate selecting the tasks an identity may list.
// Storage backends translate it into their own query language; Allows is
// the in-memory form and must agree with CanReadTask.
type Visibility struct {
	// Unrestricted is set for admins.
	Unrestricted bool
	// UserID is matched against the creator and the assignment set.
	UserID int64
}

// VisibilityFor builds the listing predicate for caller. An unauthenticated
// caller gets a predicate that matches nothing.
func VisibilityFor(caller domain.Identity) Visibility {
	if !caller.Authenticated() {
		return Visibility{}
	}
	if caller.IsAdmin() {
		return Visibility{Unrestricted: true}
	}
	return Visibility{UserID: caller.ID}
}

// MembershipToken is the substring storage looks for in the encoded
// assignment column.
func (v Visibility) MembershipToken() string {
	return domain.MembershipToken(v.UserID)
}

// Allows evaluates the predicate against a single task.
func (v Visibility) Allows(task *domain.Task) bool {
	if v.Unrestricted {
		return true
	}
	if v.UserID <= 0 {
		return false
	}
	return task.IsCreator(v.UserID) || domain.EncodedContains(task.AssignedTo.Encode(), v.UserID)
}
