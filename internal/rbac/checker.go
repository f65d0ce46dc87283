package rbac

import "strings"

// Principal is the authenticated caller as seen by every service:
// the subject id plus its parsed role.
type Principal struct {
	ID   string
	Role Role
}

func (p Principal) IsAdmin() bool      { return p.Role == RoleAdmin }
func (p Principal) IsInstructor() bool { return p.Role == RoleInstructor }
func (p Principal) IsCandidate() bool  { return p.Role == RoleCandidate }

// CanManageExam reports whether p may mutate an exam owned by instructorID.
// Admins bypass ownership; instructors must own the exam.
func (p Principal) CanManageExam(instructorID string) bool {
	if p.IsAdmin() {
		return true
	}
	return p.IsInstructor() && p.ID == instructorID
}

// CanViewSubmission reports whether p may read a submission owned by
// candidateID for an exam owned by instructorID.
func (p Principal) CanViewSubmission(candidateID, instructorID string) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleInstructor:
		return p.ID == instructorID
	case RoleCandidate:
		return p.ID == candidateID
	}
	return false
}

type Checker struct {
	RolePermissions map[Role][]string
}

func NewChecker(rp map[Role][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role Role, perm string) bool {
	perms, ok := c.RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == "*" || matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role Role, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
