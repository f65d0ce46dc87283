package rbac

// Role is the closed set of account roles. Everything that branches on a
// role goes through these constants; raw strings from tokens or the DB are
// parsed once at the edge.
type Role string

const (
	RoleCandidate  Role = "candidate"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleCandidate, RoleInstructor, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

func (r Role) Valid() bool {
	_, ok := ParseRole(string(r))
	return ok
}

// Default permission policy.
var RolePermissions = map[Role][]string{
	RoleCandidate: {
		"exam:view",
		"submission:start",
		"submission:save",
		"submission:submit",
		"submission:view-own",
	},
	RoleInstructor: {
		"exam:create",
		"exam:view",
		"exam:update-own",
		"exam:delete-own",
		"submission:view-exam",
		"submission:grade",
	},
	RoleAdmin: {
		"*", // everything
	},
}
