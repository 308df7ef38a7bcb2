package model

import "time"

// Role is a caller's effective role on a project. It is derived on every
// call and never stored for owners.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
	RoleNone   Role = "none"
)

// IsMembershipRole reports whether r may be stored on a membership row.
func (r Role) IsMembershipRole() bool {
	return r == RoleAdmin || r == RoleMember
}

// Membership places a user on a project with a stored role (admin or member).
type Membership struct {
	ProjectID string    `json:"projectId" db:"project_id"`
	UserID    string    `json:"userId"    db:"user_id"`
	Role      Role      `json:"role"      db:"role"`
	JoinedAt  time.Time `json:"joinedAt"  db:"joined_at"`
}

// RoleInfo is the result of resolving a caller against a project.
type RoleInfo struct {
	IsOwner  bool `json:"isOwner"`
	IsAdmin  bool `json:"isAdmin"`
	IsMember bool `json:"isMember"`
	IsPower  bool `json:"isPower"`
	Role     Role `json:"role"`
}

// NoRole is the result for anonymous callers and missing projects.
var NoRole = RoleInfo{Role: RoleNone}

// ResolveRole computes userID's role on project. First match wins: owner,
// then admin, then member. A nil project or empty userID yields NoRole.
//
// Admins are also members: the membership set contains both.
func ResolveRole(project *Project, userID string, memberships []Membership) RoleInfo {
	if project == nil || userID == "" {
		return NoRole
	}

	if project.OwnerID == userID {
		return RoleInfo{IsOwner: true, IsPower: true, Role: RoleOwner}
	}

	var stored Role
	for _, m := range memberships {
		if m.ProjectID != project.ID || m.UserID != userID {
			continue
		}
		if m.Role == RoleAdmin {
			stored = RoleAdmin
			break
		}
		if m.Role == RoleMember {
			stored = RoleMember
		}
	}

	switch stored {
	case RoleAdmin:
		return RoleInfo{IsAdmin: true, IsMember: true, IsPower: true, Role: RoleAdmin}
	case RoleMember:
		return RoleInfo{IsMember: true, Role: RoleMember}
	}
	return NoRole
}
