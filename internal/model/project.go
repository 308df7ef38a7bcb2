package model

import "time"

// RepoSummary is the denormalized view of the connected repository kept on
// the project row so listings need no join.
type RepoSummary struct {
	Name  string `json:"name"`
	Owner string `json:"owner"`
	URL   string `json:"url"`
}

// Project is a named unit of collaboration owned by exactly one user.
//
// InviteCodeHash holds the bcrypt hash of the current invite code. The
// plaintext is shown once when generated and never stored.
type Project struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description"`
	Tags           []string    `json:"tags"`
	IsPublic       bool        `json:"isPublic"`
	OwnerID        string      `json:"ownerId"`
	Repo           RepoSummary `json:"repo"`
	Stars          int         `json:"stars"`
	Forks          int         `json:"forks"`
	Upvotes        int         `json:"upvotes"`
	InviteCodeHash string      `json:"-"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// HasInvite reports whether an invite code is currently active.
func (p *Project) HasInvite() bool {
	return p.InviteCodeHash != ""
}

// Repository mirrors a GitHub repository connected by a user. A user may
// connect at most one.
type Repository struct {
	ID         string    `json:"id"         db:"id"`
	UserID     string    `json:"userId"     db:"user_id"`
	ProjectID  string    `json:"projectId"  db:"project_id"`
	ExternalID int64     `json:"externalId" db:"external_id"`
	Name       string    `json:"name"       db:"name"`
	Owner      string    `json:"owner"      db:"owner"`
	FullName   string    `json:"fullName"   db:"full_name"`
	URL        string    `json:"url"        db:"url"`
	Stars      int       `json:"stars"      db:"stars"`
	Forks      int       `json:"forks"      db:"forks"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"  db:"updated_at"`
}
