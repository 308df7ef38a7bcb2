// Package model defines the data structures used throughout the application.
package model

import "time"

// PlanFree is the plan tier every new account starts on.
const PlanFree = "free"

// User represents a registered user account.
//
// GitHub OAuth is the identity provider. TokenIdentifier is the stable
// identity token derived from the provider ("github|<numeric id>"); ID is
// our own xid so primary keys are not tied to a third-party numbering scheme.
type User struct {
	ID                  string    `json:"id"                  db:"id"`
	TokenIdentifier     string    `json:"tokenIdentifier"     db:"token_identifier"`
	GitHubID            int64     `json:"githubId"            db:"github_id"`
	GitHubUsername      string    `json:"githubUsername"      db:"github_username"`
	Name                string    `json:"name"                db:"name"`
	Email               string    `json:"email"               db:"email"` // may be empty when hidden on GitHub
	AvatarURL           string    `json:"avatarUrl"           db:"avatar_url"`
	Plan                string    `json:"plan"                db:"plan"`
	OnboardingCompleted bool      `json:"onboardingCompleted" db:"onboarding_completed"`
	CreatedAt           time.Time `json:"createdAt"           db:"created_at"`
	UpdatedAt           time.Time `json:"updatedAt"           db:"updated_at"`
}
