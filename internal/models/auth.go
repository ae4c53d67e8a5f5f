package models

import "time"

// Role is the portal role carried by the identity provider.
type Role string

const (
	RoleHRAdmin   Role = "hr_admin"
	RoleCandidate Role = "candidate"
)

func (r Role) Valid() bool {
	return r == RoleHRAdmin || r == RoleCandidate
}

// Identity is the read-only projection of the signed-in user.
type Identity struct {
	UserID      string `json:"userId"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
	Role        Role   `json:"role"`
}

// Name returns the display name, falling back to the email.
func (i Identity) Name() string {
	if i.DisplayName != "" {
		return i.DisplayName
	}
	return i.Email
}

// OAuthToken represents OAuth token information
type OAuthToken struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	TokenType    string    `json:"tokenType"`
	ExpiresIn    int64     `json:"expiresIn"`
	ExpiresAt    time.Time `json:"expiresAt"`
	Scope        string    `json:"scope,omitempty"`
}
