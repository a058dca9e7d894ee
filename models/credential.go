package models

import "time"

// Credential is the bearer token pair issued at login
type Credential struct {
	Access   string    `json:"access" yaml:"access"`
	Refresh  string    `json:"refresh,omitempty" yaml:"refresh,omitempty"`
	Username string    `json:"username,omitempty" yaml:"username,omitempty"`
	IssuedAt time.Time `json:"issued_at,omitempty" yaml:"issued_at,omitempty"`
}

// Empty reports whether there is no access token
func (c Credential) Empty() bool {
	return c.Access == ""
}

// BearerHeader formats the Authorization header value
func (c Credential) BearerHeader() string {
	return "Bearer " + c.Access
}

// AuthUser is the user block returned alongside tokens
type AuthUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// LoginResponse is the body of a successful login
type LoginResponse struct {
	Access  string   `json:"access"`
	Refresh string   `json:"refresh"`
	User    AuthUser `json:"user"`
}

// SignupRequest is the body of a signup call
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}
