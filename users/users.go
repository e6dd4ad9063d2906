package users

import (
	"strings"
	"time"
)

// RoleType is the coarse role used for route gating.
type RoleType string

const (
	RoleUser  RoleType = "USER"
	RoleAdmin RoleType = "ADMIN"
)

// Valid reports whether r is a known role.
func (r RoleType) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// User is the local record for someone who has signed in through the
// identity provider. ExternalSubject is the provider's stable "sub".
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name,omitempty"`
	Avatar          string    `json:"avatar,omitempty"`
	Role            RoleType  `json:"role"`
	Active          bool      `json:"isActive"`
	ExternalSubject string    `json:"-"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Identity is what the provider tells us about a user at login.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Avatar  string
}

// ListFilter narrows List. Zero values mean "any".
type ListFilter struct {
	Search string
	Role   RoleType
	Active *bool
	Offset int
	Limit  int
}

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize clamps paging and tidies the search term.
func (f ListFilter) Normalize() ListFilter {
	f.Search = strings.TrimSpace(f.Search)
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	return f
}

// Matches applies the filter to u in memory.
func (f ListFilter) Matches(u *User) bool {
	if f.Role != "" && u.Role != f.Role {
		return false
	}
	if f.Active != nil && u.Active != *f.Active {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(u.Email), q) && !strings.Contains(strings.ToLower(u.Name), q) {
			return false
		}
	}
	return true
}

// Patch is a partial update; nil fields are left alone.
type Patch struct {
	Role   *RoleType `json:"role,omitempty"`
	Active *bool     `json:"isActive,omitempty"`
	Name   *string   `json:"name,omitempty"`
	Avatar *string   `json:"avatar,omitempty"`
}

// Apply copies the set fields of p onto u.
func (p Patch) Apply(u *User) {
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.Avatar != nil {
		u.Avatar = *p.Avatar
	}
}

// Empty reports whether p changes nothing.
func (p Patch) Empty() bool {
	return p.Role == nil && p.Active == nil && p.Name == nil && p.Avatar == nil
}
