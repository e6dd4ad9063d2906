package users

import "context"

// UserRepo persists users. Lookups of a missing user return
// errors.ErrUserNotFound.
type UserRepo interface {
	// UpsertByExternalSubject creates the user on first login and refreshes
	// email, name and avatar afterwards. Role and active status are kept.
	UpsertByExternalSubject(ctx context.Context, identity Identity) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, int, error)
	Update(ctx context.Context, id string, patch Patch) (*User, error)
	// CountActiveAdmins counts active admins other than excludeID.
	CountActiveAdmins(ctx context.Context, excludeID string) (int, error)
}
