// Package postgres is the PostgreSQL backed users.UserRepo.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/users"
)

const userColumns = `id, email, name, avatar, role, is_active, external_subject, created_at, updated_at`

// UserRepo stores users in the users table.
type UserRepo struct {
	db *sql.DB
}

var _ users.UserRepo = (*UserRepo)(nil)

// likeEscaper makes a search term literal inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*users.User, error) {
	var (
		u    users.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Avatar, &role, &u.Active, &u.ExternalSubject, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = users.RoleType(role)
	return &u, nil
}

func (r *UserRepo) UpsertByExternalSubject(ctx context.Context, identity users.Identity) (*users.User, error) {
	if identity.Subject == "" {
		return nil, fmt.Errorf("[UpsertByExternalSubject] %w: subject is required", apperrors.ErrInvalidRequest)
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, email, name, avatar, role, is_active, external_subject)
		VALUES ($1, $2, $3, $4, $5, TRUE, $6)
		ON CONFLICT (external_subject) DO UPDATE
		SET email = EXCLUDED.email,
		    name = EXCLUDED.name,
		    avatar = EXCLUDED.avatar,
		    updated_at = now()
		RETURNING `+userColumns,
		uuid.NewString(), identity.Email, identity.Name, identity.Avatar, string(users.RoleUser), identity.Subject,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("[UpsertByExternalSubject] %w", err)
	}
	return u, nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*users.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.ErrUserNotFound
	}

	u, err := scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[GetByID] %w", err)
	}
	return u, nil
}

func whereClause(filter users.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.Role != "" {
		args = append(args, string(filter.Role))
		conds = append(conds, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		conds = append(conds, fmt.Sprintf("is_active = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(filter.Search))+"%")
		conds = append(conds, fmt.Sprintf(`(lower(email) LIKE $%d ESCAPE '\' OR lower(name) LIKE $%d ESCAPE '\')`, len(args), len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (r *UserRepo) List(ctx context.Context, filter users.ListFilter) ([]*users.User, int, error) {
	filter = filter.Normalize()
	where, args := whereClause(filter)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("[List] count: %w", err)
	}

	args = append(args, filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		userColumns, where, len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("[List] query: %w", err)
	}
	defer rows.Close()

	list := make([]*users.User, 0, filter.Limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("[List] scan: %w", err)
		}
		list = append(list, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("[List] rows: %w", err)
	}
	return list, total, nil
}

func (r *UserRepo) Update(ctx context.Context, id string, patch users.Patch) (*users.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.ErrUserNotFound
	}

	var role *string
	if patch.Role != nil {
		s := string(*patch.Role)
		role = &s
	}

	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET role = COALESCE($2, role),
		    is_active = COALESCE($3, is_active),
		    name = COALESCE($4, name),
		    avatar = COALESCE($5, avatar),
		    updated_at = now()
		WHERE id = $1
		RETURNING `+userColumns,
		id, role, patch.Active, patch.Name, patch.Avatar,
	)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("[Update] %w", err)
	}
	return u, nil
}

func (r *UserRepo) CountActiveAdmins(ctx context.Context, excludeID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM users WHERE role = $1 AND is_active AND id::text <> $2`,
		string(users.RoleAdmin), excludeID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("[CountActiveAdmins] %w", err)
	}
	return n, nil
}
