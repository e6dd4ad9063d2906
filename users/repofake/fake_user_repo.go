package fakeuserrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/users"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo keeps users in memory. Returned users are copies.
type FakeUserRepo struct {
	users      map[string]*users.User
	subjectIds map[string]string // provider subject to user id
	lock       sync.RWMutex
	nowTime    func() time.Time
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users:      make(map[string]*users.User),
		subjectIds: make(map[string]string),
		nowTime:    time.Now,
	}
}

func clone(u *users.User) *users.User {
	c := *u
	return &c
}

// Put stores u as is, for seeding tests.
func (ur *FakeUserRepo) Put(u *users.User) *users.User {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	ur.users[u.ID] = clone(u)
	if u.ExternalSubject != "" {
		ur.subjectIds[u.ExternalSubject] = u.ID
	}
	return clone(u)
}

func (ur *FakeUserRepo) UpsertByExternalSubject(_ context.Context, identity users.Identity) (*users.User, error) {
	if identity.Subject == "" {
		return nil, fmt.Errorf("[UpsertByExternalSubject] %w: subject is required", apperrors.ErrInvalidRequest)
	}

	ur.lock.Lock()
	defer ur.lock.Unlock()

	now := ur.nowTime()
	if id, ok := ur.subjectIds[identity.Subject]; ok {
		u := ur.users[id]
		u.Email = identity.Email
		u.Name = identity.Name
		u.Avatar = identity.Avatar
		u.UpdatedAt = now
		return clone(u), nil
	}

	u := &users.User{
		ID:              uuid.NewString(),
		Email:           identity.Email,
		Name:            identity.Name,
		Avatar:          identity.Avatar,
		Role:            users.RoleUser,
		Active:          true,
		ExternalSubject: identity.Subject,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	ur.users[u.ID] = u
	ur.subjectIds[u.ExternalSubject] = u.ID
	return clone(u), nil
}

func (ur *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	return clone(u), nil
}

func (ur *FakeUserRepo) List(_ context.Context, filter users.ListFilter) ([]*users.User, int, error) {
	filter = filter.Normalize()

	ur.lock.RLock()
	defer ur.lock.RUnlock()

	matched := make([]*users.User, 0)
	for _, u := range ur.users {
		if filter.Matches(u) {
			matched = append(matched, u)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	if filter.Offset >= total {
		return []*users.User{}, total, nil
	}
	end := filter.Offset + filter.Limit
	if end > total {
		end = total
	}

	page := make([]*users.User, 0, end-filter.Offset)
	for _, u := range matched[filter.Offset:end] {
		page = append(page, clone(u))
	}
	return page, total, nil
}

func (ur *FakeUserRepo) Update(_ context.Context, id string, patch users.Patch) (*users.User, error) {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	u, ok := ur.users[id]
	if !ok {
		return nil, apperrors.ErrUserNotFound
	}
	patch.Apply(u)
	u.UpdatedAt = ur.nowTime()
	return clone(u), nil
}

func (ur *FakeUserRepo) CountActiveAdmins(_ context.Context, excludeID string) (int, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	n := 0
	for _, u := range ur.users {
		if u.ID != excludeID && u.Active && u.Role == users.RoleAdmin {
			n++
		}
	}
	return n, nil
}
