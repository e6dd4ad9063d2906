package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/users"
)

type listUsersResponse struct {
	Users  []*users.User `json:"users"`
	Total  int           `json:"total"`
	Offset int           `json:"offset"`
	Limit  int           `json:"limit"`
}

// listFilterFromQuery reads search, role, isActive, offset and limit.
func listFilterFromQuery(r *http.Request) (users.ListFilter, error) {
	q := r.URL.Query()
	filter := users.ListFilter{
		Search: q.Get("search"),
		Role:   users.RoleType(q.Get("role")),
	}

	if v := q.Get("isActive"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			return filter, fmt.Errorf("%w: isActive must be a boolean", apperrors.ErrInvalidRequest)
		}
		filter.Active = &active
	}
	for name, dst := range map[string]*int{"offset": &filter.Offset, "limit": &filter.Limit} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return filter, fmt.Errorf("%w: %s must be an integer", apperrors.ErrInvalidRequest, name)
			}
			*dst = n
		}
	}
	return filter.Normalize(), nil
}

func (s *Server) ListUsersHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, err := listFilterFromQuery(r)
		if err != nil {
			writeError(w, r, err)
			return
		}

		list, total, err := s.auth.ListUsers(r.Context(), filter)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listUsersResponse{
			Users:  list,
			Total:  total,
			Offset: filter.Offset,
			Limit:  filter.Limit,
		})
	}
}

// GetUserHandler serves both the admin and the internal lookup.
func (s *Server) GetUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.auth.GetUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, targetError(err))
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

func (s *Server) UpdateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch users.Patch
		if err := decodeJSON(r, &patch); err != nil {
			writeError(w, r, err)
			return
		}

		user, err := s.auth.UpdateUser(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			writeError(w, r, targetError(err))
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

type deactivateResponse struct {
	User            *users.User `json:"user"`
	RevokedSessions int         `json:"revokedSessions"`
}

func (s *Server) DeactivateUserHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, revoked, err := s.auth.DeactivateUser(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, targetError(err))
			return
		}
		writeJSON(w, http.StatusOK, deactivateResponse{User: user, RevokedSessions: revoked})
	}
}

// targetError reports a missing target user as 404. ErrUserNotFound alone
// means 401, which is about the caller.
func targetError(err error) error {
	if apperrors.Is(err, apperrors.ErrUserNotFound) {
		return apperrors.ErrNotFound
	}
	return err
}
