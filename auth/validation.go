package auth

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"

	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/users"
)

const (
	maxNameLength   = 200
	maxAvatarLength = 2048
	maxSearchLength = 200
)

// Validator checks admin supplied input before it reaches the repo.
type Validator struct{}

func NewValidator() *Validator {
	return &Validator{}
}

// ValidatePatch rejects empty patches, unknown roles and oversized profile fields.
func (v *Validator) ValidatePatch(p users.Patch) error {
	if p.Empty() {
		return fmt.Errorf("%w: nothing to update", apperrors.ErrInvalidRequest)
	}
	if p.Role != nil && !p.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", apperrors.ErrInvalidRequest, *p.Role)
	}
	if p.Name != nil {
		if err := v.ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Avatar != nil {
		if err := v.ValidateAvatar(*p.Avatar); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name must not be blank", apperrors.ErrInvalidRequest)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return fmt.Errorf("%w: name longer than %d characters", apperrors.ErrInvalidRequest, maxNameLength)
	}
	return nil
}

// ValidateAvatar accepts an empty value or an absolute http(s) URL.
func (v *Validator) ValidateAvatar(avatar string) error {
	if avatar == "" {
		return nil
	}
	if len(avatar) > maxAvatarLength {
		return fmt.Errorf("%w: avatar url too long", apperrors.ErrInvalidRequest)
	}
	u, err := url.Parse(avatar)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("%w: avatar must be an http(s) url", apperrors.ErrInvalidRequest)
	}
	return nil
}

func (v *Validator) ValidateListFilter(f users.ListFilter) error {
	if f.Role != "" && !f.Role.Valid() {
		return fmt.Errorf("%w: unknown role %q", apperrors.ErrInvalidRequest, f.Role)
	}
	if utf8.RuneCountInString(f.Search) > maxSearchLength {
		return fmt.Errorf("%w: search term too long", apperrors.ErrInvalidRequest)
	}
	return nil
}
