// Package token issues and verifies the short-lived access tokens handed to
// browser clients after login.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/jrsteele09/memauth/internal/errors"
	"github.com/jrsteele09/memauth/token/keys"
)

// DefaultAccessTokenTTL is the lifetime of an access token.
const DefaultAccessTokenTTL = 15 * time.Minute

// Claims carried by an access token. Role is deliberately absent: it is read
// from the user record on every request.
type Claims struct {
	ID        string
	Subject   string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Issuer signs and verifies access tokens. Verification needs no external
// state.
type Issuer struct {
	signer  keys.Signer
	issuer  string
	nowTime func() time.Time
}

type IssuerOption func(*Issuer)

// WithNowTime sets the clock (primarily for testing)
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

// WithIssuer sets the iss claim and requires it on verification.
func WithIssuer(issuer string) IssuerOption {
	return func(i *Issuer) {
		i.issuer = issuer
	}
}

func NewIssuer(signer keys.Signer, options ...IssuerOption) (*Issuer, error) {
	if signer == nil {
		return nil, errors.New("[NewIssuer] signer is required")
	}
	i := &Issuer{
		signer:  signer,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i, nil
}

// Signer exposes the underlying key material holder.
func (i *Issuer) Signer() keys.Signer {
	return i.signer
}

// Sign returns a compact JWS for c valid for ttl from now.
func (i *Issuer) Sign(c Claims, ttl time.Duration) (string, error) {
	if c.Subject == "" {
		return "", fmt.Errorf("[Sign] %w: subject is required", apperrors.ErrInvalidRequest)
	}
	if ttl <= 0 {
		ttl = DefaultAccessTokenTTL
	}

	now := i.nowTime()
	claims := jwt.MapClaims{
		"sub": c.Subject,
		"iat": now.Unix(),
		"nbf": now.Unix(),
		"exp": now.Add(ttl).Unix(),
		"jti": uuid.NewString(),
	}
	if c.Email != "" {
		claims["email"] = c.Email
	}
	if c.Name != "" {
		claims["name"] = c.Name
	}
	if i.issuer != "" {
		claims["iss"] = i.issuer
	}

	signed, err := i.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("[Sign] %w", err)
	}
	return signed, nil
}

func (i *Issuer) parserOptions() []jwt.ParserOption {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwt.WithTimeFunc(i.nowTime),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}
	return opts
}

// Verify checks signature, algorithm and expiry. Every failure matches
// apperrors.ErrInvalidToken; an expired token also matches ErrTokenExpired.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	if raw == "" {
		return nil, fmt.Errorf("[Verify] %w: empty token", apperrors.ErrInvalidToken)
	}

	opts := append(i.parserOptions(), jwt.WithExpirationRequired(), jwt.WithIssuedAt())
	tok, err := jwt.NewParser(opts...).Parse(raw, i.signer.GetVerificationKey)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("[Verify] %w", apperrors.ErrTokenExpired)
		}
		return nil, fmt.Errorf("[Verify] %w: %v", apperrors.ErrInvalidToken, err)
	}
	return claimsFrom(tok)
}

// SubjectIgnoringExpiry returns the subject of a token with a valid signature
// even when it has expired. It identifies the owner of a refresh request and
// grants nothing by itself.
func (i *Issuer) SubjectIgnoringExpiry(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("[SubjectIgnoringExpiry] %w: empty token", apperrors.ErrInvalidToken)
	}

	opts := append(i.parserOptions(), jwt.WithoutClaimsValidation())
	tok, err := jwt.NewParser(opts...).Parse(raw, i.signer.GetVerificationKey)
	if err != nil {
		return "", fmt.Errorf("[SubjectIgnoringExpiry] %w: %v", apperrors.ErrInvalidToken, err)
	}
	c, err := claimsFrom(tok)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

func claimsFrom(tok *jwt.Token) (*Claims, error) {
	mc, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("%w: unexpected claims type", apperrors.ErrInvalidToken)
	}

	sub, err := mc.GetSubject()
	if err != nil || sub == "" {
		return nil, fmt.Errorf("%w: missing subject", apperrors.ErrInvalidToken)
	}

	c := &Claims{Subject: sub}
	c.ID, _ = mc["jti"].(string)
	c.Email, _ = mc["email"].(string)
	c.Name, _ = mc["name"].(string)
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c, nil
}
