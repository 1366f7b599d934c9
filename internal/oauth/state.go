package oauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/adpilot/backend/internal/models"
	"github.com/adpilot/backend/internal/repositories"
)

const DefaultStateTTL = 10 * time.Minute

var ErrInvalidState = errors.New("invalid oauth state")

// NonceStore persists the single-use half of the CSRF state.
type NonceStore interface {
	Create(ctx context.Context, userID, projectID uuid.UUID, platform models.Platform, ttl time.Duration) (*models.OAuthState, error)
	Consume(ctx context.Context, nonce string) (*models.OAuthState, error)
}

type stateClaims struct {
	UserID    uuid.UUID       `json:"uid"`
	ProjectID uuid.UUID       `json:"pid"`
	Platform  models.Platform `json:"plt"`
	Nonce     string          `json:"nonce"`
	jwt.RegisteredClaims
}

// StateStore issues signed, single-use OAuth state values. The signature
// binds the nonce to the user, project and platform; the nonce row makes the
// state unusable after its first validation.
type StateStore struct {
	secret []byte
	ttl    time.Duration
	nonces NonceStore
}

func NewStateStore(secret string, ttl time.Duration, nonces NonceStore) *StateStore {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateStore{secret: []byte(secret), ttl: ttl, nonces: nonces}
}

func (s *StateStore) Issue(ctx context.Context, userID, projectID uuid.UUID, platform models.Platform) (string, error) {
	rec, err := s.nonces.Create(ctx, userID, projectID, platform, s.ttl)
	if err != nil {
		return "", err
	}
	claims := stateClaims{
		UserID:    userID,
		ProjectID: projectID,
		Platform:  platform,
		Nonce:     rec.Nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(rec.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Consume validates the signature and burns the nonce. A replayed, expired
// or tampered state yields ErrInvalidState; a store failure is returned as is.
func (s *StateStore) Consume(ctx context.Context, state string) (*models.OAuthState, error) {
	token, err := jwt.ParseWithClaims(state, &stateClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	claims, ok := token.Claims.(*stateClaims)
	if !ok || !token.Valid || claims.Nonce == "" {
		return nil, ErrInvalidState
	}

	rec, err := s.nonces.Consume(ctx, claims.Nonce)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: already used or expired", ErrInvalidState)
		}
		return nil, err
	}
	if rec.UserID != claims.UserID || rec.ProjectID != claims.ProjectID || rec.Platform != claims.Platform {
		return nil, fmt.Errorf("%w: binding mismatch", ErrInvalidState)
	}
	return rec, nil
}
