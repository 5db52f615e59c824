package tokenmanager

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/models"
)

const (
	defaultTokenTTL      = 24 * time.Hour
	defaultSigningMethod = "HS256"
)

type Claims struct {
	jwt.RegisteredClaims
	UserID int64 `json:"user_id"`
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign token
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Token lifetime
	// Zero means default, negative means tokens never expire
	TTL time.Duration
}

// TokenManager issues and validates stateless bearer tokens
type TokenManager struct {
	key []byte
	alg jwt.SigningMethod
	ttl time.Duration
}

func New(cfg Config) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}

	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("signing method %q is not supported", cfg.Alg)
	}

	if cfg.TTL == 0 {
		cfg.TTL = defaultTokenTTL
	}

	return &TokenManager{
		key: []byte(cfg.SecretKey),
		alg: alg,
		ttl: cfg.TTL,
	}, nil
}

// Issue token for the user
func (m *TokenManager) Issue(userID int64) (models.IssuedToken, error) {
	var issued models.IssuedToken
	now := time.Now().Truncate(time.Second)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
		UserID: userID,
	}
	if m.ttl > 0 {
		issued.ExpiresAt = now.Add(m.ttl)
		claims.ExpiresAt = jwt.NewNumericDate(issued.ExpiresAt)
	}

	value, err := jwt.NewWithClaims(m.alg, claims).SignedString(m.key)
	if err != nil {
		return issued, fmt.Errorf("error while signing token. Err: %w", err)
	}

	issued.Value = value
	return issued, nil
}

// Validate token and return user id it was issued for
// Any failure is reported as apperrors.ErrTokenInvalid
func (m *TokenManager) Validate(token string) (int64, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(
		token,
		claims,
		func(t *jwt.Token) (any, error) {
			return m.key, nil
		},
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}

	if claims.UserID <= 0 {
		return 0, fmt.Errorf("%w: user id is missing", apperrors.ErrTokenInvalid)
	}

	return claims.UserID, nil
}
