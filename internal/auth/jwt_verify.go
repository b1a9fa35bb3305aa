package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// Principal holds identity extracted from a validated token.
type Principal struct {
	UserID string
	Role   string
}

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingUser  = errors.New("missing user claim")
)

// UserClaim is the identity embedded in every token.
type UserClaim struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Claims is the token payload: {"user":{"id","role"}} plus registered claims.
type Claims struct {
	User UserClaim `json:"user"`
	jwt.RegisteredClaims
}

// Verifier validates HS256 tokens signed with the shared secret.
type Verifier struct {
	cfg Config
}

// NewVerifier constructs a verifier with config.
func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg}
}

// ParseAndVerifyToken verifies a token and returns its Principal.
func (v *Verifier) ParseAndVerifyToken(tokenString string) (*Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrNoToken
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.cfg.Secret, nil
	})
	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.User.ID == "" || claims.User.Role == "" {
		return nil, ErrMissingUser
	}

	return &Principal{UserID: claims.User.ID, Role: claims.User.Role}, nil
}

// Issuer signs tokens for authenticated users.
type Issuer struct {
	cfg Config
	now func() time.Time
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg, now: time.Now}
}

// Issue returns a signed token for the user and its expiry time.
func (i *Issuer) Issue(userID, role string) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.cfg.Expiry)
	claims := Claims{
		User: UserClaim{ID: userID, Role: role},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.cfg.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}
