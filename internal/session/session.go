// Package session issues and verifies signed session tokens, carries them
// in a secure cookie, and tracks idle and absolute session lifetimes.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"clinigate/internal/clock"
	"clinigate/internal/ids"
)

const (
	// CookieName is the name of the session cookie sent to the browser.
	CookieName = "cg_session"

	// issuer is the iss claim of every token this package signs.
	issuer = "clinigate"

	// MinSecretLength is the minimum HMAC key size accepted by NewManager.
	MinSecretLength = 32
)

// ErrInvalidToken indicates the token failed signature or claim validation.
var ErrInvalidToken = errors.New("session: invalid token")

// Claims are the JWT claims of a session token. IssuedAt marks the start of
// the session; ExpiresAt is the absolute ceiling.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID parses the subject claim.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// SessionID returns the jti claim.
func (c *Claims) SessionID() string {
	return c.ID
}

// StartedAt returns the session start time.
func (c *Claims) StartedAt() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// Manager signs and verifies session tokens.
type Manager struct {
	secret   []byte
	absolute time.Duration
	clock    clock.Clock
	secure   bool
}

// NewManager creates a token manager. absolute is the maximum lifetime of a
// session regardless of activity. secure marks cookies HTTPS-only.
func NewManager(secret []byte, absolute time.Duration, secure bool, clk clock.Clock) (*Manager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("session secret must be at least %d bytes", MinSecretLength)
	}
	if absolute <= 0 {
		return nil, errors.New("session absolute timeout must be positive")
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Manager{secret: secret, absolute: absolute, clock: clk, secure: secure}, nil
}

// Issue signs a new session token for the user. The returned claims carry
// the fresh session id and start time.
func (m *Manager) Issue(userID uuid.UUID, email string) (string, *Claims, error) {
	now := m.clock.Now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.absolute)),
			ID:        ids.New(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign session token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies the token signature and required claims.
func (m *Manager) Parse(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.ID == "" || claims.IssuedAt == nil {
		return nil, ErrInvalidToken
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SetCookie writes the session cookie. Its lifetime matches the absolute
// session ceiling.
func (m *Manager) SetCookie(w http.ResponseWriter, token string, claims *Claims) {
	maxAge := int(m.absolute.Seconds())
	if claims != nil && claims.ExpiresAt != nil {
		maxAge = int(claims.ExpiresAt.Sub(m.clock.Now()).Seconds())
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

// ClearCookie expires the session cookie immediately.
func (m *Manager) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// TokenFromRequest extracts the session token from the Authorization
// bearer header or, failing that, the session cookie. The second return
// value reports whether the token came from the cookie.
func TokenFromRequest(r *http.Request) (token string, fromCookie bool) {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		const prefix = "bearer "
		if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
			return strings.TrimSpace(h[len(prefix):]), false
		}
	}
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value, true
	}
	return "", false
}
