package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog/hlog"
)

const adminCookie = "admin"

// AdminGate guards content editing with a password and a signed session cookie
type AdminGate struct {
	password string
	secret   []byte
	ttl      time.Duration
	now      func() time.Time
}

// NewAdminGate creates a gate. An empty password disables login; an empty
// secret is replaced by a random one, so sessions end on restart.
func NewAdminGate(password, secret string, ttl time.Duration) (*AdminGate, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate admin secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &AdminGate{password: password, secret: key, ttl: ttl, now: time.Now}, nil
}

// Enabled reports whether a password is configured
func (g *AdminGate) Enabled() bool {
	return g.password != ""
}

// CheckPassword compares p with the configured password in constant time
func (g *AdminGate) CheckPassword(p string) bool {
	if !g.Enabled() || p == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(p), []byte(g.password)) == 1
}

// Issue signs a new session token
func (g *AdminGate) Issue() (string, error) {
	now := g.now()
	claims := jwt.RegisteredClaims{
		Subject:   "admin",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
}

// Valid reports whether token is an unexpired session signed by this gate
func (g *AdminGate) Valid(token string) bool {
	if token == "" {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !parsed.Valid {
		return false
	}
	return claims.Subject == "admin" && claims.VerifyExpiresAt(g.now(), true)
}

// IsAdmin reports whether r carries a valid session cookie
func (g *AdminGate) IsAdmin(r *http.Request) bool {
	c, err := r.Cookie(adminCookie)
	if err != nil {
		return false
	}
	return g.Valid(c.Value)
}

func (g *AdminGate) handleLogin(limit int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Password string `json:"password"`
		}
		if err := decodeJSON(w, r, limit, &req); err != nil {
			badBody(w, err)
			return
		}
		if !g.CheckPassword(req.Password) {
			hlog.FromRequest(r).Warn().Msg("admin login rejected")
			writeError(w, http.StatusUnauthorized, "Invalid password")
			return
		}
		token, err := g.Issue()
		if err != nil {
			writeFailure(w, r, "Failed to create session", err)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     adminCookie,
			Value:    token,
			Path:     "/",
			MaxAge:   int(g.ttl.Seconds()),
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteStrictMode,
		})
		hlog.FromRequest(r).Info().Msg("admin logged in")
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}
}

func (g *AdminGate) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     adminCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (g *AdminGate) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"isAdmin": g.IsAdmin(r)})
}

var errForbidden = errors.New("forbidden")

// require answers 403 unless r carries a valid session
func (g *AdminGate) require(w http.ResponseWriter, r *http.Request) error {
	if g.IsAdmin(r) {
		return nil
	}
	writeError(w, http.StatusForbidden, "Forbidden")
	return errForbidden
}
