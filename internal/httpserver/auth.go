// internal/httpserver/auth.go
//
// Accounts, JWT cookies and player identity.
//   - POST /auth/signup, /auth/login, /auth/logout
//   - GET  /auth/me, /stats/me (gated)
//
// withPlayer resolves every game request to a player key. Signing in moves the
// anonymous game to the account unless the account already has one.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hiddenpicture/internal/users"
)

const anonCookieName = "hiddenpicture_anon"

type ctxUserKey struct{}
type ctxPlayerKey struct{}

type authUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// mountAuth registers /auth/* and /stats/me.
func (s *Server) mountAuth(r chi.Router) {
	r.Post("/auth/signup", s.handleSignup)
	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/logout", s.handleLogout)

	r.With(requireUser).Get("/auth/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(currentUser(r))
	})

	r.With(requireUser).Get("/stats/me", func(w http.ResponseWriter, r *http.Request) {
		u, err := s.users.FindByID(r.Context(), currentUser(r).ID)
		if err != nil {
			http.Error(w, `{"error":"not_found"}`, http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":            u.ID,
			"roundsStarted": u.RoundsStarted,
			"pointsFound":   u.PointsFound,
			"roundsCleared": u.RoundsCleared,
		})
	})
}

// handleSignup creates a user, sets the auth cookie and claims the anonymous game.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		http.Error(w, `{"error":"accounts_disabled"}`, http.StatusNotImplemented)
		return
	}
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.users.Create(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "Username taken"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !s.signIn(w, r, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username, "createdAt": u.CreatedAt})
}

// handleLogin authenticates, sets the auth cookie and claims the anonymous game.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if s.users == nil {
		http.Error(w, `{"error":"accounts_disabled"}`, http.StatusNotImplemented)
		return
	}
	var body credentialsReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}
	u, err := s.users.Authenticate(r.Context(), body.Username, body.Password)
	if err != nil {
		http.Error(w, `{"error":"Invalid username or password"}`, http.StatusUnauthorized)
		return
	}
	if !s.signIn(w, r, u) {
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"id": u.ID, "username": u.Username})
}

// handleLogout clears the auth cookie. The anonymous game stays where it was.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.clearAuthCookie(w)
	_ = json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// signIn issues the token cookie and moves the guest game over. Writes the
// error response itself and reports false on failure.
func (s *Server) signIn(w http.ResponseWriter, r *http.Request, u *users.User) bool {
	tok, exp, err := s.signJWT(u.ID, u.Username)
	if err != nil {
		http.Error(w, `{"error":"sign_failed"}`, http.StatusInternalServerError)
		return false
	}
	s.setAuthCookie(w, tok, exp)

	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		moved, err := s.reg.Move(r.Context(), anonPlayer(c.Value), userPlayer(u.ID))
		if err != nil {
			log.Warn().Err(err).Str("user", u.ID).Msg("claim anonymous game")
		} else if moved {
			log.Info().Str("user", u.ID).Msg("anonymous game claimed")
		}
	}
	return true
}

// --------------------------- identity -------------------------------------

func userPlayer(id string) string   { return "user:" + id }
func anonPlayer(anon string) string { return "anon:" + anon }

// withPlayer attaches the signed-in user (if any) and the player key.
// It never 401s; guests play under their anon cookie.
func (s *Server) withPlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var player string
		if u := s.userFromToken(ctx, bearerOrCookie(r, s.cfg.Auth.CookieName)); u != nil {
			ctx = context.WithValue(ctx, ctxUserKey{}, u)
			player = userPlayer(u.ID)
		} else {
			player = anonPlayer(s.ensureAnonID(w, r))
		}
		ctx = context.WithValue(ctx, ctxPlayerKey{}, player)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireUser rejects requests without a signed-in user.
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == nil {
			http.Error(w, `{"error":"Unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func currentUser(r *http.Request) *authUser {
	u, _ := r.Context().Value(ctxUserKey{}).(*authUser)
	return u
}

func playerKey(r *http.Request) string {
	p, _ := r.Context().Value(ctxPlayerKey{}).(string)
	return p
}

// userFromToken validates tok and checks the user still exists.
func (s *Server) userFromToken(ctx context.Context, tok string) *authUser {
	if tok == "" || s.users == nil {
		return nil
	}
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.Auth.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return nil
	}
	id, _ := claims["id"].(string)
	if id == "" {
		return nil
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			log.Warn().Err(err).Msg("lookup token user")
		}
		return nil
	}
	return &authUser{ID: u.ID, Username: u.Username}
}

// ensureAnonID returns an existing anon cookie or sets a new one.
func (s *Server) ensureAnonID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	id := users.GenID()
	http.SetCookie(w, &http.Cookie{
		Name:     anonCookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Auth.SecureCookies,
		SameSite: s.sameSite(),
		Expires:  time.Now().Add(180 * 24 * time.Hour),
	})
	// later reads in this request see the same id
	r.AddCookie(&http.Cookie{Name: anonCookieName, Value: id})
	return id
}

// ------------------------------ JWT & cookies ------------------------------

// signJWT creates an HS256 JWT with id/username and the configured expiry.
func (s *Server) signJWT(id, username string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(time.Duration(s.cfg.Auth.JWTExpiresDays) * 24 * time.Hour)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":       id,
		"username": username,
		"exp":      exp.Unix(),
		"iat":      now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.cfg.Auth.JWTSecret))
	return ss, exp, err
}

func (s *Server) setAuthCookie(w http.ResponseWriter, token string, exp time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Auth.SecureCookies,
		SameSite: s.sameSite(),
		Expires:  exp,
	})
}

func (s *Server) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cfg.Auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Auth.SecureCookies,
		SameSite: s.sameSite(),
		MaxAge:   -1,
	})
}

// sameSite is None for secure cross-site deployments, Lax otherwise.
func (s *Server) sameSite() http.SameSite {
	if s.cfg.Auth.SecureCookies {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

// bearerOrCookie extracts a token from the Authorization header or the auth cookie.
func bearerOrCookie(r *http.Request, cookieName string) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(cookieName); err == nil {
		return c.Value
	}
	return ""
}
