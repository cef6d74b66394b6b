// internal/httpserver/routes_game.go
//
// HTTP routes for the hidden picture game. All routes act on the caller's
// session (see withPlayer):
//   - GET    /game            → current view (points, counters, status)
//   - POST   /game/image      → multipart upload (field "image"), draws it letterboxed
//   - POST   /game/points     → {"count": n} generates n points (default 5, clamped 1..10)
//   - POST   /game/click      → {"x","y"[,"displayWidth","displayHeight"]} hit test
//   - GET    /game/canvas.png → current canvas pixels
//   - DELETE /game            → clear saved state
//   - GET    /game/events     → WebSocket stream of status messages
//
// Each operation's status is also published to the player's event stream.

package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hiddenpicture/internal/game"
	"github.com/robalobadob/hiddenpicture/internal/session"
)

// pointsReq.Count is a float so fractional counts truncate instead of failing.
type pointsReq struct {
	Count float64 `json:"count"`
}

type clickReq struct {
	X             float64 `json:"x"`
	Y             float64 `json:"y"`
	DisplayWidth  float64 `json:"displayWidth,omitempty"`
	DisplayHeight float64 `json:"displayHeight,omitempty"`
}

// gameRes is the body of every game response.
type gameRes struct {
	Status session.Status       `json:"status"`
	Click  *session.ClickResult `json:"click,omitempty"`
	Game   session.View         `json:"game"`
	Error  string               `json:"error,omitempty"`
}

// mountGame registers /game routes.
func (s *Server) mountGame(r chi.Router) {
	r.Route("/game", func(r chi.Router) {
		r.Get("/events", s.handleEvents) // long-lived

		r.Group(func(r chi.Router) {
			r.Use(chimw.Timeout(s.cfg.Server.HandlerTimeout))
			r.Get("/", s.handleView)
			r.Delete("/", s.handleReset)
			r.Post("/image", s.handleUpload)
			r.Post("/points", s.handleGenerate)
			r.Post("/click", s.handleClick)
			r.Get("/canvas.png", s.handleCanvas)
		})
	})
}

// openSession returns the caller's session, writing a 500 on store failure.
func (s *Server) openSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.reg.Open(r.Context(), playerKey(r))
	if err != nil {
		log.Error().Err(err).Str("player", playerKey(r)).Msg("open session")
		http.Error(w, `{"error":"store_error"}`, http.StatusInternalServerError)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	v := sess.View()
	_ = json.NewEncoder(w).Encode(gameRes{Status: v.Status, Game: v})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	player := playerKey(r)
	st, err := s.reg.Reset(r.Context(), player)
	if err != nil {
		log.Error().Err(err).Str("player", player).Msg("reset session")
		http.Error(w, `{"error":"store_error"}`, http.StatusInternalServerError)
		return
	}
	s.hub.Publish(player, st)
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	_ = json.NewEncoder(w).Encode(gameRes{Status: st, Game: sess.View()})
}

// handleUpload reads the "image" form file, checks size and type, and loads it.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	limit := s.cfg.Upload.MaxSize
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20) // room for multipart framing
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file_too_large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_multipart"})
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing_image"})
		return
	}
	defer file.Close()

	if header.Size > limit {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "file_too_large"})
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "read_failed"})
		return
	}
	if !s.allowedType(header.Header.Get("Content-Type"), data) {
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]string{"error": "unsupported_type"})
		return
	}

	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	st, err := sess.LoadImage(r.Context(), bytes.NewReader(data))
	s.respond(w, r, sess, st, nil, err)
}

// allowedType accepts the declared type when it is allowed, otherwise sniffs the bytes.
func (s *Server) allowedType(declared string, data []byte) bool {
	allowed := s.cfg.Upload.AllowedTypes
	if len(allowed) == 0 {
		return true
	}
	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	if slices.Contains(allowed, declared) {
		return true
	}
	return slices.Contains(allowed, http.DetectContentType(data))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req pointsReq
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
			return
		}
	}
	n := game.DefaultPoints
	if req.Count >= 1 {
		n = int(min(req.Count, game.MaxPoints))
	}

	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	st, err := sess.Generate(r.Context(), n)
	if err == nil && s.users != nil {
		if me := currentUser(r); me != nil {
			if serr := s.users.RoundStarted(r.Context(), me.ID); serr != nil {
				log.Warn().Err(serr).Str("user", me.ID).Msg("bump rounds_started")
			}
		}
	}
	s.respond(w, r, sess, st, nil, err)
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json"}`, http.StatusBadRequest)
		return
	}

	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	x, y := game.ToCanvas(req.X, req.Y,
		game.Size{Width: req.DisplayWidth, Height: req.DisplayHeight},
		game.Size{Width: float64(s.cfg.Canvas.Width), Height: float64(s.cfg.Canvas.Height)})

	res, st, err := sess.Click(r.Context(), x, y)
	if err == nil && res.Hit && s.users != nil {
		if me := currentUser(r); me != nil {
			if serr := s.users.PointFound(r.Context(), me.ID, res.Cleared); serr != nil {
				log.Warn().Err(serr).Str("user", me.ID).Msg("bump points_found")
			}
		}
	}
	s.respond(w, r, sess, st, &res, err)
}

func (s *Server) handleCanvas(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}
	b, err := sess.CanvasPNG()
	if err != nil {
		log.Error().Err(err).Msg("encode canvas")
		http.Error(w, `{"error":"encode_failed"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(b)
}

// respond publishes st and writes the view, mapping engine errors to status codes.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, sess *session.Session, st session.Status, click *session.ClickResult, err error) {
	if st.Text != "" {
		s.hub.Publish(sess.Key(), st)
	}
	res := gameRes{Status: st, Click: click, Game: sess.View()}
	if err != nil {
		code := errorCode(err)
		if code == http.StatusInternalServerError {
			log.Error().Err(err).Str("player", sess.Key()).Str("path", r.URL.Path).Msg("game operation failed")
			res.Error = "store_error"
		} else {
			res.Error = err.Error()
		}
		writeJSON(w, code, res)
		return
	}
	_ = json.NewEncoder(w).Encode(res)
}

// errorCode maps engine errors to HTTP status codes.
func errorCode(err error) int {
	switch {
	case errors.Is(err, game.ErrNoImage):
		return http.StatusConflict
	case errors.Is(err, game.ErrRegionTooSmall):
		return http.StatusUnprocessableEntity
	case errors.Is(err, game.ErrDecode):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
