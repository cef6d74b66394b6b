// internal/httpserver/events.go
//
// GET /game/events upgrades to a WebSocket and streams the player's status
// messages as JSON ({"type":"status","status":{...}}). The current status is
// sent right after the upgrade. Incoming frames are ignored; the stream ends
// when the client closes it.

package httpserver

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/hiddenpicture/internal/session"
)

const writeWait = 5 * time.Second

type statusEvent struct {
	Type   string         `json:"type"`
	Status session.Status `json:"status"`
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || origin == s.cfg.Server.ClientOrigin {
				return true
			}
			u, err := url.Parse(origin)
			return err == nil && u.Host == r.Host
		},
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	player := playerKey(r)
	sess, ok := s.openSession(w, r)
	if !ok {
		return
	}

	up := s.upgrader()
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("player", player).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	events, cancel := s.hub.Subscribe(player)
	defer cancel()

	// reader: detects the close frame
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug().Err(err).Str("player", player).Msg("websocket read")
				}
				return
			}
		}
	}()

	if st := sess.Status(); st.Text != "" {
		if err := s.sendStatus(conn, st); err != nil {
			return
		}
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case st, ok := <-events:
			if !ok {
				return
			}
			if err := s.sendStatus(conn, st); err != nil {
				log.Debug().Err(err).Str("player", player).Msg("websocket write")
				return
			}
		}
	}
}

func (s *Server) sendStatus(conn *websocket.Conn, st session.Status) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(statusEvent{Type: "status", Status: st})
}
