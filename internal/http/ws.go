package http

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"rwa/internal/feed"
	"rwa/internal/log"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = (feedPongWait * 9) / 10
)

func newFeedMessage(u feed.Update) feedMessage {
	return feedMessage{Type: "snapshot", Version: u.Version, Entries: toTransactionsJSON(u.Entries)}
}

// handleLedgerFeed upgrades to a websocket and streams full ledger
// snapshots, newest entry first, until the client goes away.
func (s *Server) handleLedgerFeed(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		ServiceUnavailableError("live feed is not enabled").Write(w)
		return
	}
	logger := log.FromContext(r.Context())

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", log.FieldError, err)
		return
	}
	defer conn.Close()

	sub, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()
	s.appMetrics.feedClients.Add(1)
	defer s.appMetrics.feedClients.Add(-1)

	// The reader only watches for close frames and pongs.
	done := make(chan struct{})
	conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case u, ok := <-sub.C:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed stopped"),
					time.Now().Add(feedWriteWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteJSON(newFeedMessage(u)); err != nil {
				logger.Debug("Feed client write failed", log.FieldError, err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
