package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/bounty-board/internal/events"
	"github.com/terra-clan/bounty-board/internal/metrics"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = (livePongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// LiveMessage is one frame of the live feed
type LiveMessage struct {
	Type     string      `json:"type"`
	BountyID string      `json:"bounty_id"`
	Data     interface{} `json:"data,omitempty"`
	At       time.Time   `json:"at"`
}

func (s *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	bountyID := chi.URLParam(r, "id")

	view, err := s.bounties.GetBountyWithStatus(r.Context(), bountyID)
	if err != nil {
		respondServiceError(w, r, "open live feed", err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	sub := s.hub.Subscribe(bountyID)
	defer sub.Unsubscribe()

	metrics.LiveSubscribers.Inc()
	defer metrics.LiveSubscribers.Dec()

	slog.Info("live feed connected", "bounty_id", bountyID)

	var writeMu sync.Mutex
	send := func(msg LiveMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return s.sendLiveMessage(conn, msg)
	}

	if err := send(LiveMessage{Type: "connected", BountyID: bountyID, Data: view, At: time.Now().UTC()}); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup

	// Client frames are ignored; reading keeps pongs and close frames flowing
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(livePongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					slog.Debug("websocket read error", "error", err)
				}
				return
			}
		}
	}()

	// Hub -> WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer cancel()
		ticker := time.NewTicker(livePingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-sub.C():
				if !ok {
					return
				}
				if err := send(liveMessageFrom(e)); err != nil {
					return
				}
				if e.Type == events.TypeBountyDeleted {
					writeMu.Lock()
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bounty deleted"),
						time.Now().Add(liveWriteWait))
					writeMu.Unlock()
					return
				}
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	<-ctx.Done()
	// Unblock the reader if the writer finished first
	conn.Close()
	wg.Wait()
	slog.Info("live feed disconnected", "bounty_id", bountyID)
}

func liveMessageFrom(e events.Event) LiveMessage {
	return LiveMessage{
		Type:     e.Type,
		BountyID: e.BountyID,
		Data:     e.Data,
		At:       e.At,
	}
}

func (s *Server) sendLiveMessage(conn *websocket.Conn, msg LiveMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal live message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send live message", "error", err)
		return err
	}
	return nil
}
