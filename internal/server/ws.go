package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gemclash/gem-server-go/internal/gem"
	"github.com/gemclash/gem-server-go/internal/gem/events"
	"github.com/gemclash/gem-server-go/internal/repository"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The game client is served from arbitrary origins during
		// development; session identity comes from the join message.
		return true
	},
}

// SnapshotStore persists player state between sessions. A nil store
// disables persistence; gameplay never depends on it.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, playerID string, data []byte, checksum string) error
	LoadSnapshot(ctx context.Context, playerID string) ([]byte, string, error)
	RecordUnlock(ctx context.Context, playerID, classID, templateID string, cost int) error
	ListUnlocks(ctx context.Context, playerID string) (map[string][]string, error)
}

// WSMessage is the flat JSON envelope for client commands and server
// responses.
type WSMessage struct {
	Type           string   `json:"type"`
	PlayerID       string   `json:"player_id,omitempty"`
	ClassID        string   `json:"class_id,omitempty"`
	Count          int      `json:"count,omitempty"`
	InstanceID     string   `json:"instance_id,omitempty"`
	InstanceIDs    []string `json:"instance_ids,omitempty"`
	TemplateID     string   `json:"template_id,omitempty"`
	AugmentationID string   `json:"augmentation_id,omitempty"`
	Cost           int      `json:"cost,omitempty"`
	Data           any      `json:"data,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// Server routes websocket commands to the engine, forwards engine
// notifications back to the owning player's connections, and keeps the
// snapshot store in sync after every state-changing command.
type Server struct {
	engine *gem.Engine
	hub    *Hub
	store  SnapshotStore
	logger *zap.Logger
}

// NewServer wires the engine to a hub and installs the notification
// bridge. store may be nil when persistence is disabled.
func NewServer(engine *gem.Engine, hub *Hub, store SnapshotStore, logger *zap.Logger) *Server {
	s := &Server{
		engine: engine,
		hub:    hub,
		store:  store,
		logger: logger,
	}
	engine.SetNotificationHandler(s.forwardEvent)
	return s
}

// forwardEvent pushes a domain event to the owning player's clients.
// Template unlocks are announced to every connected client.
func (s *Server) forwardEvent(evt events.Event) {
	payload, err := json.Marshal(WSMessage{
		Type:     "event",
		PlayerID: evt.PlayerID,
		Data:     evt,
	})
	if err != nil {
		s.logger.Error("marshal event", zap.Error(err))
		return
	}
	if evt.Type == events.EventTemplateUnlocked {
		s.hub.Broadcast(payload)
		return
	}
	s.hub.SendToPlayer(evt.PlayerID, payload)
}

// Handler returns the HTTP handler exposing the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		send: make(chan []byte, 256),
	}
	s.hub.register <- client

	go client.writePump()
	go client.readPump(s)
}

func (c *Client) readPump(s *Server) {
	defer func() {
		s.persist(c.playerID)
		s.hub.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.logger.Warn("bad websocket message", zap.Error(err))
			continue
		}
		s.handleMessage(c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

func (s *Server) handleMessage(c *Client, msg WSMessage) {
	switch msg.Type {
	case "join":
		if err := s.joinPlayer(msg.PlayerID, msg.ClassID); err != nil {
			s.sendError(c, err)
			return
		}
		c.playerID = msg.PlayerID
		s.persist(c.playerID)
		s.sendState(c)

	case "state":
		s.sendState(c)

	case "draw":
		count := msg.Count
		if count <= 0 {
			count = 1
		}
		if _, err := s.engine.Draw(c.playerID, count); err != nil {
			s.sendError(c, err)
			return
		}
		s.persist(c.playerID)
		s.sendState(c)

	case "play":
		results, err := s.engine.Play(c.playerID, msg.InstanceIDs)
		if err != nil {
			s.sendError(c, err)
			return
		}
		s.persist(c.playerID)
		s.send(c, WSMessage{Type: "play_result", Data: playResultViews(results)})
		s.sendState(c)

	case "discard":
		if _, err := s.engine.Discard(c.playerID, msg.InstanceIDs); err != nil {
			s.sendError(c, err)
			return
		}
		s.persist(c.playerID)
		s.sendState(c)

	case "recycle":
		if err := s.engine.Recycle(c.playerID); err != nil {
			s.sendError(c, err)
			return
		}
		s.persist(c.playerID)
		s.sendState(c)

	case "reset_period":
		if err := s.engine.ResetForNewPeriod(c.playerID); err != nil {
			s.sendError(c, err)
			return
		}
		s.persist(c.playerID)
		s.sendState(c)

	case "upgrade_options":
		options, err := s.engine.UpgradeOptions(c.playerID, msg.InstanceID)
		if err != nil {
			s.sendError(c, err)
			return
		}
		s.send(c, WSMessage{Type: "upgrade_options", InstanceID: msg.InstanceID, Data: gem.NewUpgradeOptionViews(options)})

	case "upgrade_commit":
		if _, err := s.engine.CommitUpgrade(c.playerID, msg.InstanceID, msg.TemplateID, msg.AugmentationID); err != nil {
			s.sendError(c, err)
			return
		}
		s.persist(c.playerID)
		s.sendState(c)

	case "unlock":
		if err := s.engine.Unlock(c.playerID, msg.TemplateID, msg.Cost); err != nil {
			s.sendError(c, err)
			return
		}
		s.recordUnlock(c.playerID, msg.TemplateID, msg.Cost)
		s.persist(c.playerID)
		s.sendState(c)

	case "unlocks":
		s.sendUnlockHistory(c)

	default:
		s.sendError(c, errors.New("unknown message type: "+msg.Type))
	}
}

// joinPlayer registers a player session. A rejoin keeps the live
// in-memory state; a fresh registration is hydrated from the snapshot
// store when a usable snapshot exists.
func (s *Server) joinPlayer(playerID, classID string) error {
	err := s.engine.AddPlayer(playerID, classID, 0)
	if err != nil {
		if errors.Is(err, gem.ErrPlayerExists) {
			return nil
		}
		return err
	}
	if s.store == nil {
		return nil
	}

	data, checksum, err := s.store.LoadSnapshot(context.Background(), playerID)
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		s.logger.Warn("load snapshot", zap.String("player_id", playerID), zap.Error(err))
		return nil
	}

	snap, err := gem.DeserializeSnapshot(data)
	if err != nil {
		s.logger.Warn("stored snapshot unreadable; starting fresh",
			zap.String("player_id", playerID), zap.Error(err))
		return nil
	}
	ok, err := snap.VerifyChecksum(&gem.SnapshotChecksum{Hash: checksum})
	if err != nil || !ok {
		s.logger.Warn("stored snapshot failed checksum; starting fresh",
			zap.String("player_id", playerID), zap.Error(err))
		return nil
	}
	if err := s.engine.RestoreSnapshot(snap, 0); err != nil {
		s.logger.Warn("restore snapshot; starting fresh",
			zap.String("player_id", playerID), zap.Error(err))
	}
	return nil
}

// persist writes the player's current snapshot to the store. Failures
// are logged, never surfaced to the client.
func (s *Server) persist(playerID string) {
	if s.store == nil || playerID == "" {
		return
	}
	snap, err := s.engine.Snapshot(playerID)
	if err != nil {
		s.logger.Error("snapshot player", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	checksum, err := snap.ComputeChecksum()
	if err != nil {
		s.logger.Error("checksum snapshot", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	data, err := snap.SerializeToBytes()
	if err != nil {
		s.logger.Error("serialize snapshot", zap.String("player_id", playerID), zap.Error(err))
		return
	}
	if err := s.store.SaveSnapshot(context.Background(), playerID, data, checksum.Hash); err != nil {
		s.logger.Error("save snapshot", zap.String("player_id", playerID), zap.Error(err))
	}
}

// recordUnlock appends a permanent unlock record for the audit trail.
func (s *Server) recordUnlock(playerID, templateID string, cost int) {
	if s.store == nil {
		return
	}
	view, err := s.engine.View(playerID)
	if err != nil {
		return
	}
	if err := s.store.RecordUnlock(context.Background(), playerID, view.ClassID, templateID, cost); err != nil {
		s.logger.Error("record unlock",
			zap.String("player_id", playerID),
			zap.String("template_id", templateID),
			zap.Error(err))
	}
}

func (s *Server) sendUnlockHistory(c *Client) {
	if s.store == nil {
		s.send(c, WSMessage{Type: "unlocks", Data: map[string][]string{}})
		return
	}
	records, err := s.store.ListUnlocks(context.Background(), c.playerID)
	if err != nil {
		s.sendError(c, err)
		return
	}
	s.send(c, WSMessage{Type: "unlocks", Data: records})
}

type playResultView struct {
	InstanceID string `json:"instance_id"`
	TemplateID string `json:"template_id"`
	Success    bool   `json:"success"`
}

func playResultViews(results []gem.PlayResult) []playResultView {
	out := make([]playResultView, 0, len(results))
	for _, r := range results {
		out = append(out, playResultView{
			InstanceID: r.Instance.InstanceID,
			TemplateID: r.Instance.TemplateID,
			Success:    r.Success,
		})
	}
	return out
}

func (s *Server) sendState(c *Client) {
	view, err := s.engine.View(c.playerID)
	if err != nil {
		s.sendError(c, err)
		return
	}
	s.send(c, WSMessage{Type: "player_state", Data: view})
}

func (s *Server) send(c *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("marshal response", zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (s *Server) sendError(c *Client, err error) {
	s.send(c, WSMessage{Type: "error", Error: err.Error()})
}

// StartHTTPServer runs the websocket server until ctx is cancelled.
func StartHTTPServer(ctx context.Context, addr string, s *Server, logger *zap.Logger) error {
	httpServer := &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		httpServer.Close()
	}()

	logger.Info("starting websocket server", zap.String("address", addr))
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
