package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/pos-dashboard/internal/broadcast"
	"github.com/iliyamo/pos-dashboard/internal/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
	wsReadLimit  = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// views are served from other origins on the store LAN
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundTopics are the only topics a view may publish over the socket.
// Everything that changes state goes through the HTTP API.
var inboundTopics = map[broadcast.Topic]bool{
	broadcast.RequestMenuItems:       true,
	broadcast.RequestAvailableTables: true,
}

// customerTopics are what an unauthenticated customer display may watch.
var customerTopics = map[broadcast.Topic]bool{
	broadcast.MenuItemsUpdated: true,
	broadcast.AvailableTables:  true,
}

// EventsHandler streams hub events to views over a websocket.
type EventsHandler struct {
	Hub *broadcast.Hub
	Log *slog.Logger

	allowed map[broadcast.Topic]bool
}

func NewEventsHandler(hub *broadcast.Hub, log *slog.Logger) *EventsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &EventsHandler{Hub: hub, Log: log}
}

// ForCustomerDisplay returns a copy limited to the menu and table
// snapshots.
func (h *EventsHandler) ForCustomerDisplay() *EventsHandler {
	cp := *h
	cp.allowed = customerTopics
	return &cp
}

// Stream upgrades the request and forwards events of the topics named
// in ?topics=a,b. A view may send {"topic":"request-menu-items"} to get
// the current snapshot again.
func (h *EventsHandler) Stream(c echo.Context) error {
	topics, err := parseTopics(c.QueryParam("topics"), h.allowed)
	if err != nil {
		return badRequest(c, err.Error())
	}
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// the upgrader already wrote the error response
		h.Log.Warn("websocket upgrade failed", slog.String("action", "ws_upgrade"), logger.Err(err))
		return nil
	}
	sub := h.Hub.Subscribe(topics...)
	ctx, cancel := context.WithCancel(context.Background())

	h.Log.Info("view connected", slog.String("action", "ws_connect"),
		slog.String("remote_ip", c.RealIP()), slog.Int("topics", len(topics)))

	go h.writePump(ctx, conn, sub)
	h.readPump(conn)

	cancel()
	sub.Close()
	h.Log.Info("view disconnected", slog.String("action", "ws_disconnect"), slog.String("remote_ip", c.RealIP()))
	return nil
}

// readPump handles inbound requests until the connection fails.
func (h *EventsHandler) readPump(conn *websocket.Conn) {
	defer conn.Close()
	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.Log.Warn("websocket read failed", slog.String("action", "ws_read"), logger.Err(err))
			}
			return
		}
		var in struct {
			Topic broadcast.Topic `json:"topic"`
		}
		if err := json.Unmarshal(msg, &in); err != nil || !inboundTopics[in.Topic] {
			h.Log.Warn("websocket message ignored", slog.String("action", "ws_read"), slog.String("topic", string(in.Topic)))
			continue
		}
		if _, err := h.Hub.Publish(in.Topic, nil); err != nil {
			h.Log.Error("websocket request failed", slog.String("action", "ws_read"), logger.Err(err))
		}
	}
}

// writePump forwards events and keeps the connection alive with pings.
func (h *EventsHandler) writePump(ctx context.Context, conn *websocket.Conn, sub broadcast.Subscription) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseTopics reads a comma separated topic list. Empty means every
// topic the caller may listen to. A nil allowed set permits all.
func parseTopics(raw string, allowed map[broadcast.Topic]bool) ([]broadcast.Topic, error) {
	var out []broadcast.Topic
	if strings.TrimSpace(raw) == "" {
		for _, t := range broadcast.All() {
			if allowed == nil || allowed[t] {
				out = append(out, t)
			}
		}
		return out, nil
	}
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		t, err := broadcast.ParseTopic(p)
		if err != nil {
			return nil, err
		}
		if allowed != nil && !allowed[t] {
			return nil, fmt.Errorf("topic %q not available", p)
		}
		out = append(out, t)
	}
	return out, nil
}
