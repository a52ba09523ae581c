package httpapi

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"modelsync/internal/document"
	"modelsync/internal/manager"
	"modelsync/pkg/types"
)

// subscriptionHeader carries the connection id in the upgrade response.
const subscriptionHeader = "X-Subscription-ID"

// pushListener forwards the notifications of one websocket subscriber to its
// writer goroutine. ModelsChanged runs on the delivery executor and never
// blocks: a subscriber lagging more than its buffer is disconnected.
type pushListener struct {
	out      chan types.NotificationMessage
	overflow chan struct{}
	once     sync.Once
}

func newPushListener(n int) *pushListener {
	return &pushListener{
		out:      make(chan types.NotificationMessage, n),
		overflow: make(chan struct{}),
	}
}

func (l *pushListener) ModelsChanged(n manager.Notification) {
	select {
	case l.out <- toMessage(n):
	default:
		incPushDropped("slow_consumer")
		l.once.Do(func() { close(l.overflow) })
	}
}

func toMessage(n manager.Notification) types.NotificationMessage {
	msg := types.NotificationMessage{
		Seq:     n.Seq,
		CatchUp: n.CatchUp,
		Changes: make([]types.ChangeMessage, 0, len(n.Changes)),
	}
	switch c := n.Context.(type) {
	case nil:
	case string:
		msg.Context = c
	default:
		msg.Context = fmt.Sprint(c)
	}
	for _, c := range n.Changes {
		cm := types.ChangeMessage{ID: string(c.ID), Deleted: c.Deleted}
		if !c.Deleted && c.Node != nil {
			m := document.ToModel(c.Node)
			cm.Model = &m
		}
		msg.Changes = append(msg.Changes, cm)
	}
	return msg
}

// parseIDs accepts repeated and comma-separated id values.
func parseIDs(vals []string) []manager.ID {
	var out []manager.ID
	for _, v := range vals {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" && !slices.Contains(out, manager.ID(p)) {
				out = append(out, manager.ID(p))
			}
		}
	}
	return out
}

func newUpgrader() *websocket.Upgrader {
	u := &websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096}
	if corsEnabled && len(corsAllowedOrigins) > 0 {
		origins := slices.Clone(corsAllowedOrigins)
		u.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || slices.Contains(origins, "*") || slices.Contains(origins, o)
		}
	}
	return u
}

// serveSubscribe upgrades the request to a websocket and registers it as a
// listener for the requested ids. The subscription lives as long as the
// connection.
func serveSubscribe(svc Service, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids := parseIDs(r.URL.Query()["id"])
		if len(ids) == 0 {
			writeJSONError(w, http.StatusBadRequest, "at least one id is required")
			return
		}
		if !svc.Ready() {
			writeJSONError(w, http.StatusServiceUnavailable, manager.ErrClosed.Error())
			return
		}
		connID := uuid.New()
		conn, err := upgrader.Upgrade(w, r, http.Header{subscriptionHeader: {connID.String()}})
		if err != nil {
			// Upgrade has already replied.
			return
		}
		l := newPushListener(pushBuffer)
		sub := svc.Subscribe(l, ids...)
		pushConnections.Inc()
		defer pushConnections.Dec()
		logDebug(r, "subscribe", "push subscriber connected", map[string]any{"ids": len(ids), "conn": connID.String()})

		done := make(chan struct{})
		go writePump(conn, l, done)
		readPump(r, conn, sub)
		sub.Close()
		close(done)
		logDebug(r, "unsubscribe", "push subscriber disconnected", map[string]any{"conn": connID.String()})
	}
}

// readPump applies client control frames until the connection fails.
func readPump(r *http.Request, conn *websocket.Conn, sub *manager.Subscription) {
	conn.SetReadLimit(pushReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(pushPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pushPongWait))
	})
	for {
		var msg types.ControlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pushPongWait))
		switch msg.Op {
		case "pause":
			sub.Pause()
		case "resume":
			sub.Resume()
		case "listen":
			sub.Listen(parseIDs(msg.IDs)...)
		default:
			logDebug(r, "control_unknown", "ignoring control frame", map[string]any{"op": msg.Op})
		}
	}
}

// writePump is the only writer of conn. It closes conn on return.
func writePump(conn *websocket.Conn, l *pushListener, done <-chan struct{}) {
	ping := time.NewTicker(pushPingPeriod)
	defer func() {
		ping.Stop()
		_ = conn.Close()
	}()
	closeWith := func(code int, text string) {
		_ = conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, text))
	}
	for {
		select {
		case msg := <-l.out:
			_ = conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				incPushDropped("write_error")
				return
			}
		case <-l.overflow:
			closeWith(websocket.ClosePolicyViolation, "subscriber too slow")
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(pushWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-serverBaseCtx.Done():
			closeWith(websocket.CloseGoingAway, "server shutting down")
			return
		case <-done:
			closeWith(websocket.CloseNormalClosure, "")
			return
		}
	}
}
