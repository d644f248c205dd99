package gateway

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/feltstack/feltstack/pkg/table"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The gateway is consumed by browser clients on arbitrary origins
	// during development, mirroring the CORS layer on the HTTP routes.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsClientMessage is a command sent over an open socket. Join is
// intentionally unsupported here: clients join through the HTTP API, which
// gives atomic wallet transfers and ordinary error responses instead of a
// best-effort socket round trip.
type wsClientMessage struct {
	Type   string `json:"type"`
	Action string `json:"action,omitempty"`
	Amount int64  `json:"amount,omitempty"`
}

type wsServerResponse struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// handleWebSocket upgrades an authenticated connection to a table's live
// view stream. The query token is verified the same way the bearer header
// is on HTTP routes, since browsers can't set headers on a WebSocket
// handshake.
func handleWebSocket(state *AppState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tableID, err := strconv.ParseInt(chi.URLParam(r, "tableID"), 10, 64)
		if err != nil {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}
		token := r.URL.Query().Get("token")
		claims, err := state.Auth.VerifyAccessToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		userID := claims.Subject

		a, err := state.Tables.Get(tableID)
		if err != nil {
			writeError(w, http.StatusNotFound, "table not found")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		serveTableSocket(r.Context(), conn, a, userID)
	}
}

// serveTableSocket runs the connection's send and receive loops until the
// client disconnects or the table's update channel closes, then leaves the
// table on the caller's behalf the way the reference server's socket
// handler does.
func serveTableSocket(ctx context.Context, conn *websocket.Conn, a *table.Actor, userID int64) {
	updates, err := a.Subscribe(ctx, userID)
	if err != nil {
		_ = conn.WriteJSON(wsServerResponse{Type: "error", Message: "failed to subscribe"})
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range updates {
			gv, err := a.GetView(ctx, userID)
			if err != nil {
				return
			}
			if err := conn.WriteJSON(gv); err != nil {
				return
			}
		}
	}()

	for {
		var msg wsClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		handleSocketMessage(ctx, conn, a, userID, msg)
	}

	_ = a.Leave(ctx, userID)
	<-done
}

func handleSocketMessage(ctx context.Context, conn *websocket.Conn, a *table.Actor, userID int64, msg wsClientMessage) {
	switch msg.Type {
	case "leave":
		if err := a.Leave(ctx, userID); err != nil {
			_ = conn.WriteJSON(wsServerResponse{Type: "error", Message: err.Error()})
			return
		}
		_ = conn.WriteJSON(wsServerResponse{Type: "success", Message: "left table"})
	case "action":
		if err := a.TakeAction(ctx, userID, table.Action(msg.Action), msg.Amount); err != nil {
			_ = conn.WriteJSON(wsServerResponse{Type: "error", Message: err.Error()})
			return
		}
		_ = conn.WriteJSON(wsServerResponse{Type: "success", Message: "action processed"})
	case "join":
		_ = conn.WriteJSON(wsServerResponse{Type: "error", Message: "join via HTTP API: POST /api/tables/{id}/join"})
	default:
		_ = conn.WriteJSON(wsServerResponse{Type: "error", Message: "unknown message type"})
	}
}
