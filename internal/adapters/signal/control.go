package signal

import (
	"context"

	"github.com/dkeye/livestage/internal/domain"
)

func (ctl *EventsController) handlePing(conn *WsSignalConn) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	ctl.sendJSON(conn, resp)
}

func (ctl *EventsController) handleWhoAmI(s domain.Session, conn *WsSignalConn) {
	resp := struct {
		Type     string          `json:"type"`
		Identity domain.Identity `json:"identity"`
		Room     domain.RoomName `json:"room"`
	}{
		Type:     "whoami",
		Identity: s.Identity,
		Room:     s.RoomName,
	}
	ctl.sendJSON(conn, resp)
}

// handleState sends the caller's current room view, for clients resyncing
// after a dropped event.
func (ctl *EventsController) handleState(ctx context.Context, s domain.Session, conn *WsSignalConn) {
	if ctl.Stage == nil {
		ctl.sendError(conn, "unavailable")
		return
	}
	view, err := ctl.Stage.Room(ctx, s)
	if err != nil {
		ctl.sendJSON(conn, map[string]any{
			"type":    "error",
			"error":   domain.KindOf(err).String(),
			"message": domain.MessageOf(err),
		})
		return
	}
	ctl.sendJSON(conn, map[string]any{
		"type": "state",
		"room": view,
	})
}
