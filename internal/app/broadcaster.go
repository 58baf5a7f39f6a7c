package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/core"
	"github.com/dkeye/livestage/internal/domain"
)

// Broadcaster fans stage events out to the room's feed subscribers.
// It implements core.EventPublisher.
type Broadcaster struct {
	Registry *Registry
	Policy   Policy
}

func (b *Broadcaster) Publish(room domain.RoomName, ev domain.StageEvent) {
	frame, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("module", "app.broadcast").Msg("marshal event")
		return
	}

	var dropped []core.SessionID
	members := b.Registry.MembersOfRoom(room)
	for _, snap := range members {
		if err := snap.Conn.TrySend(core.Frame(frame)); err != nil {
			dropped = append(dropped, snap.SID)
		}
	}
	log.Debug().Str("module", "app.broadcast").Str("room", string(room)).Str("event", ev.Type).Int("subscribers", len(members)).Int("dropped", len(dropped)).Msg("event published")

	if b.Policy != nil {
		for _, sid := range dropped {
			switch b.Policy.OnBackPressure(room, sid) {
			case KickMember:
				b.Kick(sid)
			case DropFrame, NoAction:
			}
		}
	}

	if ev.Type == domain.EventStreamStopped {
		b.EvictRoom(room)
	}
}

func (b *Broadcaster) Kick(sid core.SessionID) {
	if b.Registry.Cancel(sid) {
		b.Registry.Unbind(sid)
	}
}

// EvictRoom disconnects every subscriber of the room.
func (b *Broadcaster) EvictRoom(name domain.RoomName) {
	for _, snap := range b.Registry.MembersOfRoom(name) {
		b.Kick(snap.SID)
	}
}
