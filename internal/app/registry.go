package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/core"
	"github.com/dkeye/livestage/internal/domain"
)

type subscriberEntry struct {
	RoomName domain.RoomName
	Identity domain.Identity
	Conn     core.SignalConnection
	Cancel   context.CancelFunc
}

// Registry tracks live event-feed subscribers by session.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*subscriberEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*subscriberEntry),
	}
}

func (r *Registry) Bind(
	sid core.SessionID,
	s domain.Session,
	conn core.SignalConnection,
	cancel context.CancelFunc,
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &subscriberEntry{
		RoomName: s.RoomName,
		Identity: s.Identity,
		Conn:     conn,
		Cancel:   cancel,
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(s.RoomName)).Msg("bound subscriber")
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return
	}
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind subscriber")
}

type regSnap struct {
	SID      core.SessionID
	Identity domain.Identity
	Conn     core.SignalConnection
}

func (r *Registry) MembersOfRoom(name domain.RoomName) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.RoomName == name {
			out = append(out, regSnap{SID: sid, Identity: e.Identity, Conn: e.Conn})
		}
	}
	return out
}

// Cancel stops the subscriber's pumps; the transport unbinds on exit.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled subscriber")
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
