// Package memory is an in-process stand-in for the media service's room
// directory and ingress API. It backs the "memory" directory driver and the
// stage controller tests.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/domain"
)

var ErrUnavailable = errors.New("directory offline")

type room struct {
	info         domain.Room
	participants map[domain.Identity]domain.Participant
}

// Directory is a threadsafe in-memory room directory.
type Directory struct {
	mu      sync.RWMutex
	rooms   map[domain.RoomName]*room
	offline bool
}

func NewDirectory() *Directory {
	return &Directory{rooms: make(map[domain.RoomName]*room)}
}

// SetOffline makes every call fail with Unavailable until reset.
func (d *Directory) SetOffline(offline bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.offline = offline
}

func (d *Directory) ListRooms(_ context.Context, names []domain.RoomName) ([]domain.Room, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.offline {
		return nil, domain.Unavailable("media service unavailable", ErrUnavailable)
	}
	out := make([]domain.Room, 0, len(d.rooms))
	if len(names) == 0 {
		for _, r := range d.rooms {
			out = append(out, d.snapshot(r))
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out, nil
	}
	for _, n := range names {
		if r, ok := d.rooms[n]; ok {
			out = append(out, d.snapshot(r))
		}
	}
	return out, nil
}

func (d *Directory) CreateRoom(_ context.Context, name domain.RoomName, metadata string) (domain.Room, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline {
		return domain.Room{}, domain.Unavailable("media service unavailable", ErrUnavailable)
	}
	r, ok := d.rooms[name]
	if !ok {
		r = &room{
			info:         domain.Room{Name: name},
			participants: make(map[domain.Identity]domain.Participant),
		}
		d.rooms[name] = r
		log.Debug().Str("module", "adapters.memory").Str("room", string(name)).Msg("room created")
	}
	r.info.Metadata = metadata
	return d.snapshot(r), nil
}

func (d *Directory) UpdateRoomMetadata(_ context.Context, name domain.RoomName, metadata string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline {
		return domain.Unavailable("media service unavailable", ErrUnavailable)
	}
	r, ok := d.rooms[name]
	if !ok {
		return domain.NotFound("room does not exist")
	}
	r.info.Metadata = metadata
	return nil
}

func (d *Directory) DeleteRoom(_ context.Context, name domain.RoomName) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline {
		return domain.Unavailable("media service unavailable", ErrUnavailable)
	}
	if _, ok := d.rooms[name]; !ok {
		return domain.NotFound("room does not exist")
	}
	delete(d.rooms, name)
	log.Debug().Str("module", "adapters.memory").Str("room", string(name)).Msg("room deleted")
	return nil
}

func (d *Directory) GetParticipant(_ context.Context, name domain.RoomName, id domain.Identity) (domain.Participant, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.offline {
		return domain.Participant{}, domain.Unavailable("media service unavailable", ErrUnavailable)
	}
	r, ok := d.rooms[name]
	if !ok {
		return domain.Participant{}, domain.NotFound("room does not exist")
	}
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, domain.NotFound("participant not found")
	}
	return p, nil
}

func (d *Directory) UpdateParticipant(_ context.Context, name domain.RoomName, id domain.Identity, metadata string, perm domain.Permission) (domain.Participant, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.offline {
		return domain.Participant{}, domain.Unavailable("media service unavailable", ErrUnavailable)
	}
	r, ok := d.rooms[name]
	if !ok {
		return domain.Participant{}, domain.NotFound("room does not exist")
	}
	p, ok := r.participants[id]
	if !ok {
		return domain.Participant{}, domain.NotFound("participant not found")
	}
	p.Metadata = metadata
	p.Permission = perm
	r.participants[id] = p
	return p, nil
}

// Connect adds a participant the way the media service does when a client
// connects with a media token. Rooms that do not exist are created empty.
func (d *Directory) Connect(name domain.RoomName, p domain.Participant) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[name]
	if !ok {
		r = &room{
			info:         domain.Room{Name: name},
			participants: make(map[domain.Identity]domain.Participant),
		}
		d.rooms[name] = r
	}
	r.participants[p.Identity] = p
	log.Debug().Str("module", "adapters.memory").Str("room", string(name)).Str("identity", string(p.Identity)).Msg("participant connected")
}

// Disconnect drops a participant as the media service does on connection loss.
func (d *Directory) Disconnect(name domain.RoomName, id domain.Identity) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.rooms[name]; ok {
		delete(r.participants, id)
	}
}

func (d *Directory) snapshot(r *room) domain.Room {
	info := r.info
	info.NumParticipants = len(r.participants)
	return info
}
