// Package core declares the ports the stage controller depends on. Adapters
// implement them; nothing here performs I/O.
package core

import (
	"context"

	"github.com/dkeye/livestage/internal/domain"
)

// RoomDirectory is the room/participant store of the external media service.
// It is the system of record: every call is one synchronous round trip and
// results are never cached. Transport failures are returned as Unavailable,
// absent rooms or participants as NotFound.
type RoomDirectory interface {
	ListRooms(ctx context.Context, names []domain.RoomName) ([]domain.Room, error)
	// CreateRoom creates the room or overwrites the metadata of an existing one.
	CreateRoom(ctx context.Context, name domain.RoomName, metadata string) (domain.Room, error)
	UpdateRoomMetadata(ctx context.Context, name domain.RoomName, metadata string) error
	// DeleteRoom removes the room and every participant in it.
	DeleteRoom(ctx context.Context, name domain.RoomName) error
	GetParticipant(ctx context.Context, room domain.RoomName, id domain.Identity) (domain.Participant, error)
	UpdateParticipant(ctx context.Context, room domain.RoomName, id domain.Identity, metadata string, perm domain.Permission) (domain.Participant, error)
}

// IngressProvisioner creates encoder-facing ingest endpoints.
type IngressProvisioner interface {
	CreateIngress(ctx context.Context, req domain.IngressRequest) (domain.IngressInfo, error)
}

// MediaGrant describes a media-session credential.
type MediaGrant struct {
	Room       domain.RoomName
	Identity   domain.Identity
	Name       string
	Permission domain.Permission
}

// MediaTokenIssuer mints credentials for connecting to the media service.
type MediaTokenIssuer interface {
	MediaToken(grant MediaGrant) (string, error)
	WSURL() string
}

// Locker serializes work on a key. The returned unlock must be called once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// EventPublisher fans out stage events to subscribers of a room.
// Delivery is best effort.
type EventPublisher interface {
	Publish(room domain.RoomName, ev domain.StageEvent)
}
