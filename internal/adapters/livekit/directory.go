// Package livekit adapts the LiveKit server APIs to the core ports.
package livekit

import (
	"context"
	"errors"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/twitchtv/twirp"

	"github.com/dkeye/livestage/internal/domain"
)

// Directory is a core.RoomDirectory backed by the LiveKit RoomService.
type Directory struct {
	client *lksdk.RoomServiceClient
}

func NewDirectory(url, apiKey, apiSecret string) *Directory {
	return &Directory{client: lksdk.NewRoomServiceClient(url, apiKey, apiSecret)}
}

func (d *Directory) ListRooms(ctx context.Context, names []domain.RoomName) ([]domain.Room, error) {
	req := &livekit.ListRoomsRequest{}
	for _, n := range names {
		req.Names = append(req.Names, string(n))
	}
	resp, err := d.client.ListRooms(ctx, req)
	if err != nil {
		return nil, mapError("list rooms", err)
	}
	rooms := make([]domain.Room, 0, len(resp.Rooms))
	for _, r := range resp.Rooms {
		rooms = append(rooms, toRoom(r))
	}
	return rooms, nil
}

func (d *Directory) CreateRoom(ctx context.Context, name domain.RoomName, metadata string) (domain.Room, error) {
	r, err := d.client.CreateRoom(ctx, &livekit.CreateRoomRequest{
		Name:     string(name),
		Metadata: metadata,
	})
	if err != nil {
		return domain.Room{}, mapError("create room", err)
	}
	// CreateRoom returns an existing room unchanged.
	if r.Metadata != metadata {
		if err := d.UpdateRoomMetadata(ctx, name, metadata); err != nil {
			return domain.Room{}, err
		}
		r.Metadata = metadata
	}
	return toRoom(r), nil
}

func (d *Directory) UpdateRoomMetadata(ctx context.Context, name domain.RoomName, metadata string) error {
	_, err := d.client.UpdateRoomMetadata(ctx, &livekit.UpdateRoomMetadataRequest{
		Room:     string(name),
		Metadata: metadata,
	})
	return mapError("update room metadata", err)
}

func (d *Directory) DeleteRoom(ctx context.Context, name domain.RoomName) error {
	_, err := d.client.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: string(name)})
	return mapError("delete room", err)
}

func (d *Directory) GetParticipant(ctx context.Context, room domain.RoomName, id domain.Identity) (domain.Participant, error) {
	p, err := d.client.GetParticipant(ctx, &livekit.RoomParticipantIdentity{
		Room:     string(room),
		Identity: string(id),
	})
	if err != nil {
		return domain.Participant{}, mapError("get participant", err)
	}
	return toParticipant(p), nil
}

func (d *Directory) UpdateParticipant(ctx context.Context, room domain.RoomName, id domain.Identity, metadata string, perm domain.Permission) (domain.Participant, error) {
	p, err := d.client.UpdateParticipant(ctx, &livekit.UpdateParticipantRequest{
		Room:       string(room),
		Identity:   string(id),
		Metadata:   metadata,
		Permission: toPermission(perm),
	})
	if err != nil {
		return domain.Participant{}, mapError("update participant", err)
	}
	return toParticipant(p), nil
}

func toRoom(r *livekit.Room) domain.Room {
	return domain.Room{
		Name:            domain.RoomName(r.GetName()),
		Metadata:        r.GetMetadata(),
		NumParticipants: int(r.GetNumParticipants()),
	}
}

func toParticipant(p *livekit.ParticipantInfo) domain.Participant {
	out := domain.Participant{
		Identity: domain.Identity(p.GetIdentity()),
		Name:     p.GetName(),
		Metadata: p.GetMetadata(),
	}
	if perm := p.GetPermission(); perm != nil {
		out.Permission = domain.Permission{
			CanPublish:     perm.GetCanPublish(),
			CanSubscribe:   perm.GetCanSubscribe(),
			CanPublishData: perm.GetCanPublishData(),
		}
	}
	return out
}

func toPermission(p domain.Permission) *livekit.ParticipantPermission {
	return &livekit.ParticipantPermission{
		CanPublish:     p.CanPublish,
		CanSubscribe:   p.CanSubscribe,
		CanPublishData: p.CanPublishData,
	}
}

// mapError classifies RoomService failures. Anything other than a definite
// "not found" or "bad argument" answer is reported as Unavailable.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var terr twirp.Error
	if errors.As(err, &terr) {
		switch terr.Code() {
		case twirp.NotFound:
			return domain.WrapError(domain.KindNotFound, op+": not found", err)
		case twirp.InvalidArgument, twirp.Malformed:
			return domain.WrapError(domain.KindInvalidArgument, op+": "+terr.Msg(), err)
		}
	}
	return domain.Unavailable("media service unavailable", err)
}
