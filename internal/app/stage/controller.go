// Package stage implements the stage-participation state machine: who may
// publish in a broadcast room, and who may change that.
//
// Every transition is a read-modify-write against the room directory. The
// controller keeps no state of its own; the directory is the system of record.
package stage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/core"
	"github.com/dkeye/livestage/internal/domain"
	"github.com/dkeye/livestage/internal/metadata"
)

// TokenIssuer mints capability tokens.
type TokenIssuer interface {
	Issue(room domain.RoomName, identity domain.Identity) (string, error)
}

// Controller wires the stage transitions to their collaborators.
// Locks and Events are optional.
type Controller struct {
	Directory core.RoomDirectory
	Ingress   core.IngressProvisioner
	Media     core.MediaTokenIssuer
	Tokens    TokenIssuer
	Locks     core.Locker
	Events    core.EventPublisher
}

type ConnectionDetails struct {
	Token string `json:"token"`
	WSURL string `json:"ws_url"`
}

// JoinResult is returned by every entry path.
type JoinResult struct {
	AuthToken         string            `json:"auth_token"`
	ConnectionDetails ConnectionDetails `json:"connection_details"`
}

type CreateStreamRequest struct {
	RoomName string              `json:"room_name"`
	Name     string              `json:"name"`
	Metadata domain.RoomMetadata `json:"metadata"`
}

type JoinStreamRequest struct {
	RoomName string `json:"room_name"`
	Identity string `json:"identity"`
	Name     string `json:"name"`
}

// Status is a participant's stage state after a transition.
type Status struct {
	Identity   domain.Identity            `json:"identity"`
	State      domain.StageState          `json:"state"`
	Metadata   domain.ParticipantMetadata `json:"metadata"`
	Permission domain.Permission          `json:"permission"`
}

// RoomView is the caller's view of a room.
type RoomView struct {
	Name     domain.RoomName     `json:"name"`
	Metadata domain.RoomMetadata `json:"metadata"`
	Self     Status              `json:"self"`
}

const (
	msgCreatorInvite = "Only the creator can invite to stage"
	msgCreatorStop   = "Only the creator can stop the stream"
	msgCreatorRemove = "Only the creator or the participant themself can remove from stage"
)

// CreateStream upserts the room and grants the creator publish rights
// immediately, bypassing the raise/invite flow.
func (c *Controller) CreateStream(ctx context.Context, req CreateStreamRequest) (JoinResult, error) {
	room, creator, name, err := c.upsertRoom(ctx, req.RoomName, req.Name, req.Metadata)
	if err != nil {
		return JoinResult{}, err
	}
	res, err := c.issue(room, creator, name, domain.HostPermission())
	if err != nil {
		return JoinResult{}, err
	}
	log.Info().Str("module", "app.stage").Str("room", string(room)).Str("identity", string(creator)).Msg("stream created")
	return res, nil
}

// JoinStream admits a viewer. An identity already present in the room is
// rejected; there are no reconnect semantics.
func (c *Controller) JoinStream(ctx context.Context, req JoinStreamRequest) (JoinResult, error) {
	room, err := domain.ParseRoomName(req.RoomName)
	if err != nil {
		return JoinResult{}, err
	}
	id, err := domain.NewIdentity(req.Identity)
	if err != nil {
		return JoinResult{}, domain.InvalidArgument("identity: " + err.Error())
	}
	name, err := domain.DisplayName(req.Name, id)
	if err != nil {
		return JoinResult{}, domain.InvalidArgument("name: " + err.Error())
	}

	if _, _, err := c.loadRoom(ctx, room); err != nil {
		return JoinResult{}, err
	}
	_, err = c.Directory.GetParticipant(ctx, room, id)
	switch {
	case err == nil:
		return JoinResult{}, domain.Conflict("participant already exists")
	case !domain.IsKind(err, domain.KindNotFound):
		return JoinResult{}, err
	}

	res, err := c.issue(room, id, name, domain.ViewerPermission())
	if err != nil {
		return JoinResult{}, err
	}
	log.Info().Str("module", "app.stage").Str("room", string(room)).Str("identity", string(id)).Msg("viewer joined")
	return res, nil
}

// StopStream deletes the room. Creator only; no drain period.
func (c *Controller) StopStream(ctx context.Context, s domain.Session) error {
	_, meta, err := c.loadRoom(ctx, s.RoomName)
	if err != nil {
		return err
	}
	if meta.CreatorIdentity != s.Identity {
		return domain.Forbidden(msgCreatorStop)
	}
	if err := c.Directory.DeleteRoom(ctx, s.RoomName); err != nil {
		return err
	}
	c.publish(s.RoomName, domain.StageEvent{
		Type:     domain.EventStreamStopped,
		Room:     s.RoomName,
		Identity: s.Identity,
		Actor:    s.Identity,
	})
	log.Info().Str("module", "app.stage").Str("room", string(s.RoomName)).Msg("stream stopped")
	return nil
}

// RaiseHand marks the caller as requesting the stage. Publishing is granted
// once the creator's invite is also present.
func (c *Controller) RaiseHand(ctx context.Context, s domain.Session) (Status, error) {
	return c.transition(ctx, s, s.Identity, domain.EventHandRaised, domain.RaiseHand)
}

// InviteToStage marks target as invited by the creator. Publishing is
// granted once target's hand is also raised.
func (c *Controller) InviteToStage(ctx context.Context, s domain.Session, target string) (Status, error) {
	id, err := domain.NewIdentity(target)
	if err != nil {
		return Status{}, domain.InvalidArgument("identity: " + err.Error())
	}
	_, meta, err := c.loadRoom(ctx, s.RoomName)
	if err != nil {
		return Status{}, err
	}
	if meta.CreatorIdentity != s.Identity {
		return Status{}, domain.Forbidden(msgCreatorInvite)
	}
	return c.transition(ctx, s, id, domain.EventInvited, domain.Invite)
}

// RemoveFromStage resets target's stage flags and revokes publish. An empty
// target means the caller; removing someone else requires the creator.
func (c *Controller) RemoveFromStage(ctx context.Context, s domain.Session, target string) (Status, error) {
	id := s.Identity
	if target != "" {
		parsed, err := domain.NewIdentity(target)
		if err != nil {
			return Status{}, domain.InvalidArgument("identity: " + err.Error())
		}
		id = parsed
	}
	if id != s.Identity {
		_, meta, err := c.loadRoom(ctx, s.RoomName)
		if err != nil {
			return Status{}, err
		}
		if meta.CreatorIdentity != s.Identity {
			return Status{}, domain.Forbidden(msgCreatorRemove)
		}
	}
	return c.transition(ctx, s, id, domain.EventRemoved, domain.ResetStage)
}

// Room returns the room metadata and the caller's own stage state.
func (c *Controller) Room(ctx context.Context, s domain.Session) (RoomView, error) {
	_, meta, err := c.loadRoom(ctx, s.RoomName)
	if err != nil {
		return RoomView{}, err
	}
	p, err := c.Directory.GetParticipant(ctx, s.RoomName, s.Identity)
	if err != nil {
		return RoomView{}, err
	}
	pm, _ := metadata.ParseOrCreateParticipantMetadata(p)
	return RoomView{
		Name:     s.RoomName,
		Metadata: meta,
		Self:     Status{Identity: p.Identity, State: pm.State(), Metadata: pm, Permission: p.Permission},
	}, nil
}

type transitionFunc func(domain.ParticipantMetadata, domain.Permission) (domain.ParticipantMetadata, domain.Permission)

// transition performs one get-compute-update cycle for (room, target) under
// the participant lock. Exactly one UpdateParticipant is issued.
func (c *Controller) transition(ctx context.Context, s domain.Session, target domain.Identity, event string, next transitionFunc) (Status, error) {
	if c.Locks != nil {
		unlock, err := c.Locks.Lock(ctx, lockKey(s.RoomName, target))
		if err != nil {
			return Status{}, err
		}
		defer unlock()
	}

	p, err := c.Directory.GetParticipant(ctx, s.RoomName, target)
	if err != nil {
		return Status{}, err
	}
	pm, usedDefault := metadata.ParseOrCreateParticipantMetadata(p)
	if usedDefault {
		log.Debug().Str("module", "app.stage").Str("room", string(s.RoomName)).Str("identity", string(target)).Msg("participant metadata defaulted")
	}

	pm, perm := next(pm, p.Permission)
	raw, err := metadata.EncodeParticipantMetadata(pm)
	if err != nil {
		return Status{}, domain.WrapError(domain.KindInternal, "encode participant metadata", err)
	}
	if _, err := c.Directory.UpdateParticipant(ctx, s.RoomName, target, raw, perm); err != nil {
		return Status{}, err
	}

	st := Status{Identity: target, State: pm.State(), Metadata: pm, Permission: perm}
	c.publish(s.RoomName, domain.StageEvent{
		Type:       event,
		Room:       s.RoomName,
		Identity:   target,
		Actor:      s.Identity,
		State:      st.State,
		CanPublish: st.Permission.CanPublish,
	})
	log.Info().
		Str("module", "app.stage").
		Str("room", string(s.RoomName)).
		Str("identity", string(target)).
		Str("actor", string(s.Identity)).
		Str("event", event).
		Stringer("state", st.State).
		Bool("can_publish", st.Permission.CanPublish).
		Msg("stage transition")
	return st, nil
}

// loadRoom fetches the room and decodes its metadata. Unreadable metadata
// yields an empty creator, so creator-only actions are refused.
func (c *Controller) loadRoom(ctx context.Context, name domain.RoomName) (domain.Room, domain.RoomMetadata, error) {
	rooms, err := c.Directory.ListRooms(ctx, []domain.RoomName{name})
	if err != nil {
		return domain.Room{}, domain.RoomMetadata{}, err
	}
	for _, r := range rooms {
		if r.Name == name {
			meta, _ := metadata.ParseRoomMetadata(r.Metadata, domain.RoomMetadata{})
			return r, meta, nil
		}
	}
	return domain.Room{}, domain.RoomMetadata{}, domain.NotFound("room does not exist")
}

// upsertRoom validates an entry request and writes the room with its full
// metadata. It is shared by CreateStream and CreateIngress.
func (c *Controller) upsertRoom(ctx context.Context, rawRoom, rawName string, meta domain.RoomMetadata) (domain.RoomName, domain.Identity, string, error) {
	creator, err := domain.NewIdentity(string(meta.CreatorIdentity))
	if err != nil {
		return "", "", "", domain.InvalidArgument("metadata.creator_identity: " + err.Error())
	}
	meta.CreatorIdentity = creator
	name, err := domain.DisplayName(rawName, creator)
	if err != nil {
		return "", "", "", domain.InvalidArgument("name: " + err.Error())
	}

	var room domain.RoomName
	if rawRoom == "" {
		if room, err = domain.GenerateRoomName(); err != nil {
			return "", "", "", domain.WrapError(domain.KindInternal, "generate room name", err)
		}
	} else if room, err = domain.ParseRoomName(rawRoom); err != nil {
		return "", "", "", err
	}

	raw, err := metadata.EncodeRoomMetadata(meta)
	if err != nil {
		return "", "", "", domain.WrapError(domain.KindInternal, "encode room metadata", err)
	}
	if _, err := c.Directory.CreateRoom(ctx, room, raw); err != nil {
		return "", "", "", err
	}
	return room, creator, name, nil
}

// issue mints the capability token and the media-session token.
func (c *Controller) issue(room domain.RoomName, id domain.Identity, name string, perm domain.Permission) (JoinResult, error) {
	mediaToken, err := c.Media.MediaToken(core.MediaGrant{Room: room, Identity: id, Name: name, Permission: perm})
	if err != nil {
		return JoinResult{}, domain.WrapError(domain.KindInternal, "mint media token", err)
	}
	authToken, err := c.Tokens.Issue(room, id)
	if err != nil {
		return JoinResult{}, domain.WrapError(domain.KindInternal, "mint capability token", err)
	}
	return JoinResult{
		AuthToken:         authToken,
		ConnectionDetails: ConnectionDetails{Token: mediaToken, WSURL: c.Media.WSURL()},
	}, nil
}

func (c *Controller) publish(room domain.RoomName, ev domain.StageEvent) {
	if c.Events != nil {
		c.Events.Publish(room, ev)
	}
}

func lockKey(room domain.RoomName, id domain.Identity) string {
	return fmt.Sprintf("stage:%s:%s", room, id)
}
