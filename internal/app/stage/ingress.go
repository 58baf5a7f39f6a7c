package stage

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/domain"
)

// IngressIdentitySuffix distinguishes the encoder leg from the creator's
// browser leg in the same room.
const IngressIdentitySuffix = " (via OBS)"

type CreateIngressRequest struct {
	RoomName    string              `json:"room_name"`
	Name        string              `json:"name"`
	IngressType string              `json:"ingress_type"`
	Metadata    domain.RoomMetadata `json:"metadata"`
}

type IngressResult struct {
	JoinResult
	Ingress domain.IngressInfo `json:"ingress"`
}

// CreateIngress upserts the room like CreateStream, then provisions an
// ingest endpoint publishing as a synthetic identity. The creator receives a
// viewer-only session for monitoring the feed from a browser.
func (c *Controller) CreateIngress(ctx context.Context, req CreateIngressRequest) (IngressResult, error) {
	kind, err := domain.ParseIngressType(req.IngressType)
	if err != nil {
		return IngressResult{}, err
	}
	if c.Ingress == nil {
		return IngressResult{}, domain.Unavailable("ingress is not configured", nil)
	}

	room, creator, name, err := c.upsertRoom(ctx, req.RoomName, req.Name, req.Metadata)
	if err != nil {
		return IngressResult{}, err
	}

	info, err := c.Ingress.CreateIngress(ctx, domain.IngressRequest{
		Type:                kind,
		RoomName:            room,
		ParticipantIdentity: creator + IngressIdentitySuffix,
		ParticipantName:     name,
	})
	if err != nil {
		return IngressResult{}, err
	}

	res, err := c.issue(room, creator, name, domain.ViewerPermission())
	if err != nil {
		return IngressResult{}, err
	}
	log.Info().
		Str("module", "app.stage").
		Str("room", string(room)).
		Str("identity", string(creator)).
		Str("ingress_id", info.IngressID).
		Str("type", string(kind)).
		Msg("ingress created")
	return IngressResult{JoinResult: res, Ingress: info}, nil
}
