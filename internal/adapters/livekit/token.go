package livekit

import (
	"time"

	"github.com/livekit/protocol/auth"

	"github.com/dkeye/livestage/internal/core"
)

// MediaTokens mints LiveKit access tokens.
type MediaTokens struct {
	apiKey    string
	apiSecret string
	wsURL     string
	ttl       time.Duration
}

// NewMediaTokens returns an issuer; ttl <= 0 keeps the SDK default validity.
func NewMediaTokens(apiKey, apiSecret, wsURL string, ttl time.Duration) *MediaTokens {
	return &MediaTokens{apiKey: apiKey, apiSecret: apiSecret, wsURL: wsURL, ttl: ttl}
}

func (m *MediaTokens) MediaToken(g core.MediaGrant) (string, error) {
	grant := &auth.VideoGrant{
		RoomJoin: true,
		Room:     string(g.Room),
	}
	grant.SetCanPublish(g.Permission.CanPublish)
	grant.SetCanSubscribe(g.Permission.CanSubscribe)
	grant.SetCanPublishData(g.Permission.CanPublishData)

	at := auth.NewAccessToken(m.apiKey, m.apiSecret).
		SetVideoGrant(grant).
		SetIdentity(string(g.Identity)).
		SetName(g.Name)
	if m.ttl > 0 {
		at.SetValidFor(m.ttl)
	}
	return at.ToJWT()
}

func (m *MediaTokens) WSURL() string { return m.wsURL }
