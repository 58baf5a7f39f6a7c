// Package metadata encodes and decodes the JSON documents stored on rooms and
// participants in the media service.
//
// Decoding never fails: a missing or malformed document is replaced by a
// default and reported through the usedDefault result, so a bad prior write
// can never lock a participant out of the stage.
package metadata

import (
	"encoding/json"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/livestage/internal/domain"
)

const avatarBaseURL = "https://api.dicebear.com/5.x/open-peeps/svg?seed="

// DefaultAvatar returns the avatar reference derived from identity.
func DefaultAvatar(id domain.Identity) string {
	return avatarBaseURL + url.QueryEscape(string(id))
}

// DefaultParticipantMetadata is the Idle state for id.
func DefaultParticipantMetadata(id domain.Identity) domain.ParticipantMetadata {
	return domain.ParticipantMetadata{AvatarImage: DefaultAvatar(id)}
}

// ParseRoomMetadata decodes raw, returning def when raw is empty or malformed.
func ParseRoomMetadata(raw string, def domain.RoomMetadata) (domain.RoomMetadata, bool) {
	if strings.TrimSpace(raw) == "" {
		return def, true
	}
	var m domain.RoomMetadata
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		log.Warn().Err(err).Str("module", "metadata").Bool("used_default", true).Msg("room metadata unreadable")
		return def, true
	}
	return m, false
}

// ParseOrCreateParticipantMetadata decodes the participant's metadata. An
// empty or malformed document yields the Idle default for the identity; a
// missing avatar is filled in without counting as a default.
func ParseOrCreateParticipantMetadata(p domain.Participant) (domain.ParticipantMetadata, bool) {
	if strings.TrimSpace(p.Metadata) == "" {
		return DefaultParticipantMetadata(p.Identity), true
	}
	var m domain.ParticipantMetadata
	if err := json.Unmarshal([]byte(p.Metadata), &m); err != nil {
		log.Warn().
			Err(err).
			Str("module", "metadata").
			Str("identity", string(p.Identity)).
			Bool("used_default", true).
			Msg("participant metadata unreadable")
		return DefaultParticipantMetadata(p.Identity), true
	}
	if m.AvatarImage == "" {
		m.AvatarImage = DefaultAvatar(p.Identity)
	}
	return m, false
}

func EncodeRoomMetadata(m domain.RoomMetadata) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func EncodeParticipantMetadata(m domain.ParticipantMetadata) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
