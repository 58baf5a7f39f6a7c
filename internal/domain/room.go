package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
)

type RoomName string

const (
	roomSegmentLen = 4
	roomCharset    = "abcdefghijklmnopqrstuvwxyz0123456789"
	MaxRoomNameLen = 64
)

var generatedRoomName = regexp.MustCompile(`^[a-z0-9]{4}-[a-z0-9]{4}$`)

// RoomMetadata is the broadcast-level config stored on the room.
// Callers must resend the full document on every upsert.
type RoomMetadata struct {
	CreatorIdentity    Identity `json:"creator_identity"`
	EnableChat         bool     `json:"enable_chat"`
	AllowParticipation bool     `json:"allow_participation"`
}

// Room is a broadcast room as reported by the media service.
// Metadata is the raw JSON document; decode it with the metadata codec.
type Room struct {
	Name            RoomName
	Metadata        string
	NumParticipants int
}

// GenerateRoomName returns a name of the form "abcd-1234".
func GenerateRoomName() (RoomName, error) {
	a, err := randomSegment(roomSegmentLen)
	if err != nil {
		return "", err
	}
	b, err := randomSegment(roomSegmentLen)
	if err != nil {
		return "", err
	}
	return RoomName(a + "-" + b), nil
}

// IsGeneratedRoomName reports whether name has the generated shape.
func IsGeneratedRoomName(name RoomName) bool {
	return generatedRoomName.MatchString(string(name))
}

func randomSegment(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(roomCharset)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("room name entropy: %w", err)
		}
		out[i] = roomCharset[n.Int64()]
	}
	return string(out), nil
}

// ParseRoomName validates a caller-supplied room name.
func ParseRoomName(raw string) (RoomName, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", InvalidArgument("room_name is required")
	}
	if len(name) > MaxRoomNameLen {
		return "", InvalidArgument("room_name too long")
	}
	return RoomName(name), nil
}
