package domain

import "fmt"

// Permission mirrors the publish/subscribe grants enforced by the media service.
type Permission struct {
	CanPublish     bool `json:"canPublish"`
	CanSubscribe   bool `json:"canSubscribe"`
	CanPublishData bool `json:"canPublishData"`
}

// ParticipantMetadata is the stage-request state stored on a participant.
type ParticipantMetadata struct {
	HandRaised     bool   `json:"hand_raised"`
	InvitedToStage bool   `json:"invited_to_stage"`
	AvatarImage    string `json:"avatar_image"`
}

// Participant is one connected actor within a room.
type Participant struct {
	Identity   Identity
	Name       string
	Metadata   string
	Permission Permission
}

type StageState int

const (
	StageIdle StageState = iota
	StageHandRaised
	StageInvited
	StageOnStage
)

func (s StageState) String() string {
	switch s {
	case StageHandRaised:
		return "hand_raised"
	case StageInvited:
		return "invited"
	case StageOnStage:
		return "on_stage"
	default:
		return "idle"
	}
}

func (s StageState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *StageState) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = StageIdle
	case "hand_raised":
		*s = StageHandRaised
	case "invited":
		*s = StageInvited
	case "on_stage":
		*s = StageOnStage
	default:
		return fmt.Errorf("unknown stage state %q", b)
	}
	return nil
}

// State derives the stage label from the two independent flags.
func (m ParticipantMetadata) State() StageState {
	switch {
	case m.HandRaised && m.InvitedToStage:
		return StageOnStage
	case m.HandRaised:
		return StageHandRaised
	case m.InvitedToStage:
		return StageInvited
	default:
		return StageIdle
	}
}

// RaiseHand sets hand_raised and grants publish once the invite is also present.
func RaiseHand(m ParticipantMetadata, p Permission) (ParticipantMetadata, Permission) {
	m.HandRaised = true
	if m.InvitedToStage {
		p.CanPublish = true
	}
	return m, p
}

// Invite sets invited_to_stage and grants publish once the hand is also raised.
func Invite(m ParticipantMetadata, p Permission) (ParticipantMetadata, Permission) {
	m.InvitedToStage = true
	if m.HandRaised {
		p.CanPublish = true
	}
	return m, p
}

// ResetStage clears both flags and revokes publish, regardless of prior state.
func ResetStage(m ParticipantMetadata, p Permission) (ParticipantMetadata, Permission) {
	m.HandRaised = false
	m.InvitedToStage = false
	p.CanPublish = false
	return m, p
}

// HostPermission is granted to the broadcaster on createStream.
func HostPermission() Permission {
	return Permission{CanPublish: true, CanSubscribe: true, CanPublishData: true}
}

// ViewerPermission is granted on joinStream and to the ingress monitor session.
func ViewerPermission() Permission {
	return Permission{CanPublish: false, CanSubscribe: true, CanPublishData: true}
}
