package domain

import "strings"

type IngressType string

const (
	IngressRTMP IngressType = "rtmp"
	IngressWHIP IngressType = "whip"
)

// ParseIngressType accepts "rtmp"/"whip" and the RTMP_INPUT/WHIP_INPUT spellings.
func ParseIngressType(raw string) (IngressType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "rtmp", "rtmp_input":
		return IngressRTMP, nil
	case "whip", "whip_input":
		return IngressWHIP, nil
	default:
		return "", InvalidArgument("ingress_type must be rtmp or whip")
	}
}

// Transcoded reports whether the media service should re-encode the feed.
// WHIP feeds are passed through as published.
func (t IngressType) Transcoded() bool { return t != IngressWHIP }

// IngressRequest asks the media service for an ingest endpoint.
type IngressRequest struct {
	Type                IngressType
	RoomName            RoomName
	ParticipantIdentity Identity
	ParticipantName     string
}

// IngressInfo is the endpoint an encoder pushes to.
type IngressInfo struct {
	IngressID           string      `json:"ingressId"`
	Name                string      `json:"name"`
	URL                 string      `json:"url"`
	StreamKey           string      `json:"streamKey"`
	InputType           IngressType `json:"inputType"`
	RoomName            RoomName    `json:"roomName"`
	ParticipantIdentity Identity    `json:"participantIdentity"`
	ParticipantName     string      `json:"participantName"`
}
