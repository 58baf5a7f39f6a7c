package livekit

import (
	"context"

	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/dkeye/livestage/internal/domain"
)

// Ingress is a core.IngressProvisioner backed by the LiveKit Ingress service.
type Ingress struct {
	client *lksdk.IngressClient
}

func NewIngress(url, apiKey, apiSecret string) *Ingress {
	return &Ingress{client: lksdk.NewIngressClient(url, apiKey, apiSecret)}
}

func (i *Ingress) CreateIngress(ctx context.Context, req domain.IngressRequest) (domain.IngressInfo, error) {
	info, err := i.client.CreateIngress(ctx, ingressRequest(req))
	if err != nil {
		return domain.IngressInfo{}, mapError("create ingress", err)
	}
	return toIngressInfo(info, req.Type), nil
}

// ingressRequest builds the wire request. RTMP feeds are transcoded into
// simulcast layers; WHIP feeds are forwarded as published.
func ingressRequest(req domain.IngressRequest) *livekit.CreateIngressRequest {
	out := &livekit.CreateIngressRequest{
		Name:                string(req.RoomName),
		RoomName:            string(req.RoomName),
		ParticipantIdentity: string(req.ParticipantIdentity),
		ParticipantName:     req.ParticipantName,
	}
	switch req.Type {
	case domain.IngressWHIP:
		out.InputType = livekit.IngressInput_WHIP_INPUT
	default:
		out.InputType = livekit.IngressInput_RTMP_INPUT
	}

	transcode := req.Type.Transcoded()
	out.EnableTranscoding = &transcode
	if !transcode {
		return out
	}
	out.Video = &livekit.IngressVideoOptions{
		Source: livekit.TrackSource_CAMERA,
		EncodingOptions: &livekit.IngressVideoOptions_Preset{
			Preset: livekit.IngressVideoEncodingPreset_H264_1080P_30FPS_3_LAYERS,
		},
	}
	out.Audio = &livekit.IngressAudioOptions{
		Source: livekit.TrackSource_MICROPHONE,
		EncodingOptions: &livekit.IngressAudioOptions_Preset{
			Preset: livekit.IngressAudioEncodingPreset_OPUS_STEREO_96KBPS,
		},
	}
	return out
}

func toIngressInfo(info *livekit.IngressInfo, kind domain.IngressType) domain.IngressInfo {
	return domain.IngressInfo{
		IngressID:           info.GetIngressId(),
		Name:                info.GetName(),
		URL:                 info.GetUrl(),
		StreamKey:           info.GetStreamKey(),
		InputType:           kind,
		RoomName:            domain.RoomName(info.GetRoomName()),
		ParticipantIdentity: domain.Identity(info.GetParticipantIdentity()),
		ParticipantName:     info.GetParticipantName(),
	}
}
