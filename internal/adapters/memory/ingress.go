package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dkeye/livestage/internal/domain"
)

// Ingress records provisioned endpoints instead of calling the media service.
type Ingress struct {
	mu      sync.Mutex
	baseURL string
	created []domain.IngressRequest
}

func NewIngress(baseURL string) *Ingress {
	return &Ingress{baseURL: baseURL}
}

func (i *Ingress) CreateIngress(_ context.Context, req domain.IngressRequest) (domain.IngressInfo, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.created = append(i.created, req)

	id := "IN_" + uuid.NewString()
	info := domain.IngressInfo{
		IngressID:           id,
		Name:                string(req.RoomName),
		InputType:           req.Type,
		RoomName:            req.RoomName,
		ParticipantIdentity: req.ParticipantIdentity,
		ParticipantName:     req.ParticipantName,
	}
	switch req.Type {
	case domain.IngressWHIP:
		info.URL = fmt.Sprintf("%s/w/%s", i.baseURL, id)
	default:
		info.URL = i.baseURL + "/x"
		info.StreamKey = uuid.NewString()
	}
	return info, nil
}

// Created returns the requests seen so far.
func (i *Ingress) Created() []domain.IngressRequest {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]domain.IngressRequest(nil), i.created...)
}
