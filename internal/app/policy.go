package app

import (
	"fmt"

	"github.com/dkeye/livestage/internal/core"
	"github.com/dkeye/livestage/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a subscriber whose send buffer is full.
type Policy interface {
	OnBackPressure(room domain.RoomName, sid core.SessionID) BackpressureAction
}

// SimplePolicy disconnects slow subscribers; they resync with GET /api/room.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(domain.RoomName, core.SessionID) BackpressureAction {
	return KickMember
}

// DropPolicy skips the event and keeps the subscriber.
type DropPolicy struct{}

func (DropPolicy) OnBackPressure(domain.RoomName, core.SessionID) BackpressureAction {
	return DropFrame
}

// PolicyByName maps the events.backpressure setting to a Policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "kick":
		return SimplePolicy{}, nil
	case "drop":
		return DropPolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown backpressure policy %q", name)
	}
}
