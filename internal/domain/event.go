package domain

// StageEvent reports a participant's stage state after a transition.
type StageEvent struct {
	Type       string     `json:"type"`
	Room       RoomName   `json:"room"`
	Identity   Identity   `json:"identity"`
	Actor      Identity   `json:"actor"`
	State      StageState `json:"state"`
	CanPublish bool       `json:"can_publish"`
}

const (
	EventHandRaised    = "hand_raised"
	EventInvited       = "invited_to_stage"
	EventRemoved       = "removed_from_stage"
	EventStreamStopped = "stream_stopped"
)
