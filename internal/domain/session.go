package domain

// Session is the verified caller of a stage-control action.
type Session struct {
	Identity Identity `json:"identity"`
	RoomName RoomName `json:"room_name"`
}
