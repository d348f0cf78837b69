package model

import "time"

// EventType identifies the type of event
type EventType string

const (
	EventMemberAdded   EventType = "member_added"
	EventMemberRemoved EventType = "member_removed"
	EventOwnerChanged  EventType = "owner_changed"
	EventGameAdded     EventType = "game_added"
	EventGameRemoved   EventType = "game_removed"
	EventGroupUpdated  EventType = "group_updated"
	EventGroupDeleted  EventType = "group_deleted"
	EventPlayRecorded  EventType = "play_recorded"
	EventPlayDeleted   EventType = "play_deleted"
)

// Event describes a change to a group. Subscribers receive it as JSON.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	GroupID   GroupID   `json:"group_id"`
	Actor     string    `json:"actor"` // username that triggered the change
	Payload   any       `json:"payload,omitempty"`
}

// MemberPayload contains data for member events
type MemberPayload struct {
	Username string `json:"username"`
	UserID   UserID `json:"user_id,omitempty"`
}

// OwnerChangedPayload contains data for owner changed events
type OwnerChangedPayload struct {
	Username string `json:"username"`
	Owner    bool   `json:"owner"`
}

// GamePayload contains data for roster events
type GamePayload struct {
	Name string `json:"name"`
}

// PlayPayload contains data for play events
type PlayPayload struct {
	PlayID PlayID `json:"play_id"`
	Game   string `json:"game"`
}
