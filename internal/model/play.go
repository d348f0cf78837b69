package model

import "time"

// PlayID uniquely identifies a recorded play
type PlayID string

// PlayerResult is one participant's outcome in a play. Placement 1 is the
// winner; 0 means unranked.
type PlayerResult struct {
	Username  string `json:"username" bson:"username"`
	Score     int    `json:"score" bson:"score"`
	Placement int    `json:"placement" bson:"placement"`
}

// Play records one session of a group playing a game from its roster
type Play struct {
	ID         PlayID         `json:"id" bson:"_id"`
	GroupID    GroupID        `json:"group_id" bson:"group_id"`
	Game       string         `json:"game" bson:"game"` // roster game name
	Players    []PlayerResult `json:"players" bson:"players"`
	RecordedBy string         `json:"recorded_by" bson:"recorded_by"`
	PlayedAt   time.Time      `json:"played_at" bson:"played_at"`
}

// HasPlayer reports whether username took part in the play
func (p *Play) HasPlayer(username string) bool {
	for _, pr := range p.Players {
		if pr.Username == username {
			return true
		}
	}
	return false
}

// MemberGameStats aggregates one member's results for one game
type MemberGameStats struct {
	Username string `json:"username"`
	Game     string `json:"game"`
	Plays    int    `json:"plays"`
	Wins     int    `json:"wins"`
}
