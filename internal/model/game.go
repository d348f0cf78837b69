package model

import "time"

// GameID uniquely identifies a catalog game
type GameID string

// GameSource records where a catalog entry came from
type GameSource string

const (
	GameSourceManual GameSource = "manual"
	GameSourceBGG    GameSource = "bgg" // imported from BoardGameGeek
)

// GameDetails is the descriptive metadata shared by catalog entries and
// group roster entries
type GameDetails struct {
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Thumbnail   string `json:"thumbnail,omitempty" bson:"thumbnail,omitempty"`
	Image       string `json:"image,omitempty" bson:"image,omitempty"`
	MinPlayers  int    `json:"min_players,omitempty" bson:"min_players,omitempty"`
	MaxPlayers  int    `json:"max_players,omitempty" bson:"max_players,omitempty"`
	PlayingTime int    `json:"playing_time,omitempty" bson:"playing_time,omitempty"` // minutes
}

// Game is an entry in the global game catalog. Identity is immutable once
// created.
type Game struct {
	ID          GameID `json:"id" bson:"_id"`
	GameDetails `bson:",inline"`
	Source      GameSource `json:"source" bson:"source"`
	ExternalID  string     `json:"external_id,omitempty" bson:"external_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at" bson:"created_at"`
}
