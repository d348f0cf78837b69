package model

import (
	"slices"
	"strings"
	"time"
)

// GroupID uniquely identifies a group
type GroupID string

// GroupMember is one entry of a group's roster. UserID is the group-side
// half of the membership back-reference pair.
type GroupMember struct {
	UserID   UserID    `json:"user_id" bson:"user_id"`
	Username string    `json:"username" bson:"username"`
	JoinedAt time.Time `json:"joined_at" bson:"joined_at"`
}

// GroupGame is a game embedded in a group's roster. Names are unique within
// a roster, compared case-insensitively.
type GroupGame struct {
	GameDetails `bson:",inline"`
	AddedBy     string    `json:"added_by" bson:"added_by"`
	AddedAt     time.Time `json:"added_at" bson:"added_at"`
}

// Group is a named set of users sharing a game roster and a play history
type Group struct {
	ID          GroupID       `json:"id" bson:"_id"`
	Identifier  string        `json:"identifier" bson:"identifier"` // normalised, unique
	DisplayName string        `json:"display_name" bson:"display_name"`
	Description string        `json:"description" bson:"description"`
	Owners      []string      `json:"owners" bson:"owners"` // usernames, always a subset of Members
	Members     []GroupMember `json:"members" bson:"members"`
	Games       []GroupGame   `json:"games" bson:"games"`
	Version     int64         `json:"version" bson:"version"`
	CreatedAt   time.Time     `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at" bson:"updated_at"`
}

// GetMember returns the member with the given username, or nil if not found
func (g *Group) GetMember(username string) *GroupMember {
	for i := range g.Members {
		if g.Members[i].Username == username {
			return &g.Members[i]
		}
	}
	return nil
}

// GetMemberByID returns the member with the given user ID, or nil if not found
func (g *Group) GetMemberByID(id UserID) *GroupMember {
	for i := range g.Members {
		if g.Members[i].UserID == id {
			return &g.Members[i]
		}
	}
	return nil
}

// IsMember reports whether username is on the roster
func (g *Group) IsMember(username string) bool {
	return g.GetMember(username) != nil
}

// IsOwner reports whether username is an owner
func (g *Group) IsOwner(username string) bool {
	return slices.Contains(g.Owners, username)
}

// AddMember appends a member. Returns false if already present.
func (g *Group) AddMember(m GroupMember) bool {
	if g.GetMemberByID(m.UserID) != nil {
		return false
	}
	g.Members = append(g.Members, m)
	return true
}

// RemoveMember drops a member and any ownership they held. Returns false if
// the user was not a member.
func (g *Group) RemoveMember(id UserID) bool {
	idx := slices.IndexFunc(g.Members, func(m GroupMember) bool { return m.UserID == id })
	if idx < 0 {
		return false
	}
	username := g.Members[idx].Username
	g.Members = slices.Delete(g.Members, idx, idx+1)
	g.SetOwner(username, false)
	return true
}

// SetOwner grants or revokes ownership. Returns false if nothing changed.
func (g *Group) SetOwner(username string, owner bool) bool {
	idx := slices.Index(g.Owners, username)
	switch {
	case owner && idx < 0:
		g.Owners = append(g.Owners, username)
		return true
	case !owner && idx >= 0:
		g.Owners = slices.Delete(g.Owners, idx, idx+1)
		return true
	}
	return false
}

// GetGame returns the roster entry matching name, or nil
func (g *Group) GetGame(name string) *GroupGame {
	for i := range g.Games {
		if strings.EqualFold(g.Games[i].Name, name) {
			return &g.Games[i]
		}
	}
	return nil
}

// HasGame reports whether the roster contains a game with this name
func (g *Group) HasGame(name string) bool {
	return g.GetGame(name) != nil
}

// RemoveGame drops a roster entry. Returns false if no game had that name.
func (g *Group) RemoveGame(name string) bool {
	idx := slices.IndexFunc(g.Games, func(gg GroupGame) bool { return strings.EqualFold(gg.Name, name) })
	if idx < 0 {
		return false
	}
	g.Games = slices.Delete(g.Games, idx, idx+1)
	return true
}

// OldestMember returns the longest-standing member, or nil for an empty roster
func (g *Group) OldestMember() *GroupMember {
	if len(g.Members) == 0 {
		return nil
	}
	oldest := &g.Members[0]
	for i := range g.Members[1:] {
		if g.Members[i+1].JoinedAt.Before(oldest.JoinedAt) {
			oldest = &g.Members[i+1]
		}
	}
	return oldest
}

// GroupUpdate carries the optional fields of a group update
type GroupUpdate struct {
	Identifier  *string
	DisplayName *string
	Description *string
}
