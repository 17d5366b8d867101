package models

import "github.com/google/uuid"

// UnknownName is the display name substituted when a user has no stored profile.
const UnknownName = "Unknown"

// Profile is the locally-owned display data for a player. Ranking data lives
// in the score backend; this record only maps an id to a name and avatar.
type Profile struct {
	UserID uuid.UUID `json:"userId"`
	Name   string    `json:"name"`
	Avatar string    `json:"avatar,omitempty"`
}

// PublicProfile is the externally visible subset of a profile.
type PublicProfile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// BoardEntry pairs a ranked score with the resolved profile. Entries keep the
// order the score backend returned them in.
type BoardEntry struct {
	User  Profile `json:"user"`
	Score int64   `json:"score"`
}

// PlaceholderProfile returns the synthetic profile used for users that have a
// score but never set a profile.
func PlaceholderProfile(userID uuid.UUID) Profile {
	return Profile{UserID: userID, Name: UnknownName}
}
