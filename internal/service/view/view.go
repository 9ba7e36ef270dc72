// Package view holds the client-facing shapes returned by the services.
package view

import (
	"time"

	"github.com/oggyb/muzz-matchmaking/internal/db"
)

// Account is the compact identity attached to a profile. Email is only
// filled for the owner's own profile.
type Account struct {
	ID       uint64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Profile struct {
	UserID      uint64     `json:"userId"`
	Pseudo      string     `json:"pseudo"`
	Photos      []string   `json:"photos"`
	Description string     `json:"description,omitempty"`
	Instruments []string   `json:"instruments,omitempty"`
	Styles      []string   `json:"styles,omitempty"`
	MaxDistance int        `json:"maxDistance"`
	Media       []db.Media `json:"media,omitempty"`
	Location    *Location  `json:"location,omitempty"`
	DistanceKm  *float64   `json:"distanceKm,omitempty"`
	Account     Account    `json:"account"`
}

// FromProfile builds the public view of p. The account is taken from the
// preloaded User when present.
func FromProfile(p *db.Profile) Profile {
	v := Profile{
		UserID:      p.UserID,
		Pseudo:      p.Pseudo,
		Photos:      nonNil(p.Photos),
		Description: p.Description,
		Instruments: p.Instruments,
		Styles:      p.Styles,
		MaxDistance: p.MaxDistance,
		Media:       p.Media,
		Account:     Account{ID: p.UserID, Username: p.User.Username},
	}
	if p.Latitude != nil && p.Longitude != nil {
		v.Location = &Location{Latitude: *p.Latitude, Longitude: *p.Longitude}
	}
	return v
}

// Own is FromProfile plus the owner's email.
func Own(p *db.Profile) Profile {
	v := FromProfile(p)
	v.Account.Email = p.User.Email
	return v
}

type Match struct {
	ID              string    `json:"id"`
	Users           [2]uint64 `json:"users"`
	ConversationKey string    `json:"conversationKey"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActivityAt  time.Time `json:"lastActivityAt"`
	Other           *Profile  `json:"other,omitempty"`
}

func FromMatch(m *db.Match) Match {
	return Match{
		ID:              m.ID,
		Users:           m.Users(),
		ConversationKey: m.PairKey,
		CreatedAt:       m.CreatedAt,
		LastActivityAt:  m.LastActivityAt,
	}
}

type Message struct {
	ID              uint64     `json:"id"`
	ConversationKey string     `json:"conversationKey"`
	SenderID        uint64     `json:"senderId"`
	ReceiverID      uint64     `json:"receiverId"`
	Content         string     `json:"content"`
	Read            bool       `json:"read"`
	ReadAt          *time.Time `json:"readAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func FromMessage(m *db.Message) Message {
	return Message{
		ID:              m.ID,
		ConversationKey: m.ConversationKey,
		SenderID:        m.SenderID,
		ReceiverID:      m.ReceiverID,
		Content:         m.Content,
		Read:            m.Read,
		ReadAt:          m.ReadAt,
		CreatedAt:       m.CreatedAt,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
