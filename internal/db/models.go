package db

import (
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User table
//
// Premium fields are written by billing events and lazily corrected by the
// premium resolver; nothing else should touch them.
type User struct {
	ID                   uint64     `gorm:"primaryKey;autoIncrement"`
	Username             string     `gorm:"uniqueIndex;size:64;not null"`
	Email                string     `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash         *string    `gorm:"size:255"`
	GoogleID             *string    `gorm:"uniqueIndex;size:128"`
	IsPremium            bool       `gorm:"not null;default:false;index:idx_users_premium_expiry,priority:1"`
	PremiumExpiresAt     *time.Time `gorm:"index:idx_users_premium_expiry,priority:2"`
	PremiumStartedAt     *time.Time
	PremiumPlanType      *string   `gorm:"size:16"`
	StripeCustomerID     *string   `gorm:"size:64"`
	StripeSubscriptionID *string   `gorm:"size:64"`
	NewLike              int64     `gorm:"not null;default:0"`
	MessageUnread        int64     `gorm:"not null;default:0"`
	CreatedAt            time.Time `gorm:"autoCreateTime"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime"`
}

var ErrCredentialRequired = errors.New("password is required unless an external identity is linked")

// BeforeCreate normalizes the email and enforces the credential invariant.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hasPassword := u.PasswordHash != nil && *u.PasswordHash != ""
	hasExternal := u.GoogleID != nil && *u.GoogleID != ""
	if !hasPassword && !hasExternal {
		return ErrCredentialRequired
	}
	return nil
}

// Media is a reference to an already-uploaded audio or video item.
type Media struct {
	Type string `json:"type" validate:"required,oneof=youtube mp3 soundcloud"`
	URL  string `json:"url" validate:"required,url"`
}

// QuotaRecipient is one distinct person contacted in the current message window.
type QuotaRecipient struct {
	RecipientID    uint64    `json:"recipientId"`
	FirstMessageAt time.Time `json:"firstMessageAt"`
}

// SwipeQuota counts likes and dislikes made on Date's calendar day.
type SwipeQuota struct {
	Count int `gorm:"not null;default:0"`
	Date  *time.Time
}

// MessageQuota tracks distinct new recipients since ResetAt.
type MessageQuota struct {
	Recipients datatypes.JSONSlice[QuotaRecipient]
	ResetAt    *time.Time
}

// Profile is one-to-one with a User.
//
// Latitude/Longitude are nil until the client shares a location; the geo
// index in Redis only ever contains profiles with both set.
type Profile struct {
	ID           uint64                      `gorm:"primaryKey;autoIncrement"`
	UserID       uint64                      `gorm:"uniqueIndex;not null"`
	User         User                        `gorm:"foreignKey:UserID"`
	Pseudo       string                      `gorm:"size:64;not null"`
	Photos       datatypes.JSONSlice[string] `gorm:"not null"`
	Description  string                      `gorm:"type:text"`
	Instruments  datatypes.JSONSlice[string]
	Styles       datatypes.JSONSlice[string]
	MaxDistance  int `gorm:"not null;default:50"`
	Media        datatypes.JSONSlice[Media]
	Latitude     *float64
	Longitude    *float64
	SwipeQuota   SwipeQuota   `gorm:"embedded;embeddedPrefix:swipe_"`
	MessageQuota MessageQuota `gorm:"embedded;embeddedPrefix:message_quota_"`
	CreatedAt    time.Time    `gorm:"autoCreateTime"`
	UpdatedAt    time.Time    `gorm:"autoUpdateTime"`
}

// Decision represents an actor's like/pass decision on a recipient.
// It is the authoritative swipe relation; a profile's liked users are the
// rows where ActorID is the owner and Liked is true.
//
// Composite PK: (ActorID, RecipientID)
//   - At most one swipe per ordered pair; a second swipe is a conflict.
//
// Indexes:
//   - idx_recipient_liked_updated_actor(recipient_id, liked, updated_at DESC, actor_id)
//     Optimizes queries for "who liked me" lists with pagination.
//   - idx_actor_recipient_liked(actor_id, recipient_id, liked)
//     Optimizes O(1) lookup for mutual like checks.
type Decision struct {
	ActorID     uint64    `gorm:"primaryKey;index:idx_actor_recipient_liked,priority:1"`
	RecipientID uint64    `gorm:"primaryKey;index:idx_recipient_liked_updated_actor,priority:1;index:idx_actor_recipient_liked,priority:2"`
	Liked       bool      `gorm:"not null;index:idx_recipient_liked_updated_actor,priority:2;index:idx_actor_recipient_liked,priority:3"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime;index:idx_recipient_liked_updated_actor,priority:3,sort:desc"`
}

// Match is a confirmed mutual like. PairKey is the conversation key of the
// two users, so the unique index on it enforces one match per unordered pair.
type Match struct {
	ID             string    `gorm:"primaryKey;size:36"`
	PairKey        string    `gorm:"uniqueIndex;size:64;not null"`
	UserLow        uint64    `gorm:"not null;index"`
	UserHigh       uint64    `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null"`
	LastActivityAt time.Time `gorm:"not null;index"`
}

// Users returns both participants.
func (m *Match) Users() [2]uint64 { return [2]uint64{m.UserLow, m.UserHigh} }

// Has reports whether userID takes part in the match.
func (m *Match) Has(userID uint64) bool { return m.UserLow == userID || m.UserHigh == userID }

// Other returns the participant that is not userID.
func (m *Match) Other(userID uint64) uint64 {
	if m.UserLow == userID {
		return m.UserHigh
	}
	return m.UserLow
}

// Message belongs to the conversation identified by ConversationKey.
// MatchID is a compatibility link to the match the message was sent under.
type Message struct {
	ID              uint64  `gorm:"primaryKey;autoIncrement"`
	ConversationKey string  `gorm:"size:64;not null;index:idx_messages_conversation_created,priority:1;index:idx_messages_conversation_receiver_read,priority:1"`
	MatchID         *string `gorm:"size:36;index"`
	SenderID        uint64  `gorm:"not null"`
	ReceiverID      uint64  `gorm:"not null;index:idx_messages_receiver_read,priority:1;index:idx_messages_conversation_receiver_read,priority:2"`
	Content         string  `gorm:"type:text;not null"`
	Read            bool    `gorm:"column:is_read;not null;default:false;index:idx_messages_receiver_read,priority:2;index:idx_messages_conversation_receiver_read,priority:3"`
	ReadAt          *time.Time
	CreatedAt       time.Time `gorm:"not null;index:idx_messages_conversation_created,priority:2"`
}

// All lists every model, in migration order.
func All() []any {
	return []any{&User{}, &Profile{}, &Decision{}, &Match{}, &Message{}}
}
