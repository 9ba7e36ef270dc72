package grpcapi

import (
	"github.com/oggyb/muzz-matchmaking/internal/db"
	"github.com/oggyb/muzz-matchmaking/internal/service/matching"
	"github.com/oggyb/muzz-matchmaking/internal/service/messaging"
	"github.com/oggyb/muzz-matchmaking/internal/service/notification"
	"github.com/oggyb/muzz-matchmaking/internal/service/profile"
	"github.com/oggyb/muzz-matchmaking/internal/service/quota"
	"github.com/oggyb/muzz-matchmaking/internal/service/view"
)

// Request and response bodies. The caller is always taken from metadata,
// never from the body.

type Empty struct{}

type TargetRequest struct {
	TargetUserID uint64 `json:"targetUserId"`
}

type MatchRequest struct {
	MatchID string `json:"matchId"`
}

type PageRequest struct {
	PaginationToken *string `json:"paginationToken,omitempty"`
}

type ConversationRequest struct {
	ConversationID string `json:"conversationId"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

type UserRequest struct {
	UserID uint64 `json:"userId"`
}

type PhotoRequest struct {
	URL string `json:"url"`
}

type MediaRequest struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type UpdateProfileRequest = profile.UpdateInput

type ProfilesResponse struct {
	Profiles []view.Profile `json:"profiles"`
}

type ProfileResponse struct {
	Profile *view.Profile `json:"profile"`
}

type SwipeableResponse struct {
	Swipes quota.Usage `json:"swipes"`
}

type LikeResponse = matching.LikeResult

type SuccessResponse struct {
	Success bool `json:"success"`
}

type MatchesResponse struct {
	Matches []view.Match `json:"matches"`
}

type MatchResponse struct {
	Match *view.Match `json:"match"`
}

type LikersResponse = matching.LikersPage

type CountResponse struct {
	Count int64 `json:"count"`
}

type MessagesResponse struct {
	Messages []view.Message `json:"messages"`
}

type MessageResponse struct {
	Message *view.Message `json:"message"`
}

type ReadResponse = messaging.ReadResult

type ConversationsResponse struct {
	Conversations []messaging.Conversation `json:"conversations"`
}

type QuotaStatusResponse = quota.Status

type EntitlementResponse struct {
	IsPremium bool `json:"isPremium"`
}

type NotificationsResponse = notification.Counters

func (r *MediaRequest) media() db.Media { return db.Media{Type: r.Type, URL: r.URL} }
