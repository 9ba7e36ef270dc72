// Package messaging implements conversations keyed by the participants' ids.
package messaging

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	"github.com/oggyb/muzz-matchmaking/internal/conversation"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
	"github.com/oggyb/muzz-matchmaking/internal/service/premium"
	"github.com/oggyb/muzz-matchmaking/internal/service/quota"
	"github.com/oggyb/muzz-matchmaking/internal/service/view"
)

// MaxContentLength bounds a single message, in characters.
const MaxContentLength = 2000

type Service struct {
	appCtx   *app.AppContext
	messages *repository.MessageRepository
	matches  *repository.MatchRepository
	profiles *repository.ProfileRepository
	users    *repository.UserRepository
	premium  *premium.Resolver
	quota    *quota.Tracker
}

func NewService(appCtx *app.AppContext, resolver *premium.Resolver, tracker *quota.Tracker) *Service {
	return &Service{
		appCtx:   appCtx,
		messages: repository.NewMessageRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		profiles: repository.NewProfileRepository(appCtx.DB),
		users:    repository.NewUserRepository(appCtx.DB),
		premium:  resolver,
		quota:    tracker,
	}
}

// GetMessages returns the whole conversation, oldest first.
func (s *Service) GetMessages(ctx context.Context, requesterID uint64, key string) ([]view.Message, error) {
	if _, err := conversation.Counterpart(key, requesterID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.ListByConversation(ctx, key)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}
	out := make([]view.Message, 0, len(msgs))
	for i := range msgs {
		out = append(out, view.FromMessage(&msgs[i]))
	}
	return out, nil
}

// SendMessage posts content to the conversation identified by key.
//
// Behavior:
//   - The requester must be one half of key; the other half must exist.
//   - The pair must currently be matched; an unmatched pair has no thread.
//   - Non-premium senders spend message quota on first contact with a
//     recipient in the current window only.
//   - Quota, message, match activity and the receiver's unread counter are
//     written in one transaction.
func (s *Service) SendMessage(ctx context.Context, requesterID uint64, key, content string) (*view.Message, error) {
	s.appCtx.Log(ctx).Debug("SendMessage called", "sender", requesterID, "conversation", key)

	receiverID, err := conversation.Counterpart(key, requesterID)
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, svcErr.Validation("message content is required")
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return nil, svcErr.Validation("message content is too long")
	}

	if _, err := s.users.Get(ctx, receiverID); err != nil {
		return nil, notFoundOr(err, "recipient not found")
	}

	_, isPremium, err := s.premium.ResolveByID(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	now := s.appCtx.Now()
	msg := &db.Message{
		ConversationKey: key,
		SenderID:        requesterID,
		ReceiverID:      receiverID,
		Content:         content,
		CreatedAt:       now,
	}

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := s.matches.WithTx(tx)
		m, err := matches.FindByPairKey(ctx, key)
		if err != nil {
			return svcErr.Wrap(err)
		}
		if m == nil {
			return svcErr.NotFound("no match with this user")
		}
		msg.MatchID = &m.ID

		if !isPremium {
			profiles := s.profiles.WithTx(tx)
			me, err := profiles.LockByUser(ctx, requesterID)
			if err != nil {
				return notFoundOr(err, "profile not found, complete your profile first")
			}
			if _, err := s.quota.ConsumeMessage(&me.MessageQuota, receiverID, now); err != nil {
				return err
			}
			if err := profiles.SaveMessageQuota(ctx, me); err != nil {
				return svcErr.Wrap(err)
			}
		}

		if err := s.messages.WithTx(tx).Create(ctx, msg); err != nil {
			return svcErr.Wrap(err)
		}
		if err := matches.Touch(ctx, key, now); err != nil {
			return svcErr.Wrap(err)
		}
		return svcErr.Wrap(s.users.WithTx(tx).IncrementUnread(ctx, receiverID))
	})
	if err != nil {
		if svcErr.Is(err, svcErr.KindQuotaExceeded) {
			s.appCtx.Metrics.QuotaRejections.WithLabelValues(quota.ResourceMessages).Inc()
			s.appCtx.Log(ctx).Info("message rejected by quota", "sender", requesterID, "receiver", receiverID)
		} else if !svcErr.IsClientError(err) {
			s.appCtx.Log(ctx).Error("send message failed", "sender", requesterID, "err", err)
		}
		return nil, err
	}

	s.appCtx.Metrics.MessagesSent.Inc()
	v := view.FromMessage(msg)
	return &v, nil
}

// ReadResult reports what MarkAsRead changed.
type ReadResult struct {
	Marked int64 `json:"marked"`
	Unread int64 `json:"unread"`
}

// MarkAsRead flags every message addressed to the requester in key as read,
// then recounts the requester's global unread counter from the messages.
func (s *Service) MarkAsRead(ctx context.Context, requesterID uint64, key string) (*ReadResult, error) {
	if _, err := conversation.Counterpart(key, requesterID); err != nil {
		return nil, err
	}

	var res ReadResult
	err := s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgs := s.messages.WithTx(tx)

		marked, err := msgs.MarkRead(ctx, key, requesterID, s.appCtx.Now())
		if err != nil {
			return err
		}
		unread, err := msgs.CountUnread(ctx, requesterID)
		if err != nil {
			return err
		}
		res = ReadResult{Marked: marked, Unread: unread}
		return s.users.WithTx(tx).SetUnread(ctx, requesterID, unread)
	})
	if err != nil {
		s.appCtx.Log(ctx).Error("mark as read failed", "user", requesterID, "conversation", key, "err", err)
		return nil, svcErr.Wrap(err)
	}
	return &res, nil
}

// Conversation summarizes one thread for the inbox.
type Conversation struct {
	ConversationKey string        `json:"conversationKey"`
	MatchID         string        `json:"matchId"`
	Other           *view.Profile `json:"other,omitempty"`
	LastMessage     *view.Message `json:"lastMessage,omitempty"`
	Unread          int64         `json:"unread"`
	LastActivityAt  time.Time     `json:"lastActivityAt"`
}

// ListConversations returns one summary per match, most recently active first.
func (s *Service) ListConversations(ctx context.Context, requesterID uint64) ([]Conversation, error) {
	matches, err := s.matches.ListForUser(ctx, requesterID)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}
	if len(matches) == 0 {
		return []Conversation{}, nil
	}

	latest, err := s.messages.Latest(ctx, requesterID)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}
	lastByKey := make(map[string]db.Message, len(latest))
	for _, m := range latest {
		lastByKey[m.ConversationKey] = m
	}

	unread, err := s.messages.UnreadByConversation(ctx, requesterID)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}

	others := make([]uint64, 0, len(matches))
	for i := range matches {
		others = append(others, matches[i].Other(requesterID))
	}
	profiles, err := s.profiles.ListByUsers(ctx, others)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}

	out := make([]Conversation, 0, len(matches))
	for i := range matches {
		m := &matches[i]
		key := conversation.Key(m.UserLow, m.UserHigh)
		c := Conversation{
			ConversationKey: key,
			MatchID:         m.ID,
			Unread:          unread[key],
			LastActivityAt:  m.LastActivityAt,
		}
		if p, ok := profiles[m.Other(requesterID)]; ok {
			pv := view.FromProfile(&p)
			c.Other = &pv
		}
		if last, ok := lastByKey[key]; ok {
			lv := view.FromMessage(&last)
			c.LastMessage = &lv
		}
		out = append(out, c)
	}
	return out, nil
}

func notFoundOr(err error, msg string) error {
	err = svcErr.Wrap(err)
	if svcErr.Is(err, svcErr.KindNotFound) {
		return svcErr.NotFound(msg)
	}
	return err
}
