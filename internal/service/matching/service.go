// Package matching records swipes and turns reciprocal likes into matches.
package matching

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
	"github.com/oggyb/muzz-matchmaking/internal/service/premium"
	"github.com/oggyb/muzz-matchmaking/internal/service/quota"
	"github.com/oggyb/muzz-matchmaking/internal/service/view"
	"github.com/oggyb/muzz-matchmaking/internal/utils/pagination"
)

const likersPageSize = 20

// Service implements the like/match engine and the liked-you lists.
type Service struct {
	appCtx    *app.AppContext
	decisions *repository.DecisionRepository
	matches   *repository.MatchRepository
	profiles  *repository.ProfileRepository
	users     *repository.UserRepository
	premium   *premium.Resolver
	quota     *quota.Tracker
}

func NewService(appCtx *app.AppContext, resolver *premium.Resolver, tracker *quota.Tracker) *Service {
	return &Service{
		appCtx:    appCtx,
		decisions: repository.NewDecisionRepository(appCtx.DB),
		matches:   repository.NewMatchRepository(appCtx.DB),
		profiles:  repository.NewProfileRepository(appCtx.DB),
		users:     repository.NewUserRepository(appCtx.DB),
		premium:   resolver,
		quota:     tracker,
	}
}

// LikeResult tells whether the like completed a pair.
type LikeResult struct {
	IsMatch bool        `json:"isMatch"`
	Match   *view.Match `json:"match,omitempty"`
}

var errDuplicateSwipe = svcErr.Conflict("profile already swiped")

// Like records actorID liking targetID and creates the match when the like
// is reciprocated.
//
// Behavior:
//   - Self-likes and unknown targets are rejected before any write.
//   - The swipe, its quota use and the target's new-like counter commit
//     together; a rejected swipe writes nothing.
//   - Reciprocity runs after that commit. A failure there leaves the like in
//     place and is repaired the next time either side swipes the pair.
//   - At most one match exists per pair; concurrent likes converge on it.
func (s *Service) Like(ctx context.Context, actorID, targetID uint64) (*LikeResult, error) {
	s.appCtx.Log(ctx).Debug("Like called", "actor", actorID, "target", targetID)

	if err := s.swipe(ctx, actorID, targetID, true); err != nil {
		if errors.Is(err, errDuplicateSwipe) {
			s.repairMatch(ctx, actorID, targetID)
		}
		return nil, err
	}

	mutual, err := s.decisions.HasLiked(ctx, targetID, actorID)
	if err != nil {
		s.appCtx.Log(ctx).Error("reciprocity check failed", "actor", actorID, "target", targetID, "err", err)
		return nil, svcErr.Wrap(err)
	}
	if !mutual {
		return &LikeResult{}, nil
	}

	m, err := s.ensureMatch(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	mv := view.FromMatch(m)
	return &LikeResult{IsMatch: true, Match: &mv}, nil
}

// Dislike records a pass. It never creates a match.
func (s *Service) Dislike(ctx context.Context, actorID, targetID uint64) error {
	s.appCtx.Log(ctx).Debug("Dislike called", "actor", actorID, "target", targetID)
	return s.swipe(ctx, actorID, targetID, false)
}

func (s *Service) swipe(ctx context.Context, actorID, targetID uint64, liked bool) error {
	if targetID == 0 {
		return svcErr.Validation("targetUserId is required")
	}
	if actorID == targetID {
		return svcErr.Validation("cannot swipe on yourself")
	}
	if _, err := s.users.Get(ctx, targetID); err != nil {
		return notFoundOr(err, "target user not found")
	}

	_, isPremium, err := s.premium.ResolveByID(ctx, actorID)
	if err != nil {
		return err
	}

	now := s.appCtx.Now()
	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profiles := s.profiles.WithTx(tx)

		me, err := profiles.LockByUser(ctx, actorID)
		if err != nil {
			return notFoundOr(err, "profile not found, complete your profile first")
		}

		created, err := s.decisions.WithTx(tx).CreateDecision(ctx, actorID, targetID, liked)
		if err != nil {
			return svcErr.Wrap(err)
		}
		if !created {
			return errDuplicateSwipe
		}

		if !isPremium {
			if err := s.quota.ConsumeSwipe(&me.SwipeQuota, now); err != nil {
				return err
			}
			if err := profiles.SaveSwipeQuota(ctx, me); err != nil {
				return svcErr.Wrap(err)
			}
		}

		if liked {
			if err := s.users.WithTx(tx).IncrementNewLike(ctx, targetID); err != nil {
				return svcErr.Wrap(err)
			}
		}
		return nil
	})
	if err != nil {
		if svcErr.Is(err, svcErr.KindQuotaExceeded) {
			s.appCtx.Metrics.QuotaRejections.WithLabelValues(quota.ResourceSwipes).Inc()
			s.appCtx.Log(ctx).Info("swipe rejected by quota", "actor", actorID)
		} else if !svcErr.IsClientError(err) {
			s.appCtx.Log(ctx).Error("swipe failed", "actor", actorID, "target", targetID, "err", err)
		}
		return err
	}

	kind := "dislike"
	if liked {
		kind = "like"
	}
	s.appCtx.Metrics.Swipes.WithLabelValues(kind).Inc()
	s.invalidateCounts(ctx, actorID, targetID)
	return nil
}

func (s *Service) ensureMatch(ctx context.Context, a, b uint64) (*db.Match, error) {
	m, created, err := s.matches.CreateIfAbsent(ctx, a, b, s.appCtx.Now())
	if err != nil {
		s.appCtx.Log(ctx).Error("match creation failed", "a", a, "b", b, "err", err)
		return nil, svcErr.Wrap(err)
	}
	if created {
		s.appCtx.Metrics.MatchesCreated.Inc()
		s.appCtx.Log(ctx).Info("match created", "match", m.ID, "a", a, "b", b)
	}
	return m, nil
}

// repairMatch materializes a match that a failed reciprocity step left behind.
func (s *Service) repairMatch(ctx context.Context, actorID, targetID uint64) {
	liked, err := s.decisions.HasLiked(ctx, actorID, targetID)
	if err != nil || !liked {
		return
	}
	mutual, err := s.decisions.HasLiked(ctx, targetID, actorID)
	if err != nil || !mutual {
		return
	}
	if _, err := s.ensureMatch(ctx, actorID, targetID); err != nil {
		s.appCtx.Log(ctx).Warn("match repair failed", "actor", actorID, "target", targetID, "err", err)
	}
}

// Unmatch deletes matchID and retracts both likes, so the pair can meet again.
func (s *Service) Unmatch(ctx context.Context, actorID uint64, matchID string) error {
	s.appCtx.Log(ctx).Debug("Unmatch called", "actor", actorID, "match", matchID)

	m, err := s.getParticipatingMatch(ctx, actorID, matchID)
	if err != nil {
		return err
	}
	other := m.Other(actorID)

	err = s.appCtx.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.decisions.WithTx(tx).DeletePair(ctx, actorID, other); err != nil {
			return err
		}
		return s.matches.WithTx(tx).DeleteByPairKey(ctx, m.PairKey)
	})
	if err != nil {
		s.appCtx.Log(ctx).Error("unmatch failed", "match", matchID, "err", err)
		return svcErr.Wrap(err)
	}

	s.invalidateCounts(ctx, actorID, other)
	s.appCtx.Log(ctx).Info("unmatched", "match", matchID, "by", actorID)
	return nil
}

// ListLiked returns the profiles userID liked, most recent first.
func (s *Service) ListLiked(ctx context.Context, userID uint64) ([]view.Profile, error) {
	ids, err := s.decisions.LikedIDs(ctx, userID)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}
	byUser, err := s.profiles.ListByUsers(ctx, ids)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}
	out := make([]view.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := byUser[id]; ok {
			out = append(out, view.FromProfile(&p))
		}
	}
	return out, nil
}

// GetMatches lists userID's matches, most recently active first, each with
// the other participant's profile.
func (s *Service) GetMatches(ctx context.Context, userID uint64) ([]view.Match, error) {
	matches, err := s.matches.ListForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}

	others := make([]uint64, 0, len(matches))
	for i := range matches {
		others = append(others, matches[i].Other(userID))
	}
	byUser, err := s.profiles.ListByUsers(ctx, others)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}

	out := make([]view.Match, 0, len(matches))
	for i := range matches {
		mv := view.FromMatch(&matches[i])
		if p, ok := byUser[matches[i].Other(userID)]; ok {
			pv := view.FromProfile(&p)
			mv.Other = &pv
		}
		out = append(out, mv)
	}
	return out, nil
}

// GetMatch returns one match the caller takes part in.
func (s *Service) GetMatch(ctx context.Context, userID uint64, matchID string) (*view.Match, error) {
	m, err := s.getParticipatingMatch(ctx, userID, matchID)
	if err != nil {
		return nil, err
	}
	mv := view.FromMatch(m)
	if p, err := s.profiles.GetByUser(ctx, m.Other(userID)); err == nil {
		pv := view.FromProfile(p)
		mv.Other = &pv
	}
	return &mv, nil
}

func (s *Service) getParticipatingMatch(ctx context.Context, userID uint64, matchID string) (*db.Match, error) {
	if matchID == "" {
		return nil, svcErr.Validation("matchId is required")
	}
	m, err := s.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, notFoundOr(err, "match not found")
	}
	if !m.Has(userID) {
		return nil, svcErr.Forbidden("not a participant of this match")
	}
	return m, nil
}

// Liker is one entry of a liked-you page.
type Liker struct {
	ActorID uint64    `json:"actorId"`
	LikedAt time.Time `json:"likedAt"`
}

type LikersPage struct {
	Likers    []Liker `json:"likers"`
	NextToken *string `json:"nextToken,omitempty"`
}

// ListLikedYou returns users who liked userID, excluding those userID passed.
// Cursor paginated, newest first.
func (s *Service) ListLikedYou(ctx context.Context, userID uint64, token *string) (*LikersPage, error) {
	s.appCtx.Log(ctx).Debug("ListLikedYou called", "recipient", userID)
	decisions, next, err := s.decisions.GetLikers(ctx, userID, token, likersPageSize)
	return likersPage(decisions, next, err)
}

// ListNewLikedYou is ListLikedYou without the users already liked back.
func (s *Service) ListNewLikedYou(ctx context.Context, userID uint64, token *string) (*LikersPage, error) {
	s.appCtx.Log(ctx).Debug("ListNewLikedYou called", "recipient", userID)
	decisions, next, err := s.decisions.GetNewLikers(ctx, userID, token, likersPageSize)
	return likersPage(decisions, next, err)
}

func likersPage(decisions []db.Decision, next *string, err error) (*LikersPage, error) {
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidToken) {
			return nil, svcErr.Validation(err.Error())
		}
		return nil, svcErr.Wrap(err)
	}
	page := &LikersPage{Likers: make([]Liker, 0, len(decisions)), NextToken: next}
	for _, d := range decisions {
		page.Likers = append(page.Likers, Liker{ActorID: d.ActorID, LikedAt: d.UpdatedAt})
	}
	return page, nil
}

// CountLikedYou returns how many users liked userID.
// Cache-first strategy:
//  1. Attempts to read from Redis (likes:count:userID).
//  2. If cache miss or parse error, falls back to DB via repository.CountLikers.
//  3. On DB fetch, updates Redis with a 1h TTL.
func (s *Service) CountLikedYou(ctx context.Context, userID uint64) (int64, error) {
	rc := s.appCtx.RedisCache

	if n, ok, err := rc.GetLikeCount(ctx, userID); err == nil && ok {
		return n, nil
	} else if err != nil {
		s.appCtx.Log(ctx).Warn("like count cache read failed", "user", userID, "err", err)
	}

	count, err := s.decisions.CountLikers(ctx, userID)
	if err != nil {
		return 0, svcErr.Wrap(err)
	}
	_ = rc.SetLikeCount(ctx, userID, count)
	return count, nil
}

func (s *Service) invalidateCounts(ctx context.Context, ids ...uint64) {
	if err := s.appCtx.RedisCache.InvalidateLikeCount(ctx, ids...); err != nil {
		s.appCtx.Log(ctx).Warn("like count invalidation failed", "users", ids, "err", err)
	}
}

func notFoundOr(err error, msg string) error {
	err = svcErr.Wrap(err)
	if svcErr.Is(err, svcErr.KindNotFound) {
		return svcErr.NotFound(msg)
	}
	return err
}
