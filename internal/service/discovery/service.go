// Package discovery selects the profiles offered for swiping.
package discovery

import (
	"context"
	"math"
	"slices"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
	"github.com/oggyb/muzz-matchmaking/internal/service/premium"
	"github.com/oggyb/muzz-matchmaking/internal/service/quota"
	"github.com/oggyb/muzz-matchmaking/internal/service/view"
)

const (
	defaultMaxDistanceKm = 50
	rebuildBatch         = 500
)

type Service struct {
	appCtx    *app.AppContext
	profiles  *repository.ProfileRepository
	decisions *repository.DecisionRepository
	premium   *premium.Resolver
	quota     *quota.Tracker
}

func NewService(appCtx *app.AppContext, resolver *premium.Resolver, tracker *quota.Tracker) *Service {
	return &Service{
		appCtx:    appCtx,
		profiles:  repository.NewProfileRepository(appCtx.DB),
		decisions: repository.NewDecisionRepository(appCtx.DB),
		premium:   resolver,
		quota:     tracker,
	}
}

// HasLocation reports whether p carries a usable point.
func HasLocation(p *db.Profile) bool {
	if p.Latitude == nil || p.Longitude == nil {
		return false
	}
	lat, lng := *p.Latitude, *p.Longitude
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lng) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// SelectCandidates returns the profiles userID may swipe on next.
//
// Behavior:
//   - Excludes the caller and everyone the caller already liked or passed.
//   - With a usable location: nearest first within the caller's max distance,
//     capped at the nearby limit, distance attached in km.
//   - Without one: up to the fallback limit in insertion order, no distance.
func (s *Service) SelectCandidates(ctx context.Context, userID uint64) ([]view.Profile, error) {
	log := s.appCtx.Log(ctx)
	log.Debug("SelectCandidates called", "user", userID)

	me, err := s.profiles.GetByUser(ctx, userID)
	if err != nil {
		return nil, notFoundOr(err, "profile not found, complete your profile first")
	}

	swiped, err := s.decisions.SwipedIDs(ctx, userID)
	if err != nil {
		log.Error("SwipedIDs failed", "user", userID, "err", err)
		return nil, svcErr.Wrap(err)
	}
	excluded := append(swiped, userID)

	if HasLocation(me) {
		out, err := s.nearby(ctx, me, excluded)
		if err == nil {
			return out, nil
		}
		// the geo index is a cache; degrade to the unranked list
		log.Warn("geo search failed, using fallback", "user", userID, "err", err)
	}

	profiles, err := s.profiles.ListExcluding(ctx, excluded, s.appCtx.Config.Discovery.FallbackLimit)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}
	out := make([]view.Profile, 0, len(profiles))
	for i := range profiles {
		out = append(out, view.FromProfile(&profiles[i]))
	}
	return out, nil
}

func (s *Service) nearby(ctx context.Context, me *db.Profile, excluded []uint64) ([]view.Profile, error) {
	limit := s.appCtx.Config.Discovery.NearbyLimit
	radius := me.MaxDistance
	if radius <= 0 {
		radius = defaultMaxDistanceKm
	}

	// over-fetch by the excluded count so filtering cannot starve the page
	hits, err := s.appCtx.RedisCache.Nearby(ctx, *me.Longitude, *me.Latitude, float64(radius), limit+len(excluded))
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(hits))
	dist := make(map[uint64]float64, len(hits))
	for _, h := range hits {
		if slices.Contains(excluded, h.UserID) {
			continue
		}
		ids = append(ids, h.UserID)
		dist[h.UserID] = h.DistanceKm
		if len(ids) == limit {
			break
		}
	}

	byUser, err := s.profiles.ListByUsers(ctx, ids)
	if err != nil {
		return nil, svcErr.Wrap(err)
	}

	out := make([]view.Profile, 0, len(ids))
	for _, id := range ids {
		p, ok := byUser[id]
		if !ok {
			continue // stale index entry
		}
		v := view.FromProfile(&p)
		d := dist[id]
		v.DistanceKm = &d
		out = append(out, v)
	}
	return out, nil
}

// CheckSwipeable tells whether userID may swipe right now and returns the
// swipes usage. A non-premium caller with no swipe left gets a quota error.
func (s *Service) CheckSwipeable(ctx context.Context, userID uint64) (quota.Usage, error) {
	_, isPremium, err := s.premium.ResolveByID(ctx, userID)
	if err != nil {
		return quota.Usage{}, err
	}

	me, err := s.profiles.GetByUser(ctx, userID)
	if err != nil {
		return quota.Usage{}, notFoundOr(err, "profile not found")
	}

	now := s.appCtx.Now()
	if !isPremium {
		if err := s.quota.CheckSwipe(me.SwipeQuota, now); err != nil {
			return quota.Usage{}, err
		}
	}
	return s.quota.SwipeUsage(isPremium, me.SwipeQuota, now), nil
}

// IndexProfile brings the geo index in line with p's location.
func (s *Service) IndexProfile(ctx context.Context, p *db.Profile) error {
	if !HasLocation(p) {
		return s.appCtx.RedisCache.RemoveLocation(ctx, p.UserID)
	}
	return s.appCtx.RedisCache.IndexLocation(ctx, p.UserID, *p.Longitude, *p.Latitude)
}

// RebuildIndex re-adds every located profile to the geo index.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	var (
		after   uint64
		indexed int
	)
	for {
		batch, err := s.profiles.ListLocated(ctx, after, rebuildBatch)
		if err != nil {
			return indexed, svcErr.Wrap(err)
		}
		for i := range batch {
			p := &batch[i]
			after = p.ID
			if !HasLocation(p) {
				continue
			}
			if err := s.appCtx.RedisCache.IndexLocation(ctx, p.UserID, *p.Longitude, *p.Latitude); err != nil {
				s.appCtx.Log(ctx).Warn("index location failed", "user", p.UserID, "err", err)
				continue
			}
			indexed++
		}
		if len(batch) < rebuildBatch {
			s.appCtx.Log(ctx).Info("geo index rebuilt", "profiles", indexed)
			return indexed, nil
		}
	}
}

func notFoundOr(err error, msg string) error {
	err = svcErr.Wrap(err)
	if svcErr.Is(err, svcErr.KindNotFound) {
		return svcErr.NotFound(msg)
	}
	return err
}
