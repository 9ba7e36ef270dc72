// Package profile edits the caller's own profile: fields, location, photos
// and media. Free-tier caps on photos and songs are enforced here.
package profile

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
	"github.com/oggyb/muzz-matchmaking/internal/service/discovery"
	"github.com/oggyb/muzz-matchmaking/internal/service/premium"
	"github.com/oggyb/muzz-matchmaking/internal/service/quota"
	"github.com/oggyb/muzz-matchmaking/internal/service/view"
)

// UpdateInput carries the fields to change; nil fields are left alone.
// Latitude and Longitude travel together. ClearLocation drops the point.
type UpdateInput struct {
	Pseudo        *string  `json:"pseudo" validate:"omitnil,min=1,max=64"`
	Description   *string  `json:"description" validate:"omitnil,max=2000"`
	Instruments   []string `json:"instruments" validate:"omitempty,max=20,dive,min=1,max=64"`
	Styles        []string `json:"styles" validate:"omitempty,max=20,dive,min=1,max=64"`
	MaxDistance   *int     `json:"maxDistance" validate:"omitnil,min=1,max=1000"`
	Latitude      *float64 `json:"latitude" validate:"omitnil,gte=-90,lte=90"`
	Longitude     *float64 `json:"longitude" validate:"omitnil,gte=-180,lte=180"`
	ClearLocation bool     `json:"clearLocation"`
}

type Service struct {
	appCtx    *app.AppContext
	profiles  *repository.ProfileRepository
	premium   *premium.Resolver
	quota     *quota.Tracker
	discovery *discovery.Service
	validate  *validator.Validate
}

func NewService(appCtx *app.AppContext, resolver *premium.Resolver, tracker *quota.Tracker, disc *discovery.Service) *Service {
	return &Service{
		appCtx:    appCtx,
		profiles:  repository.NewProfileRepository(appCtx.DB),
		premium:   resolver,
		quota:     tracker,
		discovery: disc,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Get returns the caller's own profile, email included.
func (s *Service) Get(ctx context.Context, userID uint64) (*view.Profile, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := view.Own(p)
	return &v, nil
}

// GetByUser returns another user's public profile.
func (s *Service) GetByUser(ctx context.Context, userID uint64) (*view.Profile, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	v := view.FromProfile(p)
	return &v, nil
}

// Update applies in and re-indexes the location when it changed.
func (s *Service) Update(ctx context.Context, userID uint64, in UpdateInput) (*view.Profile, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, svcErr.Validation("latitude and longitude must be set together")
	}
	if in.ClearLocation && in.Latitude != nil {
		return nil, svcErr.Validation("clearLocation cannot be combined with coordinates")
	}

	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	var cols []string
	if in.Pseudo != nil {
		p.Pseudo = strings.TrimSpace(*in.Pseudo)
		if p.Pseudo == "" {
			return nil, svcErr.Validation("pseudo cannot be blank")
		}
		cols = append(cols, "pseudo")
	}
	if in.Description != nil {
		p.Description = *in.Description
		cols = append(cols, "description")
	}
	if in.Instruments != nil {
		p.Instruments = in.Instruments
		cols = append(cols, "instruments")
	}
	if in.Styles != nil {
		p.Styles = in.Styles
		cols = append(cols, "styles")
	}
	if in.MaxDistance != nil {
		p.MaxDistance = *in.MaxDistance
		cols = append(cols, "max_distance")
	}
	moved := false
	if in.Latitude != nil && in.Longitude != nil {
		p.Latitude, p.Longitude = in.Latitude, in.Longitude
		cols = append(cols, "latitude", "longitude")
		moved = true
	}
	if in.ClearLocation {
		p.Latitude, p.Longitude = nil, nil
		cols = append(cols, "latitude", "longitude")
		moved = true
	}

	if len(cols) > 0 {
		if err := s.profiles.UpdateColumns(ctx, p, cols...); err != nil {
			return nil, svcErr.Wrap(err)
		}
	}
	if moved {
		if err := s.discovery.IndexProfile(ctx, p); err != nil {
			// the next rebuild repairs the index
			s.appCtx.Log(ctx).Warn("geo reindex failed", "user", userID, "err", err)
		}
	}

	v := view.Own(p)
	return &v, nil
}

// AddPhoto appends an already-uploaded photo URL.
func (s *Service) AddPhoto(ctx context.Context, userID uint64, url string) (*view.Profile, error) {
	if err := s.validate.Var(url, "required,url"); err != nil {
		return nil, svcErr.Validation("photo url is invalid")
	}

	_, isPremium, err := s.premium.ResolveByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.quota.CheckPhotos(isPremium, len(p.Photos)); err != nil {
		s.appCtx.Metrics.QuotaRejections.WithLabelValues(quota.ResourcePhotos).Inc()
		return nil, err
	}

	p.Photos = append(p.Photos, url)
	return s.save(ctx, p, "photos")
}

// RemovePhoto deletes url from the photos. The last photo cannot go.
func (s *Service) RemovePhoto(ctx context.Context, userID uint64, url string) (*view.Profile, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := slices.Index(p.Photos, url)
	if i < 0 {
		return nil, svcErr.NotFound("photo not found")
	}
	if len(p.Photos) == 1 {
		return nil, svcErr.Validation("at least one photo must remain")
	}

	p.Photos = slices.Delete(p.Photos, i, i+1)
	return s.save(ctx, p, "photos")
}

// AddMedia appends an already-uploaded media item. Songs count against the
// free-tier song cap.
func (s *Service) AddMedia(ctx context.Context, userID uint64, m db.Media) (*view.Profile, error) {
	if err := s.validate.Struct(m); err != nil {
		return nil, validationError(err)
	}

	_, isPremium, err := s.premium.ResolveByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if quota.IsSong(m) {
		if err := s.quota.CheckSongs(isPremium, quota.CountSongs(p.Media)); err != nil {
			s.appCtx.Metrics.QuotaRejections.WithLabelValues(quota.ResourceSongs).Inc()
			return nil, err
		}
	}

	p.Media = append(p.Media, m)
	return s.save(ctx, p, "media")
}

// RemoveMedia deletes the item with url. The last item cannot go.
func (s *Service) RemoveMedia(ctx context.Context, userID uint64, url string) (*view.Profile, error) {
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(p.Media, func(m db.Media) bool { return m.URL == url })
	if i < 0 {
		return nil, svcErr.NotFound("media not found")
	}
	if len(p.Media) == 1 {
		return nil, svcErr.Validation("at least one media item must remain")
	}

	p.Media = slices.Delete(p.Media, i, i+1)
	return s.save(ctx, p, "media")
}

// QuotaStatus reports the caller's free-tier usage without writing.
func (s *Service) QuotaStatus(ctx context.Context, userID uint64) (*quota.Status, error) {
	_, isPremium, err := s.premium.ResolveByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	p, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	st := s.quota.Status(isPremium, p, s.appCtx.Now())
	return &st, nil
}

func (s *Service) load(ctx context.Context, userID uint64) (*db.Profile, error) {
	p, err := s.profiles.GetByUser(ctx, userID)
	if err != nil {
		err = svcErr.Wrap(err)
		if svcErr.Is(err, svcErr.KindNotFound) {
			return nil, svcErr.NotFound("profile not found")
		}
		return nil, err
	}
	return p, nil
}

func (s *Service) save(ctx context.Context, p *db.Profile, cols ...string) (*view.Profile, error) {
	if err := s.profiles.UpdateColumns(ctx, p, cols...); err != nil {
		s.appCtx.Log(ctx).Error("profile update failed", "user", p.UserID, "err", err)
		return nil, svcErr.Wrap(err)
	}
	v := view.Own(p)
	return &v, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return svcErr.Validation(fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return svcErr.Validation(err.Error())
}
