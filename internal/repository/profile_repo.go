package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-matchmaking/internal/db"
)

// ProfileRepository owns reads and column-scoped writes on profiles.
// Writes never go through Save so a preloaded User is never upserted.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

func (r *ProfileRepository) WithTx(tx *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: tx}
}

// GetByUser loads the profile owned by userID together with its account.
func (r *ProfileRepository) GetByUser(ctx context.Context, userID uint64) (*db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id = ?", userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// LockByUser re-reads the profile inside a transaction, holding a row lock
// where the dialect supports one. Quota mutations start here.
func (r *ProfileRepository) LockByUser(ctx context.Context, userID uint64) (*db.Profile, error) {
	var p db.Profile
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListByUsers loads profiles (with accounts) for the given owners, keyed by user id.
func (r *ProfileRepository) ListByUsers(ctx context.Context, userIDs []uint64) (map[uint64]db.Profile, error) {
	out := make(map[uint64]db.Profile, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	var profiles []db.Profile
	err := r.db.WithContext(ctx).
		Preload("User").
		Where("user_id IN ?", userIDs).
		Find(&profiles).Error
	if err != nil {
		return nil, err
	}
	for _, p := range profiles {
		out[p.UserID] = p
	}
	return out, nil
}

// ListExcluding returns up to limit profiles whose owner is not in excluded,
// in insertion order.
func (r *ProfileRepository) ListExcluding(ctx context.Context, excluded []uint64, limit int) ([]db.Profile, error) {
	var profiles []db.Profile
	q := r.db.WithContext(ctx).Preload("User").Order("id").Limit(limit)
	if len(excluded) > 0 {
		q = q.Where("user_id NOT IN ?", excluded)
	}
	if err := q.Find(&profiles).Error; err != nil {
		return nil, err
	}
	return profiles, nil
}

// ListLocated pages through profiles that have both coordinates set.
func (r *ProfileRepository) ListLocated(ctx context.Context, afterID uint64, limit int) ([]db.Profile, error) {
	var profiles []db.Profile
	err := r.db.WithContext(ctx).
		Where("id > ? AND latitude IS NOT NULL AND longitude IS NOT NULL", afterID).
		Order("id").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

// Create inserts a new profile without touching its account.
func (r *ProfileRepository) Create(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error
}

// UpdateColumns writes only the named columns of p.
func (r *ProfileRepository) UpdateColumns(ctx context.Context, p *db.Profile, columns ...string) error {
	return r.db.WithContext(ctx).
		Model(p).
		Omit(clause.Associations).
		Select(columns).
		Updates(p).Error
}

// SaveSwipeQuota persists the swipe counter sub-document.
func (r *ProfileRepository) SaveSwipeQuota(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", p.ID).
		UpdateColumns(map[string]any{
			"swipe_count": p.SwipeQuota.Count,
			"swipe_date":  p.SwipeQuota.Date,
		}).Error
}

// SaveMessageQuota persists the message-recipient sub-document.
func (r *ProfileRepository) SaveMessageQuota(ctx context.Context, p *db.Profile) error {
	return r.db.WithContext(ctx).
		Model(&db.Profile{}).
		Where("id = ?", p.ID).
		UpdateColumns(map[string]any{
			"message_quota_recipients": p.MessageQuota.Recipients,
			"message_quota_reset_at":   p.MessageQuota.ResetAt,
		}).Error
}
