package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-matchmaking/internal/conversation"
	"github.com/oggyb/muzz-matchmaking/internal/db"
)

type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(database *gorm.DB) *MatchRepository {
	return &MatchRepository{db: database}
}

func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// CreateIfAbsent returns the match between a and b, creating it when none
// exists. Concurrent callers converge on the same row through the unique
// pair key; created reports whether this call inserted it.
func (r *MatchRepository) CreateIfAbsent(ctx context.Context, a, b uint64, now time.Time) (*db.Match, bool, error) {
	low, high := conversation.Order(a, b)
	m := db.Match{
		ID:             uuid.NewString(),
		PairKey:        conversation.Key(a, b),
		UserLow:        low,
		UserHigh:       high,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m)
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 1 {
		return &m, true, nil
	}
	existing, err := r.GetByPairKey(ctx, m.PairKey)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *MatchRepository) GetByID(ctx context.Context, id string) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MatchRepository) GetByPairKey(ctx context.Context, key string) (*db.Match, error) {
	var m db.Match
	if err := r.db.WithContext(ctx).Where("pair_key = ?", key).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindByPairKey is GetByPairKey without the not-found error.
func (r *MatchRepository) FindByPairKey(ctx context.Context, key string) (*db.Match, error) {
	var matches []db.Match
	if err := r.db.WithContext(ctx).Where("pair_key = ?", key).Limit(1).Find(&matches).Error; err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return &matches[0], nil
}

// ListForUser returns the user's matches, most recently active first.
func (r *MatchRepository) ListForUser(ctx context.Context, userID uint64) ([]db.Match, error) {
	var matches []db.Match
	err := r.db.WithContext(ctx).
		Where("user_low = ? OR user_high = ?", userID, userID).
		Order("last_activity_at DESC, created_at DESC").
		Find(&matches).Error
	return matches, err
}

// DeleteByPairKey removes the pair's match, if any.
func (r *MatchRepository) DeleteByPairKey(ctx context.Context, key string) error {
	return r.db.WithContext(ctx).Where("pair_key = ?", key).Delete(&db.Match{}).Error
}

// Touch moves the match's last activity forward to at.
func (r *MatchRepository) Touch(ctx context.Context, key string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&db.Match{}).
		Where("pair_key = ? AND last_activity_at < ?", key, at).
		UpdateColumn("last_activity_at", at).Error
}
