package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaking/internal/db"
)

// UserRepository reads accounts and maintains their counters and premium fields.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

func (r *UserRepository) WithTx(tx *gorm.DB) *UserRepository {
	return &UserRepository{db: tx}
}

// Get loads a user by id. Returns gorm.ErrRecordNotFound when absent.
func (r *UserRepository) Get(ctx context.Context, id uint64) (*db.User, error) {
	var u db.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListByIDs loads users keyed by id; missing ids are simply absent.
func (r *UserRepository) ListByIDs(ctx context.Context, ids []uint64) (map[uint64]db.User, error) {
	out := make(map[uint64]db.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []db.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

// DowngradeExpired clears the premium fields of userID if, and only if, the
// subscription is still flagged active and expired at or before now.
// Returns whether a row changed, so repeated calls after expiry are no-ops.
func (r *UserRepository) DowngradeExpired(ctx context.Context, userID uint64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ? AND is_premium = ? AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?", userID, true, now).
		Updates(map[string]any{
			"is_premium":             false,
			"stripe_subscription_id": nil,
			"premium_expires_at":     nil,
			"premium_started_at":     nil,
			"premium_plan_type":      nil,
		})
	return res.RowsAffected > 0, res.Error
}

// ExpiredPremiumIDs lists users still flagged premium whose expiry has passed.
func (r *UserRepository) ExpiredPremiumIDs(ctx context.Context, now time.Time, limit int) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("is_premium = ? AND premium_expires_at IS NOT NULL AND premium_expires_at <= ?", true, now).
		Order("id").
		Limit(limit).
		Pluck("id", &ids).Error
	return ids, err
}

// IncrementNewLike bumps the "someone liked you" counter.
func (r *UserRepository) IncrementNewLike(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		UpdateColumn("new_like", gorm.Expr("new_like + ?", 1)).Error
}

func (r *UserRepository) ResetNewLike(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		UpdateColumn("new_like", 0).Error
}

// IncrementUnread bumps the global unread-message counter by one.
func (r *UserRepository) IncrementUnread(ctx context.Context, userID uint64) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		UpdateColumn("message_unread", gorm.Expr("message_unread + ?", 1)).Error
}

// SetUnread overwrites the global unread-message counter.
func (r *UserRepository) SetUnread(ctx context.Context, userID uint64, n int64) error {
	return r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ?", userID).
		UpdateColumn("message_unread", n).Error
}
