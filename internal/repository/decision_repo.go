package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/oggyb/muzz-matchmaking/internal/db"
	"github.com/oggyb/muzz-matchmaking/internal/utils/pagination"
)

// Liker tokens are only valid for the list that issued them.
const (
	likersScope    pagination.Scope = "likers"
	newLikersScope pagination.Scope = "new_likers"
)

// DecisionRepository provides data access methods for the Decision model.
// It encapsulates all queries related to likes/passes between users.
type DecisionRepository struct {
	db *gorm.DB
}

// NewDecisionRepository creates a new repository bound to the given DB connection.
func NewDecisionRepository(database *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: database}
}

// WithTx returns a copy bound to tx.
func (r *DecisionRepository) WithTx(tx *gorm.DB) *DecisionRepository {
	return &DecisionRepository{db: tx}
}

// CreateDecision records a swipe made by actor -> recipient.
//
// Behavior:
//   - Inserts the (actor_id, recipient_id) row if absent.
//   - Returns created = false without touching the row when the pair was
//     already swiped; the composite PK makes this race-free.
//
// Example:
//
//	repo.CreateDecision(ctx, 1, 2, true) // user 1 liked user 2
func (r *DecisionRepository) CreateDecision(
	ctx context.Context,
	actorID, recipientID uint64,
	liked bool,
) (bool, error) {
	decision := db.Decision{
		ActorID:     actorID,
		RecipientID: recipientID,
		Liked:       liked,
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&decision)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeletePair removes the swipes between a and b in both directions.
func (r *DecisionRepository) DeletePair(ctx context.Context, a, b uint64) error {
	return r.db.WithContext(ctx).
		Where("(actor_id = ? AND recipient_id = ?) OR (actor_id = ? AND recipient_id = ?)", a, b, b, a).
		Delete(&db.Decision{}).Error
}

// SwipedIDs returns every user the actor has liked or passed.
func (r *DecisionRepository) SwipedIDs(ctx context.Context, actorID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ?", actorID).
		Pluck("recipient_id", &ids).Error
	return ids, err
}

// LikedIDs returns the users the actor liked, most recent first.
func (r *DecisionRepository) LikedIDs(ctx context.Context, actorID uint64) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ? AND liked = ?", actorID, true).
		Order("updated_at DESC, recipient_id DESC").
		Pluck("recipient_id", &ids).Error
	return ids, err
}

// GetLikers returns all users who liked the given recipient.
//
// Behavior:
//   - Only decisions where recipient_id = X and liked = true are returned.
//   - Excludes users that the recipient explicitly passed (liked = false).
//   - Ordered by updated_at DESC, actor_id DESC.
//   - Supports cursor-based pagination via paginationToken.
//
// Example:
//
//	repo.GetLikers(ctx, 42, nil, 20) // list first 20 people who liked user 42
func (r *DecisionRepository) GetLikers(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
) ([]db.Decision, *string, error) {
	return r.likers(ctx, recipientID, paginationToken, limit, false)
}

// GetNewLikers returns users who liked the recipient but have not been liked back.
//
// Behavior:
//   - Same filtering as GetLikers.
//   - Additionally excludes mutual likes (recipient already liked them back).
//
// Example:
//
//	repo.GetNewLikers(ctx, 42, nil, 20) // list first 20 one-way likes for user 42
func (r *DecisionRepository) GetNewLikers(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
) ([]db.Decision, *string, error) {
	return r.likers(ctx, recipientID, paginationToken, limit, true)
}

func (r *DecisionRepository) likers(
	ctx context.Context,
	recipientID uint64,
	paginationToken *string,
	limit int,
	excludeMutual bool,
) ([]db.Decision, *string, error) {
	var decisions []db.Decision

	scope := likersScope
	if excludeMutual {
		scope = newLikersScope
	}
	cursor, err := pagination.Decode(scope, getString(paginationToken))
	if err != nil {
		return nil, nil, err
	}

	query := r.likersQuery(ctx, recipientID).
		Select("d.*").
		Order("d.updated_at DESC, d.actor_id DESC").
		Limit(limit + 1)

	if excludeMutual {
		mutual := r.db.
			Table("decisions").
			Select("1").
			Where("actor_id = d.recipient_id AND recipient_id = d.actor_id AND liked = ?", true)
		query = query.Where("NOT EXISTS (?)", mutual)
	}

	if !cursor.IsStart() {
		ts := cursor.Time()
		query = query.Where(
			"(d.updated_at < ? OR (d.updated_at = ? AND d.actor_id < ?))",
			ts, ts, cursor.ActorID,
		)
	}

	if err := query.Find(&decisions).Error; err != nil {
		return nil, nil, err
	}

	// pagination: build next cursor if needed
	var nextToken *string
	if len(decisions) > limit {
		last := decisions[limit-1]
		token := pagination.Encode(pagination.After(scope, last.ActorID, last.UpdatedAt))
		nextToken = &token
		decisions = decisions[:limit]
	}

	return decisions, nextToken, nil
}

// CountLikers returns how many users liked the given recipient.
// Excludes users that recipient explicitly passed.
// Used in conjunction with Redis cache (DB is fallback).
func (r *DecisionRepository) CountLikers(
	ctx context.Context,
	recipientID uint64,
) (int64, error) {
	var count int64
	if err := r.likersQuery(ctx, recipientID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *DecisionRepository) likersQuery(ctx context.Context, recipientID uint64) *gorm.DB {
	return r.db.WithContext(ctx).
		Table("decisions d").
		Where("d.recipient_id = ? AND d.liked = ?", recipientID, true).
		Where(`
			NOT EXISTS (
				SELECT 1 FROM decisions d2
				WHERE d2.actor_id = ?
				  AND d2.recipient_id = d.actor_id
				  AND d2.liked = ?
			)`, recipientID, false)
}

// HasLiked checks whether an actor has liked a recipient.
// Used for the reciprocity check after a like.
//
// Example:
//
//	repo.HasLiked(ctx, 1, 2) // -> true if user 1 liked user 2
func (r *DecisionRepository) HasLiked(
	ctx context.Context,
	actorID, recipientID uint64,
) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.Decision{}).
		Where("actor_id = ? AND recipient_id = ? AND liked = ?", actorID, recipientID, true).
		Count(&count).Error
	return count > 0, err
}

// getString safely dereferences a string pointer for pagination tokens.
func getString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
