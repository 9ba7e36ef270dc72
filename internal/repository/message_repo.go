package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/oggyb/muzz-matchmaking/internal/db"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(database *gorm.DB) *MessageRepository {
	return &MessageRepository{db: database}
}

func (r *MessageRepository) WithTx(tx *gorm.DB) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Create(ctx context.Context, m *db.Message) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// ListByConversation returns the whole thread, oldest first.
func (r *MessageRepository) ListByConversation(ctx context.Context, key string) ([]db.Message, error) {
	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("conversation_key = ?", key).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	return msgs, err
}

// MarkRead flags every unread message addressed to receiverID in the
// conversation and returns how many changed.
func (r *MessageRepository) MarkRead(ctx context.Context, key string, receiverID uint64, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("conversation_key = ? AND receiver_id = ? AND is_read = ?", key, receiverID, false).
		Updates(map[string]any{"is_read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

// CountUnread counts every unread message addressed to receiverID.
func (r *MessageRepository) CountUnread(ctx context.Context, receiverID uint64) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Count(&n).Error
	return n, err
}

// UnreadByConversation counts unread messages addressed to receiverID,
// grouped by conversation key.
func (r *MessageRepository) UnreadByConversation(ctx context.Context, receiverID uint64) (map[string]int64, error) {
	var rows []struct {
		ConversationKey string
		N               int64
	}
	err := r.db.WithContext(ctx).
		Model(&db.Message{}).
		Select("conversation_key, COUNT(*) AS n").
		Where("receiver_id = ? AND is_read = ?", receiverID, false).
		Group("conversation_key").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.ConversationKey] = row.N
	}
	return out, nil
}

// Latest returns the most recent message of each conversation the user
// takes part in, newest conversation first.
func (r *MessageRepository) Latest(ctx context.Context, userID uint64) ([]db.Message, error) {
	latest := r.db.
		Model(&db.Message{}).
		Select("MAX(id)").
		Where("sender_id = ? OR receiver_id = ?", userID, userID).
		Group("conversation_key")

	var msgs []db.Message
	err := r.db.WithContext(ctx).
		Where("id IN (?)", latest).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error
	return msgs, err
}
