package notification

import (
	"context"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
)

// Counters are the badge numbers shown to a user.
type Counters struct {
	NewLike       int64 `json:"newLike"`
	MessageUnread int64 `json:"messageUnread"`
}

type Service struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
}

func NewService(appCtx *app.AppContext) *Service {
	return &Service{appCtx: appCtx, users: repository.NewUserRepository(appCtx.DB)}
}

func (s *Service) GetNotifications(ctx context.Context, userID uint64) (*Counters, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		err = svcErr.Wrap(err)
		if svcErr.Is(err, svcErr.KindNotFound) {
			return nil, svcErr.NotFound("user not found")
		}
		return nil, err
	}
	return &Counters{NewLike: u.NewLike, MessageUnread: u.MessageUnread}, nil
}

// ResetNewLike clears the new-like badge once the user has seen it.
func (s *Service) ResetNewLike(ctx context.Context, userID uint64) error {
	if err := s.users.ResetNewLike(ctx, userID); err != nil {
		s.appCtx.Log(ctx).Error("reset new like failed", "user", userID, "err", err)
		return svcErr.Wrap(err)
	}
	return nil
}
