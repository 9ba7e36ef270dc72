// Package premium resolves a user's current entitlement from the stored
// subscription fields, clearing them once they have expired.
package premium

import (
	"context"
	"time"

	"github.com/oggyb/muzz-matchmaking/internal/app"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
)

const sweepBatch = 200

type Resolver struct {
	appCtx *app.AppContext
	users  *repository.UserRepository
}

func NewResolver(appCtx *app.AppContext) *Resolver {
	return &Resolver{
		appCtx: appCtx,
		users:  repository.NewUserRepository(appCtx.DB),
	}
}

// Resolve reports whether u is entitled to premium right now.
//
// A flagged user with no expiry is treated as auto-renewing. A flagged user
// whose expiry is at or before now is durably downgraded and u is updated in
// place; later calls see the cleared flag and return false without writing.
func (r *Resolver) Resolve(ctx context.Context, u *db.User) (bool, error) {
	if !u.IsPremium {
		return false, nil
	}
	if u.PremiumExpiresAt == nil {
		return true, nil
	}

	now := r.appCtx.Now()
	if u.PremiumExpiresAt.After(now) {
		return true, nil
	}

	changed, err := r.users.DowngradeExpired(ctx, u.ID, now)
	if err != nil {
		r.appCtx.Log(ctx).Error("premium downgrade failed", "user", u.ID, "err", err)
		return false, svcErr.Wrap(err)
	}
	if changed {
		r.appCtx.Metrics.PremiumDowngrade.Inc()
		r.appCtx.Log(ctx).Info("premium expired", "user", u.ID, "expired_at", u.PremiumExpiresAt.Format(time.RFC3339))
	}

	u.IsPremium = false
	u.PremiumExpiresAt = nil
	u.PremiumStartedAt = nil
	u.PremiumPlanType = nil
	u.StripeSubscriptionID = nil
	return false, nil
}

// ResolveByID loads the user and resolves its entitlement.
func (r *Resolver) ResolveByID(ctx context.Context, userID uint64) (*db.User, bool, error) {
	u, err := r.users.Get(ctx, userID)
	if err != nil {
		if svcErr.Is(svcErr.Wrap(err), svcErr.KindNotFound) {
			return nil, false, svcErr.NotFound("user not found")
		}
		return nil, false, svcErr.Wrap(err)
	}
	premium, err := r.Resolve(ctx, u)
	if err != nil {
		return nil, false, err
	}
	return u, premium, nil
}

// Sweep downgrades every subscription that has already expired and returns
// how many users it resolved. The lazy path in Resolve stays authoritative;
// this only keeps stored flags from lingering for inactive users.
func (r *Resolver) Sweep(ctx context.Context) (int, error) {
	resolved := 0
	for {
		ids, err := r.users.ExpiredPremiumIDs(ctx, r.appCtx.Now(), sweepBatch)
		if err != nil {
			return resolved, svcErr.Wrap(err)
		}
		if len(ids) == 0 {
			return resolved, nil
		}
		for _, id := range ids {
			if _, _, err := r.ResolveByID(ctx, id); err != nil {
				return resolved, err
			}
			resolved++
		}
		if len(ids) < sweepBatch {
			return resolved, nil
		}
	}
}
