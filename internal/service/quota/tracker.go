// Package quota enforces the free-tier limits: swipes per calendar day and
// distinct new message recipients per rolling window. Premium callers never
// reach these checks.
//
// The tracker only mutates the in-memory sub-documents; callers persist them
// in the same transaction as the action being gated, so a rejected action
// leaves no trace.
package quota

import (
	"slices"
	"strings"
	"time"

	"github.com/oggyb/muzz-matchmaking/internal/config"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
)

// Resource names carried in quota errors.
const (
	ResourceSwipes   = "swipes"
	ResourceMessages = "messages"
	ResourcePhotos   = "photos"
	ResourceSongs    = "songs"
)

type Tracker struct {
	cfg config.QuotaConfig
	loc *time.Location
}

func NewTracker(cfg config.QuotaConfig) *Tracker {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.Local
	}
	return &Tracker{cfg: cfg, loc: loc}
}

func (t *Tracker) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(t.loc).Date()
	by, bm, bd := b.In(t.loc).Date()
	return ay == by && am == bm && ad == bd
}

func (t *Tracker) nextMidnight(now time.Time) time.Time {
	y, m, d := now.In(t.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.loc)
}

// currentSwipes is the count that applies at now, after a day rollover.
func (t *Tracker) currentSwipes(q db.SwipeQuota, now time.Time) int {
	if q.Date == nil || !t.sameDay(*q.Date, now) {
		return 0
	}
	return q.Count
}

// CheckSwipe reports a quota error when no swipe is left today. Read-only.
func (t *Tracker) CheckSwipe(q db.SwipeQuota, now time.Time) error {
	if used := t.currentSwipes(q, now); used >= t.cfg.SwipeLimit {
		return svcErr.QuotaExceeded(ResourceSwipes, t.cfg.SwipeLimit, used)
	}
	return nil
}

// ConsumeSwipe resets the counter on a new calendar day, then takes one swipe.
func (t *Tracker) ConsumeSwipe(q *db.SwipeQuota, now time.Time) error {
	if q.Date == nil || !t.sameDay(*q.Date, now) {
		q.Count = 0
		day := now
		q.Date = &day
	}
	if q.Count >= t.cfg.SwipeLimit {
		return svcErr.QuotaExceeded(ResourceSwipes, t.cfg.SwipeLimit, q.Count)
	}
	q.Count++
	return nil
}

func (t *Tracker) windowElapsed(q db.MessageQuota, now time.Time) bool {
	return q.ResetAt == nil || now.Sub(*q.ResetAt) >= t.cfg.MessageWindow
}

// ConsumeMessage admits a message to recipientID. Known recipients of the
// current window always pass; a new one is appended while the window has room.
// added reports whether the recipient list grew.
func (t *Tracker) ConsumeMessage(q *db.MessageQuota, recipientID uint64, now time.Time) (added bool, err error) {
	if t.windowElapsed(*q, now) {
		q.Recipients = []db.QuotaRecipient{}
		start := now
		q.ResetAt = &start
	}

	if slices.ContainsFunc(q.Recipients, func(r db.QuotaRecipient) bool { return r.RecipientID == recipientID }) {
		return false, nil
	}
	if used := len(q.Recipients); used >= t.cfg.MessageRecipientLimit {
		return false, svcErr.QuotaExceeded(ResourceMessages, t.cfg.MessageRecipientLimit, used)
	}

	q.Recipients = append(q.Recipients, db.QuotaRecipient{RecipientID: recipientID, FirstMessageAt: now})
	return true, nil
}

// CheckPhotos rejects a new photo once the free-tier cap is reached.
func (t *Tracker) CheckPhotos(premium bool, count int) error {
	if !premium && count >= t.cfg.PhotoLimit {
		return svcErr.QuotaExceeded(ResourcePhotos, t.cfg.PhotoLimit, count)
	}
	return nil
}

// CheckSongs rejects a new song once the free-tier cap is reached.
func (t *Tracker) CheckSongs(premium bool, count int) error {
	if !premium && count >= t.cfg.SongLimit {
		return svcErr.QuotaExceeded(ResourceSongs, t.cfg.SongLimit, count)
	}
	return nil
}

// IsSong reports whether m counts against the song cap.
func IsSong(m db.Media) bool {
	return m.Type == "mp3" || strings.HasSuffix(strings.ToLower(m.URL), ".mp3")
}

// CountSongs counts the song items in media.
func CountSongs(media []db.Media) int {
	n := 0
	for _, m := range media {
		if IsSong(m) {
			n++
		}
	}
	return n
}

// Usage is one line of the quota status. Remaining and ResetAt are only
// meaningful when Unlimited is false.
type Usage struct {
	Limit     int        `json:"limit"`
	Used      int        `json:"used"`
	Remaining int        `json:"remaining"`
	Unlimited bool       `json:"unlimited"`
	ResetAt   *time.Time `json:"resetAt,omitempty"`
}

type Status struct {
	Premium  bool  `json:"isPremium"`
	Swipes   Usage `json:"swipes"`
	Messages Usage `json:"messages"`
	Photos   Usage `json:"photos"`
	Songs    Usage `json:"songs"`
}

func usage(limit, used int, premium bool) Usage {
	if premium {
		return Usage{Limit: limit, Used: used, Unlimited: true}
	}
	return Usage{Limit: limit, Used: used, Remaining: max(0, limit-used)}
}

// Status computes the caller's quotas as of now. Resets are applied to the
// figures only; nothing is written.
func (t *Tracker) Status(premium bool, p *db.Profile, now time.Time) Status {
	swipes := t.currentSwipes(p.SwipeQuota, now)

	recipients := len(p.MessageQuota.Recipients)
	if t.windowElapsed(p.MessageQuota, now) {
		recipients = 0
	}

	st := Status{
		Premium:  premium,
		Swipes:   usage(t.cfg.SwipeLimit, swipes, premium),
		Messages: usage(t.cfg.MessageRecipientLimit, recipients, premium),
		Photos:   usage(t.cfg.PhotoLimit, len(p.Photos), premium),
		Songs:    usage(t.cfg.SongLimit, CountSongs(p.Media), premium),
	}
	if premium {
		return st
	}

	midnight := t.nextMidnight(now)
	st.Swipes.ResetAt = &midnight
	if !t.windowElapsed(p.MessageQuota, now) {
		reset := p.MessageQuota.ResetAt.Add(t.cfg.MessageWindow)
		st.Messages.ResetAt = &reset
	}
	return st
}

// SwipeUsage is the swipes line of Status.
func (t *Tracker) SwipeUsage(premium bool, q db.SwipeQuota, now time.Time) Usage {
	u := usage(t.cfg.SwipeLimit, t.currentSwipes(q, now), premium)
	if !premium {
		midnight := t.nextMidnight(now)
		u.ResetAt = &midnight
	}
	return u
}
