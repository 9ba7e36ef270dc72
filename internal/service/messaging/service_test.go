package messaging_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matchmaking/internal/conversation"
	"github.com/oggyb/muzz-matchmaking/internal/db"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
	"github.com/oggyb/muzz-matchmaking/internal/repository"
	"github.com/oggyb/muzz-matchmaking/internal/service/matching"
	"github.com/oggyb/muzz-matchmaking/internal/service/messaging"
	"github.com/oggyb/muzz-matchmaking/internal/service/premium"
	"github.com/oggyb/muzz-matchmaking/internal/service/quota"
	tu "github.com/oggyb/muzz-matchmaking/internal/testutil"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*tu.Env, *messaging.Service) {
	t.Helper()
	env := tu.NewApp(t, now)
	return env, messaging.NewService(env.App, premium.NewResolver(env.App), quota.NewTracker(env.App.Config.Quota))
}

func quotaRecipients(t *testing.T, env *tu.Env, userID uint64) int {
	t.Helper()
	var p db.Profile
	require.NoError(t, env.App.DB.Where("user_id = ?", userID).First(&p).Error)
	return len(p.MessageQuota.Recipients)
}

func unreadOf(t *testing.T, env *tu.Env, userID uint64) int64 {
	t.Helper()
	var u db.User
	require.NoError(t, env.App.DB.First(&u, userID).Error)
	return u.MessageUnread
}

func TestSendMessage_QuotaOnNewRecipientsOnly(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	me := tu.SeedUser(t, env.App.DB, "me", nil, nil)
	r1 := tu.SeedUser(t, env.App.DB, "r1", nil, nil)
	r2 := tu.SeedUser(t, env.App.DB, "r2", nil, nil)
	r3 := tu.SeedUser(t, env.App.DB, "r3", nil, nil)
	for _, r := range []*db.User{r1, r2, r3} {
		tu.SeedMatch(t, env.App.DB, me.ID, r.ID, now)
	}

	_, err := svc.SendMessage(ctx, me.ID, conversation.Key(me.ID, r1.ID), "hi r1")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, me.ID, conversation.Key(me.ID, r2.ID), "hi r2")
	require.NoError(t, err)
	assert.Equal(t, 2, quotaRecipients(t, env, me.ID))

	_, err = svc.SendMessage(ctx, me.ID, conversation.Key(me.ID, r3.ID), "hi r3")
	require.Error(t, err)
	assert.True(t, svcErr.Is(err, svcErr.KindQuotaExceeded))
	usage, ok := svcErr.QuotaOf(err)
	require.True(t, ok)
	assert.Equal(t, 2, usage.Limit)
	assert.Equal(t, 2, usage.Used)
	assert.True(t, usage.UpgradeRequired)

	for i := 0; i < 5; i++ {
		_, err = svc.SendMessage(ctx, me.ID, conversation.Key(me.ID, r1.ID), "again")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, quotaRecipients(t, env, me.ID))

	var n int64
	require.NoError(t, env.App.DB.Model(&db.Message{}).Where("receiver_id = ?", r3.ID).Count(&n).Error)
	assert.Zero(t, n, "rejected message is not stored")
	assert.Zero(t, unreadOf(t, env, r3.ID))
	assert.Equal(t, int64(6), unreadOf(t, env, r1.ID))

	// the window rolls after 24h
	env.Clock.Advance(24 * time.Hour)
	_, err = svc.SendMessage(ctx, me.ID, conversation.Key(me.ID, r3.ID), "hi r3")
	require.NoError(t, err)
	assert.Equal(t, 1, quotaRecipients(t, env, me.ID))
}

func TestSendMessage_PremiumUnlimited(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	me := tu.SeedUser(t, env.App.DB, "me", nil, nil)
	require.NoError(t, env.App.DB.Model(&db.User{}).Where("id = ?", me.ID).Update("is_premium", true).Error)

	for _, name := range []string{"r1", "r2", "r3", "r4"} {
		r := tu.SeedUser(t, env.App.DB, name, nil, nil)
		tu.SeedMatch(t, env.App.DB, me.ID, r.ID, now)
		_, err := svc.SendMessage(ctx, me.ID, conversation.Key(me.ID, r.ID), "hello")
		require.NoError(t, err)
	}
	assert.Zero(t, quotaRecipients(t, env, me.ID))
}

func TestSendMessage_Validation(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	me := tu.SeedUser(t, env.App.DB, "me", nil, nil)
	other := tu.SeedUser(t, env.App.DB, "other", nil, nil)
	key := tu.SeedMatch(t, env.App.DB, me.ID, other.ID, now).PairKey

	_, err := svc.SendMessage(ctx, me.ID, key, "   ")
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = svc.SendMessage(ctx, me.ID, key, strings.Repeat("a", messaging.MaxContentLength+1))
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))

	_, err = svc.SendMessage(ctx, me.ID, "1_2_3", "hi")
	assert.True(t, svcErr.Is(err, svcErr.KindForbidden))

	stranger := tu.SeedUser(t, env.App.DB, "stranger", nil, nil)
	_, err = svc.SendMessage(ctx, stranger.ID, key, "hi")
	assert.True(t, svcErr.Is(err, svcErr.KindForbidden))

	_, err = svc.SendMessage(ctx, me.ID, conversation.Key(me.ID, 9999), "hi")
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	msg, err := svc.SendMessage(ctx, me.ID, key, "  trimmed  ")
	require.NoError(t, err)
	assert.Equal(t, "trimmed", msg.Content)
	assert.Equal(t, other.ID, msg.ReceiverID)
}

func TestSendMessage_TouchesMatch(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	a := tu.SeedUser(t, env.App.DB, "a", nil, nil)
	b := tu.SeedUser(t, env.App.DB, "b", nil, nil)

	m, _, err := repository.NewMatchRepository(env.App.DB).CreateIfAbsent(ctx, a.ID, b.ID, now)
	require.NoError(t, err)

	env.Clock.Advance(time.Hour)
	_, err = svc.SendMessage(ctx, b.ID, m.PairKey, "hey")
	require.NoError(t, err)

	var stored db.Match
	require.NoError(t, env.App.DB.First(&stored, "id = ?", m.ID).Error)
	assert.Equal(t, now.Add(time.Hour), stored.LastActivityAt.UTC())

	var msg db.Message
	require.NoError(t, env.App.DB.First(&msg).Error)
	require.NotNil(t, msg.MatchID)
	assert.Equal(t, m.ID, *msg.MatchID)
}

func TestSendMessage_RequiresMatch(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	matches := matching.NewService(env.App, premium.NewResolver(env.App), quota.NewTracker(env.App.Config.Quota))
	a := tu.SeedUser(t, env.App.DB, "a", nil, nil)
	b := tu.SeedUser(t, env.App.DB, "b", nil, nil)
	key := conversation.Key(a.ID, b.ID)

	require.NoError(t, matches.Dislike(ctx, b.ID, a.ID))

	_, err := svc.SendMessage(ctx, a.ID, key, "hello stranger")
	require.Error(t, err)
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))

	var n int64
	require.NoError(t, env.App.DB.Model(&db.Message{}).Where("conversation_key = ?", key).Count(&n).Error)
	assert.Zero(t, n)
	assert.Zero(t, unreadOf(t, env, b.ID))
	assert.Zero(t, quotaRecipients(t, env, a.ID), "a refused send spends no quota")

	convs, err := svc.ListConversations(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, convs)
}

func TestSendMessage_RejectedAfterUnmatch(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	matches := matching.NewService(env.App, premium.NewResolver(env.App), quota.NewTracker(env.App.Config.Quota))
	a := tu.SeedUser(t, env.App.DB, "a", nil, nil)
	b := tu.SeedUser(t, env.App.DB, "b", nil, nil)

	_, err := matches.Like(ctx, a.ID, b.ID)
	require.NoError(t, err)
	res, err := matches.Like(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	key := conversation.Key(a.ID, b.ID)

	_, err = svc.SendMessage(ctx, a.ID, key, "hi")
	require.NoError(t, err)

	require.NoError(t, matches.Unmatch(ctx, b.ID, res.Match.ID))

	_, err = svc.SendMessage(ctx, a.ID, key, "still there?")
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	_, err = svc.SendMessage(ctx, b.ID, key, "bye")
	assert.True(t, svcErr.Is(err, svcErr.KindNotFound))
	assert.Equal(t, int64(1), unreadOf(t, env, b.ID))
}

func TestSendMessage_ConcurrentFirstContactsRespectLimit(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)

	// one connection serializes transactions the way the profile row lock does on MySQL
	sqlDB, err := env.App.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	me := tu.SeedUser(t, env.App.DB, "me", nil, nil)
	keys := make([]string, 0, 5)
	for _, name := range []string{"r1", "r2", "r3", "r4", "r5"} {
		r := tu.SeedUser(t, env.App.DB, name, nil, nil)
		keys = append(keys, tu.SeedMatch(t, env.App.DB, me.ID, r.ID, now).PairKey)
	}

	errs := make(chan error, len(keys))
	var wg sync.WaitGroup
	for _, key := range keys {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			_, err := svc.SendMessage(ctx, me.ID, key, "hi")
			errs <- err
		}(key)
	}
	wg.Wait()
	close(errs)

	sent, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			sent++
		case svcErr.Is(err, svcErr.KindQuotaExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, env.App.Config.Quota.MessageRecipientLimit, sent)
	assert.Equal(t, len(keys)-sent, rejected)
	assert.Equal(t, sent, quotaRecipients(t, env, me.ID))

	var n int64
	require.NoError(t, env.App.DB.Model(&db.Message{}).Where("sender_id = ?", me.ID).Count(&n).Error)
	assert.Equal(t, int64(sent), n)
}

func TestGetMessages_OrderAndMembership(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	a := tu.SeedUser(t, env.App.DB, "a", nil, nil)
	b := tu.SeedUser(t, env.App.DB, "b", nil, nil)
	c := tu.SeedUser(t, env.App.DB, "c", nil, nil)
	key := tu.SeedMatch(t, env.App.DB, a.ID, b.ID, now).PairKey

	_, err := svc.SendMessage(ctx, a.ID, key, "one")
	require.NoError(t, err)
	env.Clock.Advance(time.Second)
	_, err = svc.SendMessage(ctx, b.ID, key, "two")
	require.NoError(t, err)
	env.Clock.Advance(time.Second)
	_, err = svc.SendMessage(ctx, a.ID, key, "three")
	require.NoError(t, err)

	// both participants resolve the same thread, whichever way they build the key
	fromB, err := svc.GetMessages(ctx, b.ID, conversation.Key(b.ID, a.ID))
	require.NoError(t, err)
	require.Len(t, fromB, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{fromB[0].Content, fromB[1].Content, fromB[2].Content})

	_, err = svc.GetMessages(ctx, c.ID, key)
	assert.True(t, svcErr.Is(err, svcErr.KindForbidden))
}

func TestMarkAsRead_Recounts(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	a := tu.SeedUser(t, env.App.DB, "a", nil, nil)
	b := tu.SeedUser(t, env.App.DB, "b", nil, nil)
	c := tu.SeedUser(t, env.App.DB, "c", nil, nil)
	require.NoError(t, env.App.DB.Model(&db.User{}).Where("id IN ?", []uint64{b.ID, c.ID}).Update("is_premium", true).Error)

	ab := tu.SeedMatch(t, env.App.DB, a.ID, b.ID, now).PairKey
	ac := tu.SeedMatch(t, env.App.DB, a.ID, c.ID, now).PairKey
	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, b.ID, ab, "from b")
		require.NoError(t, err)
	}
	_, err := svc.SendMessage(ctx, c.ID, ac, "from c")
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, a.ID, ab, "reply")
	require.NoError(t, err)
	assert.Equal(t, int64(4), unreadOf(t, env, a.ID))

	// drift the stored counter; the recount repairs it
	require.NoError(t, env.App.DB.Model(&db.User{}).Where("id = ?", a.ID).Update("message_unread", 42).Error)

	res, err := svc.MarkAsRead(ctx, a.ID, ab)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Marked)
	assert.Equal(t, int64(1), res.Unread)
	assert.Equal(t, int64(1), unreadOf(t, env, a.ID))

	msgs, err := svc.GetMessages(ctx, a.ID, ab)
	require.NoError(t, err)
	for _, m := range msgs {
		if m.ReceiverID == a.ID {
			assert.True(t, m.Read)
			assert.NotNil(t, m.ReadAt)
		} else {
			assert.False(t, m.Read, "messages a sent stay unread for b")
		}
	}

	_, err = svc.MarkAsRead(ctx, c.ID, ab)
	assert.True(t, svcErr.Is(err, svcErr.KindForbidden))
}

func TestListConversations(t *testing.T) {
	ctx := context.Background()
	env, svc := setup(t)
	matches := repository.NewMatchRepository(env.App.DB)
	a := tu.SeedUser(t, env.App.DB, "a", nil, nil)
	b := tu.SeedUser(t, env.App.DB, "b", nil, nil)
	c := tu.SeedUser(t, env.App.DB, "c", nil, nil)

	mb, _, err := matches.CreateIfAbsent(ctx, a.ID, b.ID, now)
	require.NoError(t, err)
	mc, _, err := matches.CreateIfAbsent(ctx, a.ID, c.ID, now.Add(time.Minute))
	require.NoError(t, err)

	env.Clock.Advance(time.Hour)
	_, err = svc.SendMessage(ctx, b.ID, mb.PairKey, "first")
	require.NoError(t, err)
	env.Clock.Advance(time.Second)
	_, err = svc.SendMessage(ctx, b.ID, mb.PairKey, "latest")
	require.NoError(t, err)

	convs, err := svc.ListConversations(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, convs, 2)

	assert.Equal(t, mb.PairKey, convs[0].ConversationKey)
	assert.Equal(t, mb.ID, convs[0].MatchID)
	require.NotNil(t, convs[0].LastMessage)
	assert.Equal(t, "latest", convs[0].LastMessage.Content)
	assert.Equal(t, int64(2), convs[0].Unread)
	assert.Equal(t, b.ID, convs[0].Other.UserID)

	assert.Equal(t, mc.PairKey, convs[1].ConversationKey)
	assert.Nil(t, convs[1].LastMessage)
	assert.Zero(t, convs[1].Unread)

	empty, err := svc.ListConversations(ctx, tu.SeedUser(t, env.App.DB, "loner", nil, nil).ID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
