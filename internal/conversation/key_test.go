package conversation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/muzz-matchmaking/internal/conversation"
	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
)

func TestKeyIsOrderIndependent(t *testing.T) {
	pairs := [][2]uint64{{1, 2}, {9, 10}, {42, 7}, {100, 11}, {123456789, 98765}}
	for _, p := range pairs {
		assert.Equal(t, conversation.Key(p[0], p[1]), conversation.Key(p[1], p[0]), "pair %v", p)
	}
}

func TestKeyIsLexicographic(t *testing.T) {
	// "10" sorts before "9"
	assert.Equal(t, "10_9", conversation.Key(9, 10))
	assert.Equal(t, "1_2", conversation.Key(2, 1))
}

func TestCounterpart(t *testing.T) {
	other, err := conversation.Counterpart("10_9", 9)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), other)

	other, err = conversation.Counterpart("10_9", 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), other)
}

func TestCounterpartRejectsOutsiders(t *testing.T) {
	cases := []string{
		"1_2",   // requester not a member
		"3",     // one part
		"3_4_5", // three parts
		"3_3",   // self conversation
		"3_abc", // malformed id
		"4_3",   // not canonical for 3/4 ("3" < "4")
		"",      // empty
	}
	for _, key := range cases {
		_, err := conversation.Counterpart(key, 3)
		require.Error(t, err, "key %q", key)
		assert.True(t, svcErr.Is(err, svcErr.KindForbidden), "key %q", key)
	}
}
