package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 123e6, time.UTC)
	token := Encode(After("likers", 42, at))

	c, err := Decode("likers", token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), c.ActorID)
	assert.True(t, at.Equal(c.Time()))
	assert.False(t, c.IsStart())
}

func TestDecode_Empty(t *testing.T) {
	c, err := Decode("likers", "")
	require.NoError(t, err)
	assert.True(t, c.IsStart())
}

func TestDecode_WrongScope(t *testing.T) {
	token := Encode(After("new_likers", 1, time.Now()))

	_, err := Decode("likers", token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("likers", "%%%")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Decode("likers", base64.RawURLEncoding.EncodeToString([]byte("not json")))
	assert.ErrorIs(t, err, ErrInvalidToken)
}
