// Package pagination encodes keyset positions as opaque client tokens.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalidToken is returned for tokens this package did not produce, or
// produced for another list.
var ErrInvalidToken = errors.New("invalid pagination token")

// Scope names the list a token belongs to.
type Scope string

// Cursor is the position just after the last row of a page. Rows are
// ordered by (updated_at DESC, actor_id DESC); the actor id breaks ties.
type Cursor struct {
	Scope   Scope  `json:"s"`
	ActorID uint64 `json:"a"`
	Millis  int64  `json:"t"`
}

// After builds the cursor following a row updated at t by actorID.
func After(scope Scope, actorID uint64, t time.Time) Cursor {
	return Cursor{Scope: scope, ActorID: actorID, Millis: t.UnixMilli()}
}

// IsStart reports whether c points at the first page.
func (c Cursor) IsStart() bool { return c.ActorID == 0 || c.Millis == 0 }

// Time is the row timestamp in UTC, at millisecond precision.
func (c Cursor) Time() time.Time { return time.UnixMilli(c.Millis).UTC() }

// Encode returns c as an unpadded URL-safe token.
func Encode(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// Decode parses a token issued for scope. An empty token is the first page.
func Decode(scope Scope, token string) (Cursor, error) {
	if token == "" {
		return Cursor{Scope: scope}, nil
	}

	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil || c.Scope != scope {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}
