// Package conversation derives the identity of the thread between two users.
//
// A key is both ids in decimal form, sorted lexicographically and joined with
// Separator, so it does not depend on which participant asks for it.
package conversation

import (
	"strconv"
	"strings"

	svcErr "github.com/oggyb/muzz-matchmaking/internal/errors"
)

const Separator = "_"

// Key returns the conversation key for users a and b.
func Key(a, b uint64) string {
	low, high := Order(a, b)
	return strconv.FormatUint(low, 10) + Separator + strconv.FormatUint(high, 10)
}

// Order returns a and b in the order their string forms sort in.
func Order(a, b uint64) (uint64, uint64) {
	if strconv.FormatUint(b, 10) < strconv.FormatUint(a, 10) {
		return b, a
	}
	return a, b
}

// Counterpart validates that requester takes part in key and returns the
// other participant.
func Counterpart(key string, requester uint64) (uint64, error) {
	parts := strings.Split(key, Separator)
	if len(parts) != 2 {
		return 0, svcErr.Forbidden("not a participant of this conversation")
	}

	self := strconv.FormatUint(requester, 10)
	var other string
	switch {
	case parts[0] == self && parts[1] != self:
		other = parts[1]
	case parts[1] == self && parts[0] != self:
		other = parts[0]
	default:
		return 0, svcErr.Forbidden("not a participant of this conversation")
	}

	id, err := strconv.ParseUint(other, 10, 64)
	if err != nil || id == 0 {
		return 0, svcErr.Forbidden("not a participant of this conversation")
	}
	// a key that is not in canonical order names no real conversation
	if Key(requester, id) != key {
		return 0, svcErr.Forbidden("not a participant of this conversation")
	}
	return id, nil
}
