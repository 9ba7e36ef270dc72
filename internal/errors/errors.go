package errors

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Kind classifies a failure for callers of the core.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindForbidden
	KindConflict
	KindQuotaExceeded
	KindDependency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindDependency:
		return "dependency"
	default:
		return "unknown"
	}
}

// QuotaUsage is attached to every quota rejection so clients can render
// usage and branch on the upgrade signal.
type QuotaUsage struct {
	Resource        string `json:"resource"`
	Limit           int    `json:"limit"`
	Used            int    `json:"used"`
	UpgradeRequired bool   `json:"upgradeRequired"`
}

// Error is the only error type that crosses the core's public contract.
type Error struct {
	Kind  Kind
	Msg   string
	Quota *QuotaUsage
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) error { return &Error{Kind: KindValidation, Msg: msg} }
func NotFound(msg string) error   { return &Error{Kind: KindNotFound, Msg: msg} }
func Forbidden(msg string) error  { return &Error{Kind: KindForbidden, Msg: msg} }
func Conflict(msg string) error   { return &Error{Kind: KindConflict, Msg: msg} }

// QuotaExceeded reports a free-tier limit hit on resource.
func QuotaExceeded(resource string, limit, used int) error {
	return &Error{
		Kind: KindQuotaExceeded,
		Msg:  fmt.Sprintf("%s limit reached, premium required", resource),
		Quota: &QuotaUsage{
			Resource:        resource,
			Limit:           limit,
			Used:            used,
			UpgradeRequired: true,
		},
	}
}

// Dependency wraps a store or downstream failure. Callers may retry.
func Dependency(msg string, err error) error {
	return &Error{Kind: KindDependency, Msg: msg, Err: err}
}

// Wrap maps raw infrastructure errors into the taxonomy. Errors that are
// already classified pass through untouched.
func Wrap(err error) error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Msg: "record not found", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Kind: KindConflict, Msg: "duplicate record", Err: err}
	case errors.Is(err, redis.Nil):
		return &Error{Kind: KindNotFound, Msg: "cache entry not found", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return Dependency("request timed out", err)
	case errors.Is(err, context.Canceled):
		return Dependency("request was canceled", err)
	default:
		return Dependency("store unavailable", err)
	}
}

func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindUnknown, Msg: "internal error", Err: err}
}

// KindOf returns the classification of err, KindUnknown for unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool { return KindOf(err) == k }

// QuotaOf returns the usage figures of a quota rejection.
func QuotaOf(err error) (*QuotaUsage, bool) {
	var e *Error
	if errors.As(err, &e) && e.Quota != nil {
		return e.Quota, true
	}
	return nil, false
}

// IsClientError separates caller mistakes (4xx) from system failures (5xx).
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindNotFound, KindForbidden, KindConflict, KindQuotaExceeded:
		return true
	}
	return false
}
