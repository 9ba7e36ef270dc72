package errors

import (
	"strconv"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ReasonPremiumRequired is the ErrorInfo reason attached to quota rejections.
const ReasonPremiumRequired = "PREMIUM_REQUIRED"

// Map converts core errors into gRPC-friendly status errors.
// Keeps transport handlers clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	e := asError(Wrap(err))

	switch e.Kind {
	case KindValidation:
		return status.Error(codes.InvalidArgument, e.Msg)
	case KindNotFound:
		return status.Error(codes.NotFound, e.Msg)
	case KindForbidden:
		return status.Error(codes.PermissionDenied, e.Msg)
	case KindConflict:
		return status.Error(codes.AlreadyExists, e.Msg)
	case KindQuotaExceeded:
		return quotaStatus(e)
	case KindDependency:
		return status.Error(codes.Unavailable, e.Msg)
	default:
		return status.Error(codes.Internal, e.Error())
	}
}

func quotaStatus(e *Error) error {
	st := status.New(codes.ResourceExhausted, e.Msg)
	if e.Quota == nil {
		return st.Err()
	}

	q := e.Quota
	detailed, err := st.WithDetails(
		&errdetails.ErrorInfo{
			Reason: ReasonPremiumRequired,
			Domain: "muzz.matchmaking",
			Metadata: map[string]string{
				"resource":        q.Resource,
				"limit":           strconv.Itoa(q.Limit),
				"used":            strconv.Itoa(q.Used),
				"upgradeRequired": strconv.FormatBool(q.UpgradeRequired),
			},
		},
		&errdetails.QuotaFailure{
			Violations: []*errdetails.QuotaFailure_Violation{{
				Subject:     q.Resource,
				Description: e.Msg,
			}},
		},
	)
	if err != nil {
		return st.Err()
	}
	return detailed.Err()
}
