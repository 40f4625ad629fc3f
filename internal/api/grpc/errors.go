package grpc

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"drivekr-wallet-backend/internal/domain"
	"drivekr-wallet-backend/internal/logger"
)

var codeByDomainError = map[string]codes.Code{
	domain.ErrInvalidAmount.Code:        codes.InvalidArgument,
	domain.ErrBelowMinimum.Code:         codes.InvalidArgument,
	domain.ErrInvalidRequest.Code:       codes.InvalidArgument,
	domain.ErrInsufficientBalance.Code:  codes.FailedPrecondition,
	domain.ErrAccountBlocked.Code:       codes.FailedPrecondition,
	domain.ErrNotDriver.Code:            codes.FailedPrecondition,
	domain.ErrAlreadyProcessed.Code:     codes.FailedPrecondition,
	domain.ErrAccountNotFound.Code:      codes.NotFound,
	domain.ErrTransactionNotFound.Code:  codes.NotFound,
	domain.ErrNotificationNotFound.Code: codes.NotFound,
	domain.ErrAccountExists.Code:        codes.AlreadyExists,
	domain.ErrUnauthorized.Code:         codes.PermissionDenied,
	domain.ErrStoreUnavailable.Code:     codes.Unavailable,
}

// toStatus maps service errors onto gRPC status codes. Errors that are already statuses
// pass through; anything unrecognised becomes Internal without leaking its text.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	var de *domain.Error
	if errors.As(err, &de) {
		if code, ok := codeByDomainError[de.Code]; ok {
			return status.Error(code, err.Error())
		}
	}
	logger.Error("Unhandled service error", "error", err)
	return status.Error(codes.Internal, "internal error")
}
