// Package errors provides structured error handling with HTTP status mapping.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Identity errors
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"

	// Request errors
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Session errors
	CodeSessionNotFound Code = "SESSION_NOT_FOUND"
	CodeSessionEnded    Code = "SESSION_ALREADY_ENDED"
	CodeCellRevealed    Code = "CELL_ALREADY_REVEALED"
	CodeCellOutOfRange  Code = "CELL_OUT_OF_RANGE"
	CodeNothingRevealed Code = "NOTHING_REVEALED"
	CodeConflict        Code = "SESSION_WRITE_CONFLICT"

	// Quota errors
	CodeQuotaExhausted Code = "QUOTA_EXHAUSTED"

	// Settlement errors
	CodeNotWon               Code = "SESSION_NOT_WON"
	CodeAlreadyClaimed       Code = "REWARD_ALREADY_CLAIMED"
	CodeSettlementInProgress Code = "SETTLEMENT_IN_PROGRESS"
	CodeNothingToSettle      Code = "NOTHING_TO_SETTLE"
	CodeNoDestination        Code = "NO_PAYABLE_DESTINATION"

	// Configuration errors
	CodeConfigMissing Code = "CONFIG_MISSING"
	CodeConfigInvalid Code = "CONFIG_INVALID"

	// Upstream collaborator errors
	CodeUpstreamResolver Code = "UPSTREAM_RESOLVER_FAILURE"
	CodeUpstreamTransfer Code = "UPSTREAM_TRANSFER_FAILURE"

	// Storage errors
	CodeStorageFailure Code = "STORAGE_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden, CodeQuotaExhausted:
		return http.StatusForbidden
	case CodeSessionNotFound, CodeNoDestination:
		return http.StatusNotFound
	case CodeInvalidRequest,
		CodeSessionEnded,
		CodeCellRevealed,
		CodeCellOutOfRange,
		CodeNothingRevealed,
		CodeNotWon,
		CodeAlreadyClaimed,
		CodeNothingToSettle:
		return http.StatusBadRequest
	case CodeConflict, CodeSettlementInProgress:
		return http.StatusConflict
	case CodeUpstreamResolver, CodeUpstreamTransfer:
		return http.StatusBadGateway
	case CodeConfigMissing, CodeConfigInvalid, CodeStorageFailure, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
