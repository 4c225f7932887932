package errors

import "net/http"

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every layer.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_004"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_005"
	ErrCodeTimeout            ErrorCode = "COMMON_006"
	ErrCodeValidation         ErrorCode = "COMMON_007"
	ErrCodeSerialization      ErrorCode = "COMMON_008"
	ErrCodeCacheError         ErrorCode = "COMMON_009"
	ErrCodeExternalService    ErrorCode = "COMMON_010"
)

// Query-understanding error codes.
const (
	// ErrCodeQueryEmpty is returned when the raw query normalizes to nothing.
	ErrCodeQueryEmpty ErrorCode = "QRY_001"

	// ErrCodeQueryTooLong is returned when the raw query exceeds the configured
	// maximum length.
	ErrCodeQueryTooLong ErrorCode = "QRY_002"

	// ErrCodeNoSignal marks the outcome where the pipeline produced zero
	// entities AND the supplied candidate pool was empty. Callers must be able
	// to distinguish this from a valid query with genuinely zero results.
	ErrCodeNoSignal ErrorCode = "QRY_003"

	// Probabilistic-extractor adapter reason codes. These never surface as
	// request failures; they are reported on the degraded (empty) stage result
	// and in logs.
	ErrCodeExtractorTimeout     ErrorCode = "QRY_010"
	ErrCodeExtractorBadResponse ErrorCode = "QRY_011"
	ErrCodeExtractorAuth        ErrorCode = "QRY_012"
	ErrCodeExtractorQuota       ErrorCode = "QRY_013"
	ErrCodeExtractorUnavailable ErrorCode = "QRY_014"
)

// Ranking error codes.
const (
	ErrCodeCandidateInvalid ErrorCode = "RANK_001"
	ErrCodeRankConfig       ErrorCode = "RANK_002"
)

// Infrastructure error codes.
const (
	ErrCodePublishFailed ErrorCode = "INFRA_001"
	ErrCodeConfigInvalid ErrorCode = "INFRA_002"
)

// CodeOK is the sentinel returned by GetCode for a nil error.
const CodeOK = ErrorCode("OK")

// CodeUnknown is returned by GetCode when the chain contains no *AppError.
const CodeUnknown = ErrorCode("UNKNOWN")

// Short aliases used throughout the codebase.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeTimeout      = ErrCodeTimeout
	CodeNoSignal     = ErrCodeNoSignal
)

// errorCodeHTTPStatus maps ErrorCodes to HTTP status codes for the interface
// layer. Codes absent from the map default to 500.
var errorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeQueryEmpty:         http.StatusBadRequest,
	ErrCodeQueryTooLong:       http.StatusBadRequest,
	ErrCodeCandidateInvalid:   http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeNoSignal:           http.StatusUnprocessableEntity,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
}

// HTTPStatus returns the HTTP status code associated with c.
func (c ErrorCode) HTTPStatus() int {
	if s, ok := errorCodeHTTPStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}
