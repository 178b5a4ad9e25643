package dto

import (
	"net/http"
	"strings"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
)

// Request error codes
const (
	ErrCodeValidation      = "ERR_VALIDATION"
	ErrCodeBadRequest      = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput    = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON     = "ERR_INVALID_JSON"
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Resource error codes
const (
	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConflict            = "ERR_CONFLICT"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
	ErrCodeDuplicateRequest    = "ERR_DUPLICATE_REQUEST"
	ErrCodeInvalidState        = "ERR_INVALID_STATE"
)

// Tax computation error codes. Every one of them rejects the whole document.
const (
	ErrCodeTaxInvalidFormat       = "ERR_TAX_INVALID_FORMAT"
	ErrCodeTaxUnknownJurisdiction = "ERR_TAX_UNKNOWN_JURISDICTION"
	ErrCodeTaxInvalidSeller       = "ERR_TAX_INVALID_SELLER_IDENTIFIER"
	ErrCodeTaxInvalidBuyer        = "ERR_TAX_INVALID_BUYER_IDENTIFIER"
	ErrCodeTaxInvalidLineItem     = "ERR_TAX_INVALID_LINE_ITEM"
	ErrCodeTaxUnsupportedRate     = "ERR_TAX_UNSUPPORTED_RATE"
	ErrCodeTaxInvalidChecksum     = "ERR_TAX_INVALID_CHECKSUM"
)

// Matching error codes
const (
	ErrCodeMatchMissingDocument = "ERR_MATCH_MISSING_DOCUMENT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,
	ErrCodeDuplicateRequest:    http.StatusConflict,
	ErrCodeInvalidState:        http.StatusUnprocessableEntity,

	ErrCodeTaxInvalidFormat:       http.StatusUnprocessableEntity,
	ErrCodeTaxUnknownJurisdiction: http.StatusUnprocessableEntity,
	ErrCodeTaxInvalidSeller:       http.StatusUnprocessableEntity,
	ErrCodeTaxInvalidBuyer:        http.StatusUnprocessableEntity,
	ErrCodeTaxInvalidLineItem:     http.StatusUnprocessableEntity,
	ErrCodeTaxUnsupportedRate:     http.StatusUnprocessableEntity,
	ErrCodeTaxInvalidChecksum:     http.StatusUnprocessableEntity,

	ErrCodeMatchMissingDocument: http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unlisted ERR_INVALID_* codes are input errors; anything else is a 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	if strings.HasPrefix(code, "ERR_INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                 ErrCodeNotFound,
	"ALREADY_EXISTS":            ErrCodeAlreadyExists,
	"INVALID_INPUT":             ErrCodeInvalidInput,
	"INVALID_STATE":             ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":      ErrCodeConcurrencyConflict,
	"DUPLICATE_REQUEST":         ErrCodeDuplicateRequest,
	"VALIDATION_ERROR":          ErrCodeValidation,
	"BAD_REQUEST":               ErrCodeBadRequest,
	"INTERNAL_ERROR":            ErrCodeInternal,
	"INVALID_FORMAT":            ErrCodeTaxInvalidFormat,
	"UNKNOWN_JURISDICTION":      ErrCodeTaxUnknownJurisdiction,
	"INVALID_SELLER_IDENTIFIER": ErrCodeTaxInvalidSeller,
	"INVALID_BUYER_IDENTIFIER":  ErrCodeTaxInvalidBuyer,
	"INVALID_LINE_ITEM":         ErrCodeTaxInvalidLineItem,
	"UNSUPPORTED_TAX_RATE":      ErrCodeTaxUnsupportedRate,
	"INVALID_CHECKSUM":          ErrCodeTaxInvalidChecksum,
	"MISSING_DOCUMENT":          ErrCodeMatchMissingDocument,
}

// NormalizeErrorCode converts a domain error code to its API form.
// Unmapped codes are prefixed with ERR_ so clients see one naming scheme.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	if code == "" {
		return ErrCodeUnknown
	}
	if strings.HasPrefix(code, "ERR_") {
		return code
	}
	return "ERR_" + code
}
