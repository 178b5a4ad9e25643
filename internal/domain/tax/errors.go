package tax

import (
	"fmt"

	"github.com/erp/gstbilling/internal/domain/shared"
)

// Error codes surfaced by the tax computation core. All of them are fatal:
// an invoice cannot carry tax figures computed from invalid input.
const (
	CodeInvalidFormat           = "INVALID_FORMAT"
	CodeUnknownJurisdiction     = "UNKNOWN_JURISDICTION"
	CodeInvalidSellerIdentifier = "INVALID_SELLER_IDENTIFIER"
	CodeInvalidBuyerIdentifier  = "INVALID_BUYER_IDENTIFIER"
	CodeInvalidLineItem         = "INVALID_LINE_ITEM"
	CodeUnsupportedTaxRate      = "UNSUPPORTED_TAX_RATE"
	CodeInvalidChecksum         = "INVALID_CHECKSUM"
)

// Sentinels for errors.Is matching. Errors returned by this package carry a
// detailed message but compare equal to these by code.
var (
	ErrInvalidFormat           = shared.NewDomainError(CodeInvalidFormat, "Tax identifier has an invalid format")
	ErrUnknownJurisdiction     = shared.NewDomainError(CodeUnknownJurisdiction, "Tax identifier jurisdiction code is unknown")
	ErrInvalidSellerIdentifier = shared.NewDomainError(CodeInvalidSellerIdentifier, "Seller tax identifier is invalid")
	ErrInvalidBuyerIdentifier  = shared.NewDomainError(CodeInvalidBuyerIdentifier, "Buyer tax identifier is invalid")
	ErrInvalidLineItem         = shared.NewDomainError(CodeInvalidLineItem, "Line item is invalid")
	ErrUnsupportedTaxRate      = shared.NewDomainError(CodeUnsupportedTaxRate, "Tax rate is not supported")
	ErrInvalidChecksum         = shared.NewDomainError(CodeInvalidChecksum, "Tax identifier checksum does not match")
)

func newError(code, format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(code, fmt.Sprintf(format, args...))
}
