package matching

import (
	"fmt"

	"github.com/erp/gstbilling/internal/domain/shared"
)

const (
	CodeMissingDocument   = "MISSING_DOCUMENT"
	CodeInvalidTolerances = "INVALID_TOLERANCES"
)

var (
	ErrMissingDocument   = shared.NewDomainError(CodeMissingDocument, "Three-way matching requires a purchase order, a receipt and an invoice")
	ErrInvalidTolerances = shared.NewDomainError(CodeInvalidTolerances, "Matching tolerances are invalid")
)

func newError(code, format string, args ...any) *shared.DomainError {
	return shared.NewDomainError(code, fmt.Sprintf(format, args...))
}
