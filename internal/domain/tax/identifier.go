package tax

import (
	"regexp"
	"strings"
)

// IdentifierLength is the fixed length of a tax registration identifier
const IdentifierLength = 15

// identifierPattern: 2-digit jurisdiction, 5 letters + 4 digits + 1 letter
// owner block, entity character, literal Z, checksum character.
var identifierPattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

const checksumAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Identifier is a validated tax registration identifier (GSTIN).
// The zero value is not a valid identifier; use ParseIdentifier.
type Identifier struct {
	raw          string
	jurisdiction Jurisdiction
}

// ParseIdentifier validates a tax identifier and extracts its parts.
// Surrounding whitespace is ignored and letters are upper-cased before matching.
func ParseIdentifier(value string) (Identifier, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	if !identifierPattern.MatchString(normalized) {
		return Identifier{}, newError(CodeInvalidFormat, "tax identifier %q does not match the required %d-character format", value, IdentifierLength)
	}
	jurisdiction, ok := ResolveJurisdiction(normalized[:2])
	if !ok {
		return Identifier{}, newError(CodeUnknownJurisdiction, "tax identifier %q has unknown jurisdiction code %s", value, normalized[:2])
	}
	return Identifier{raw: normalized, jurisdiction: jurisdiction}, nil
}

// String returns the normalized identifier
func (id Identifier) String() string {
	return id.raw
}

// IsZero reports whether the identifier was never parsed
func (id Identifier) IsZero() bool {
	return id.raw == ""
}

// JurisdictionCode returns the two-digit jurisdiction code
func (id Identifier) JurisdictionCode() string {
	return id.jurisdiction.Code
}

// Jurisdiction returns the resolved region
func (id Identifier) Jurisdiction() Jurisdiction {
	return id.jurisdiction
}

// OwnerKey returns the 10-character identity block of the registered owner
func (id Identifier) OwnerKey() string {
	if id.IsZero() {
		return ""
	}
	return id.raw[2:12]
}

// EntityDigit returns the registration number of the entity under the same owner
func (id Identifier) EntityDigit() string {
	if id.IsZero() {
		return ""
	}
	return id.raw[12:13]
}

// Checksum returns the trailing check character
func (id Identifier) Checksum() string {
	if id.IsZero() {
		return ""
	}
	return id.raw[14:15]
}

// ChecksumValid verifies the trailing check character using the base-36
// weighted sum over the first 14 characters.
func (id Identifier) ChecksumValid() bool {
	if id.IsZero() {
		return false
	}
	return computeChecksum(id.raw[:14]) == id.raw[14]
}

func computeChecksum(body string) byte {
	sum := 0
	for i := 0; i < len(body); i++ {
		value := strings.IndexByte(checksumAlphabet, body[i])
		factor := 1
		if i%2 == 1 {
			factor = 2
		}
		product := value * factor
		sum += product/36 + product%36
	}
	return checksumAlphabet[(36-sum%36)%36]
}
