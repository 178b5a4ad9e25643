package matching

// DiscrepancyType classifies a disagreement between documents
type DiscrepancyType string

const (
	DiscrepancyItemMismatch     DiscrepancyType = "ITEM_MISMATCH"
	DiscrepancyQuantityMismatch DiscrepancyType = "QUANTITY_MISMATCH"
	DiscrepancyRateMismatch     DiscrepancyType = "RATE_MISMATCH"
)

// IsValid checks if the discrepancy type is valid
func (t DiscrepancyType) IsValid() bool {
	switch t {
	case DiscrepancyItemMismatch, DiscrepancyQuantityMismatch, DiscrepancyRateMismatch:
		return true
	}
	return false
}

// Severity ranks a discrepancy
type Severity string

const (
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// IsValid checks if the severity is valid
func (s Severity) IsValid() bool {
	return s == SeverityMedium || s == SeverityHigh
}

// Discrepancy is a data-level finding, not an error
type Discrepancy struct {
	Type        DiscrepancyType `json:"type"`
	Severity    Severity        `json:"severity"`
	Description string          `json:"description"`
	ItemKey     string          `json:"item_key,omitempty"` // empty for document-level findings
}

// Status is the overall outcome of a three-way match
type Status string

const (
	StatusMatched          Status = "MATCHED"
	StatusPartiallyMatched Status = "PARTIALLY_MATCHED"
	StatusMismatched       Status = "MISMATCHED"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusMatched, StatusPartiallyMatched, StatusMismatched:
		return true
	}
	return false
}

// String returns the string representation
func (s Status) String() string {
	return string(s)
}

// MatchResult is the output of a three-way match
type MatchResult struct {
	Status        Status
	MatchedItems  int
	TotalItems    int
	Discrepancies []Discrepancy
	Summary       string
}

// HighSeverityCount returns the number of HIGH discrepancies
func (r *MatchResult) HighSeverityCount() int {
	count := 0
	for _, d := range r.Discrepancies {
		if d.Severity == SeverityHigh {
			count++
		}
	}
	return count
}
