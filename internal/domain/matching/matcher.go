package matching

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Matcher performs three-way matching between a purchase order, a receipt
// confirmation and an invoice. A Matcher holds no mutable state and is safe
// for concurrent use.
type Matcher struct {
	tolerances Tolerances
	keyer      ItemKeyer
}

// MatcherOption configures a Matcher
type MatcherOption func(*Matcher)

// WithTolerances replaces the default tolerances
func WithTolerances(t Tolerances) MatcherOption {
	return func(m *Matcher) {
		m.tolerances = t
	}
}

// WithKeyer replaces the description-based fallback keyer
func WithKeyer(k ItemKeyer) MatcherOption {
	return func(m *Matcher) {
		if k != nil {
			m.keyer = k
		}
	}
}

// NewMatcher creates a matcher with DefaultTolerances and DescriptionKeyer
func NewMatcher(opts ...MatcherOption) *Matcher {
	m := &Matcher{
		tolerances: DefaultTolerances(),
		keyer:      DescriptionKeyer{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Tolerances returns the thresholds in effect
func (m *Matcher) Tolerances() Tolerances {
	return m.tolerances
}

// itemIndex locates document lines by line reference first and by
// fallback key second. Each line is claimed at most once. When both sides
// carry a line reference, only an equal reference can match.
type itemIndex struct {
	items []ItemView
	keys  []string
	refs  []string
	byRef map[string][]int
	byKey map[string][]int
	used  []bool
}

func newItemIndex(items []ItemView, keyer ItemKeyer) *itemIndex {
	idx := &itemIndex{
		items: items,
		keys:  make([]string, len(items)),
		refs:  make([]string, len(items)),
		byRef: make(map[string][]int, len(items)),
		byKey: make(map[string][]int, len(items)),
		used:  make([]bool, len(items)),
	}
	for i, item := range items {
		key := keyer.ItemKey(item.Description)
		ref := strings.TrimSpace(item.LineRef)
		idx.keys[i] = key
		idx.refs[i] = ref
		if ref != "" {
			idx.byRef[ref] = append(idx.byRef[ref], i)
		}
		idx.byKey[key] = append(idx.byKey[key], i)
	}
	return idx
}

func (idx *itemIndex) find(ref, key string) (ItemView, bool) {
	if ref != "" {
		if i, ok := idx.claim(idx.byRef[ref], ""); ok {
			return idx.items[i], true
		}
	}
	if i, ok := idx.claim(idx.byKey[key], ref); ok {
		return idx.items[i], true
	}
	return ItemView{}, false
}

// claim marks and returns the first unused candidate. A non-empty ref
// excludes candidates that carry a line reference of their own.
func (idx *itemIndex) claim(candidates []int, ref string) (int, bool) {
	for _, i := range candidates {
		if idx.used[i] || (ref != "" && idx.refs[i] != "") {
			continue
		}
		idx.used[i] = true
		return i, true
	}
	return 0, false
}

// Match compares the three documents and returns the match status with the
// discrepancies found. Business mismatches are reported as discrepancies;
// the only error is a missing document.
func (m *Matcher) Match(po *PurchaseOrderView, receipt *ReceiptView, invoice *InvoiceView) (*MatchResult, error) {
	if err := requireDocuments(po, receipt, invoice); err != nil {
		return nil, err
	}

	receiptIdx := newItemIndex(receipt.Items, m.keyer)
	invoiceIdx := newItemIndex(invoice.Items, m.keyer)

	discrepancies := m.structuralChecks(po, receipt, invoice)
	matched := 0

	for _, poItem := range po.Items {
		ref := strings.TrimSpace(poItem.LineRef)
		key := m.keyer.ItemKey(poItem.Description)
		label := itemLabel(poItem)

		receiptItem, inReceipt := receiptIdx.find(ref, key)
		invoiceItem, inInvoice := invoiceIdx.find(ref, key)

		if !inReceipt {
			discrepancies = append(discrepancies, Discrepancy{
				Type:        DiscrepancyItemMismatch,
				Severity:    SeverityHigh,
				Description: fmt.Sprintf("Item %q was not found in the receipt confirmation", label),
				ItemKey:     key,
			})
			continue
		}
		if !inInvoice {
			discrepancies = append(discrepancies, Discrepancy{
				Type:        DiscrepancyItemMismatch,
				Severity:    SeverityMedium,
				Description: fmt.Sprintf("Item %q was not found in the invoice", label),
				ItemKey:     key,
			})
			continue
		}

		itemFindings, ok := m.compareItem(label, key, poItem, receiptItem, invoiceItem)
		discrepancies = append(discrepancies, itemFindings...)
		if ok {
			matched++
		}
	}

	for i, item := range invoiceIdx.items {
		if invoiceIdx.used[i] {
			continue
		}
		discrepancies = append(discrepancies, Discrepancy{
			Type:        DiscrepancyItemMismatch,
			Severity:    SeverityMedium,
			Description: fmt.Sprintf("Invoice item %q has no corresponding purchase order item", itemLabel(item)),
			ItemKey:     invoiceIdx.keys[i],
		})
	}

	if d, ok := m.checkTotals(po.TotalValue, invoice.TotalValue); !ok {
		discrepancies = append(discrepancies, d)
	}

	total := len(po.Items)
	result := &MatchResult{
		Status:        m.decideStatus(matched, total, len(discrepancies)),
		MatchedItems:  matched,
		TotalItems:    total,
		Discrepancies: discrepancies,
	}
	result.Summary = fmt.Sprintf("%d of %d items matched, %d discrepancies", matched, total, len(discrepancies))
	return result, nil
}

func requireDocuments(po *PurchaseOrderView, receipt *ReceiptView, invoice *InvoiceView) error {
	var missing []string
	if po == nil {
		missing = append(missing, "purchase order")
	}
	if receipt == nil {
		missing = append(missing, "receipt confirmation")
	}
	if invoice == nil {
		missing = append(missing, "invoice")
	}
	if len(missing) > 0 {
		return newError(CodeMissingDocument, "three-way matching is missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (m *Matcher) structuralChecks(po *PurchaseOrderView, receipt *ReceiptView, invoice *InvoiceView) []Discrepancy {
	var findings []Discrepancy

	if !sameReference(po.ReferenceNumber, receipt.PurchaseOrderReference) {
		findings = append(findings, Discrepancy{
			Type:     DiscrepancyItemMismatch,
			Severity: SeverityHigh,
			Description: fmt.Sprintf("Receipt references purchase order %q but the purchase order is %q",
				receipt.PurchaseOrderReference, po.ReferenceNumber),
		})
	}

	if strings.TrimSpace(invoice.PurchaseOrderReference) != "" &&
		!sameReference(po.ReferenceNumber, invoice.PurchaseOrderReference) {
		findings = append(findings, Discrepancy{
			Type:     DiscrepancyItemMismatch,
			Severity: SeverityHigh,
			Description: fmt.Sprintf("Invoice references purchase order %q but the purchase order is %q",
				invoice.PurchaseOrderReference, po.ReferenceNumber),
		})
	}

	if strings.TrimSpace(po.PartyIdentity) != "" &&
		!sameReference(po.PartyIdentity, invoice.PartyIdentity) {
		findings = append(findings, Discrepancy{
			Type:     DiscrepancyItemMismatch,
			Severity: SeverityHigh,
			Description: fmt.Sprintf("Invoice party %q does not match purchase order party %q",
				invoice.PartyIdentity, po.PartyIdentity),
		})
	}

	return findings
}

// compareItem checks quantity, rate and amount for a line present in all
// three documents. ok is true only when all three are within tolerance.
func (m *Matcher) compareItem(label, key string, poItem, receiptItem, invoiceItem ItemView) ([]Discrepancy, bool) {
	var findings []Discrepancy
	tol := m.tolerances

	qtyDiff := receiptItem.Quantity.Sub(invoiceItem.Quantity).Abs()
	qtyOK := qtyDiff.LessThanOrEqual(tol.QuantityTolerance)
	if !qtyOK {
		severity := SeverityMedium
		highThreshold := receiptItem.Quantity.Abs().Mul(tol.QuantityHighSeverityPercent).Div(hundred)
		if receiptItem.Quantity.IsZero() || qtyDiff.GreaterThan(highThreshold) {
			severity = SeverityHigh
		}
		findings = append(findings, Discrepancy{
			Type:     DiscrepancyQuantityMismatch,
			Severity: severity,
			Description: fmt.Sprintf("Quantity mismatch for %q: received %s, invoiced %s",
				label, receiptItem.Quantity.String(), invoiceItem.Quantity.String()),
			ItemKey: key,
		})
	}

	rateVariance := percentVariance(poItem.Rate, invoiceItem.Rate)
	rateOK := rateVariance.LessThanOrEqual(tol.RateTolerancePercent)
	if !rateOK {
		severity := SeverityMedium
		if rateVariance.GreaterThan(tol.RateHighSeverityPercent) {
			severity = SeverityHigh
		}
		findings = append(findings, Discrepancy{
			Type:     DiscrepancyRateMismatch,
			Severity: severity,
			Description: fmt.Sprintf("Rate mismatch for %q: ordered at %s, invoiced at %s (%s%% variance)",
				label, poItem.Rate.String(), invoiceItem.Rate.String(), rateVariance.StringFixed(2)),
			ItemKey: key,
		})
	}

	expected := receiptItem.Quantity.Mul(poItem.Rate)
	amountOK := percentVariance(expected, invoiceItem.Amount).LessThanOrEqual(tol.AmountTolerancePercent)

	return findings, qtyOK && rateOK && amountOK
}

func (m *Matcher) checkTotals(poTotal, invoiceTotal decimal.Decimal) (Discrepancy, bool) {
	variance := percentVariance(poTotal, invoiceTotal)
	if variance.LessThanOrEqual(m.tolerances.TotalTolerancePercent) {
		return Discrepancy{}, true
	}
	severity := SeverityMedium
	if variance.GreaterThan(m.tolerances.TotalHighSeverityPercent) {
		severity = SeverityHigh
	}
	return Discrepancy{
		Type:     DiscrepancyRateMismatch,
		Severity: severity,
		Description: fmt.Sprintf("Invoice total %s differs from purchase order total %s by %s%%",
			invoiceTotal.StringFixed(2), poTotal.StringFixed(2), variance.StringFixed(2)),
	}, false
}

func (m *Matcher) decideStatus(matched, total, discrepancyCount int) Status {
	if discrepancyCount == 0 && matched == total {
		return StatusMatched
	}
	if total == 0 {
		return StatusMismatched
	}
	ratio := decimal.NewFromInt(int64(matched)).Div(decimal.NewFromInt(int64(total)))
	if ratio.GreaterThanOrEqual(m.tolerances.PartialMatchRatio) {
		return StatusPartiallyMatched
	}
	return StatusMismatched
}

// percentVariance returns |expected - actual| / |expected| * 100. A zero
// expected value yields 0 when actual is also zero and 100 otherwise.
func percentVariance(expected, actual decimal.Decimal) decimal.Decimal {
	if expected.IsZero() {
		if actual.IsZero() {
			return decimal.Zero
		}
		return hundred
	}
	return expected.Sub(actual).Abs().Div(expected.Abs()).Mul(hundred)
}

func sameReference(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func itemLabel(item ItemView) string {
	if d := strings.TrimSpace(item.Description); d != "" {
		return d
	}
	return item.LineRef
}
