package tax

import "strings"

// TransactionKind categorizes a sale for tax purposes
type TransactionKind string

const (
	// KindUnregisteredConsumer is a sale to a buyer with no tax identifier
	KindUnregisteredConsumer TransactionKind = "UNREGISTERED_CONSUMER"
	// KindSameRegionB2B is a sale between registered parties in one jurisdiction
	KindSameRegionB2B TransactionKind = "SAME_REGION_B2B"
	// KindCrossRegionB2B is a sale between registered parties in different jurisdictions
	KindCrossRegionB2B TransactionKind = "CROSS_REGION_B2B"
)

// Split selects whether tax is levied as two equal halves or a single integrated levy
type Split string

const (
	// SplitDual levies central and state halves (CGST + SGST)
	SplitDual Split = "DUAL"
	// SplitSingle levies one integrated amount (IGST)
	SplitSingle Split = "SINGLE"
)

// UnregisteredRegion is reported as the buyer region when the buyer has no identifier
const UnregisteredRegion = "unregistered"

// TransactionContext is the result of classifying a seller/buyer pair
type TransactionContext struct {
	Kind          TransactionKind
	IsCrossRegion bool
	Split         Split
	Seller        Identifier
	Buyer         *Identifier
	SellerRegion  string
	BuyerRegion   string
}

// HasRegisteredBuyer reports whether the buyer carries a tax identifier
func (c TransactionContext) HasRegisteredBuyer() bool {
	return c.Buyer != nil
}

// Classify determines the transaction kind and tax split for a seller and an
// optional buyer. An absent or blank buyer identifier is an unregistered
// consumer sale, which always uses the dual split.
func Classify(seller string, buyer *string) (TransactionContext, error) {
	return classify(seller, buyer, false)
}

func classify(seller string, buyer *string, strictChecksum bool) (TransactionContext, error) {
	sellerID, err := parseParty(seller, strictChecksum)
	if err != nil {
		return TransactionContext{}, newError(CodeInvalidSellerIdentifier, "invalid seller tax identifier: %s", err.Error())
	}

	ctx := TransactionContext{
		Seller:       sellerID,
		SellerRegion: sellerID.Jurisdiction().Name,
	}

	if buyer == nil || strings.TrimSpace(*buyer) == "" {
		ctx.Kind = KindUnregisteredConsumer
		ctx.Split = SplitDual
		ctx.BuyerRegion = UnregisteredRegion
		return ctx, nil
	}

	buyerID, err := parseParty(*buyer, strictChecksum)
	if err != nil {
		return TransactionContext{}, newError(CodeInvalidBuyerIdentifier, "invalid buyer tax identifier: %s", err.Error())
	}
	ctx.Buyer = &buyerID
	ctx.BuyerRegion = buyerID.Jurisdiction().Name

	if sellerID.JurisdictionCode() == buyerID.JurisdictionCode() {
		ctx.Kind = KindSameRegionB2B
		ctx.Split = SplitDual
		return ctx, nil
	}

	ctx.Kind = KindCrossRegionB2B
	ctx.IsCrossRegion = true
	ctx.Split = SplitSingle
	return ctx, nil
}

func parseParty(value string, strictChecksum bool) (Identifier, error) {
	id, err := ParseIdentifier(value)
	if err != nil {
		return Identifier{}, err
	}
	if strictChecksum && !id.ChecksumValid() {
		return Identifier{}, newError(CodeInvalidChecksum, "tax identifier %s has an invalid check character", id.String())
	}
	return id, nil
}
