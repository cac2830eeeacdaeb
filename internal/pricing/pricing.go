package pricing

import (
	"errors"
	"fmt"

	"docmarket/internal/catalog"
)

// Discount and tax policy. Percentages are integers so every amount stays in
// exact integer minor units until the single final rounding per figure.
const (
	BulkThreshold       = 5
	BulkDiscountPercent = 15
	TaxPercent          = 18
)

var ErrInvalidQuantity = errors.New("quantity must be at least 1")

// Item is one requested entry: a document (possibly a placeholder id for a
// not-yet-uploaded file), its catalog type, the service tier, and a quantity.
type Item struct {
	DocumentID     string `json:"document_id"`
	DocumentTypeID string `json:"document_type_id"`
	Tier           string `json:"tier"`
	Quantity       int    `json:"quantity"`
}

// Line is one priced item of a breakdown. LineAmount is authoritative; it is
// rounded once from the exact product, so it can differ from
// UnitAmount×Quantity by at most the final rounding step.
type Line struct {
	DocumentID     string `json:"document_id"`
	DocumentTypeID string `json:"document_type_id"`
	Tier           string `json:"tier"`
	Quantity       int    `json:"quantity"`
	UnitAmount     int64  `json:"unit_amount_minor"`
	LineAmount     int64  `json:"line_amount_minor"`
}

// Breakdown is the full cost computation for an item list, in integer minor
// units. Subtotal, BulkDiscount, Tax and Total are each rounded independently.
type Breakdown struct {
	Lines         []Line `json:"lines"`
	TotalQuantity int    `json:"total_quantity"`
	Subtotal      int64  `json:"subtotal_minor"`
	BulkDiscount  int64  `json:"bulk_discount_minor"`
	Tax           int64  `json:"tax_minor"`
	Total         int64  `json:"total_minor"`
	Currency      string `json:"currency"`
}

// Calculator prices item lists against a fixed catalog. It is stateless and
// safe for concurrent use; identical inputs always produce identical outputs.
type Calculator struct {
	catalog *catalog.Catalog
}

func NewCalculator(c *catalog.Catalog) *Calculator {
	return &Calculator{catalog: c}
}

// roundHalfUpDiv divides a non-negative numerator with round-half-up.
func roundHalfUpDiv(n, d int64) int64 {
	return (n + d/2) / d
}

// Price returns the charge for quantity units of a document type at a tier.
// Rounding happens once on the full product, never per unit, so multi-unit
// lines do not compound rounding error.
func (p *Calculator) Price(documentTypeID, tier string, quantity int) (int64, error) {
	if quantity < 1 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	dt, err := p.catalog.DocumentType(documentTypeID)
	if err != nil {
		return 0, err
	}
	t, err := p.catalog.Tier(tier)
	if err != nil {
		return 0, err
	}
	return roundHalfUpDiv(dt.BasePrice*t.MultiplierPercent*int64(quantity), 100), nil
}

// CalculateOrderTotal prices every item and assembles the order breakdown.
// Any unresolvable item rejects the whole order; silently dropping a line
// would change the user's charged total without their knowledge.
//
// An empty item list yields an all-zero breakdown; callers must refuse to
// create a zero-value order.
func (p *Calculator) CalculateOrderTotal(items []Item) (*Breakdown, error) {
	b := &Breakdown{
		Lines:    make([]Line, 0, len(items)),
		Currency: p.catalog.Currency,
	}

	for _, it := range items {
		if it.Quantity < 1 {
			return nil, fmt.Errorf("%w: item %s has quantity %d", ErrInvalidQuantity, it.DocumentTypeID, it.Quantity)
		}
		dt, err := p.catalog.DocumentType(it.DocumentTypeID)
		if err != nil {
			return nil, err
		}
		t, err := p.catalog.Tier(it.Tier)
		if err != nil {
			return nil, err
		}

		unit := roundHalfUpDiv(dt.BasePrice*t.MultiplierPercent, 100)
		line := roundHalfUpDiv(dt.BasePrice*t.MultiplierPercent*int64(it.Quantity), 100)

		b.Lines = append(b.Lines, Line{
			DocumentID:     it.DocumentID,
			DocumentTypeID: it.DocumentTypeID,
			Tier:           it.Tier,
			Quantity:       it.Quantity,
			UnitAmount:     unit,
			LineAmount:     line,
		})
		b.TotalQuantity += it.Quantity
		b.Subtotal += line
	}

	if b.TotalQuantity >= BulkThreshold {
		b.BulkDiscount = roundHalfUpDiv(b.Subtotal*BulkDiscountPercent, 100)
	}

	taxable := b.Subtotal - b.BulkDiscount
	b.Tax = roundHalfUpDiv(taxable*TaxPercent, 100)
	b.Total = taxable + b.Tax

	return b, nil
}
