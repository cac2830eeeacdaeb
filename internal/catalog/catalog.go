package catalog

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownDocumentType = errors.New("unknown document type")
	ErrUnknownTier         = errors.New("unknown pricing tier")
)

// DocumentType is a deploy-time catalog entry. BasePrice is in integer minor
// units of the catalog currency. Entries are never mutated by request handling.
type DocumentType struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	BasePrice      int64  `json:"base_price_minor"`
	RequiresUDIN   bool   `json:"requires_udin"`
	ProcessingDays int    `json:"processing_days"`
}

// Tier is a service-speed price multiplier expressed in percent, so the
// arithmetic downstream stays integral (standard 100, express 150, premium 200).
type Tier struct {
	Name              string `json:"name"`
	MultiplierPercent int64  `json:"multiplier_percent"`
}

// Catalog holds the reference data pricing operates over. It is built once at
// startup, validated, and treated as read-only afterwards.
type Catalog struct {
	Currency string

	types map[string]DocumentType
	tiers map[string]Tier

	typeOrder []string
	tierOrder []string
}

// New builds a catalog from the given entries. Call Validate before use.
func New(currency string, types []DocumentType, tiers []Tier) *Catalog {
	c := &Catalog{
		Currency: currency,
		types:    make(map[string]DocumentType, len(types)),
		tiers:    make(map[string]Tier, len(tiers)),
	}
	for _, dt := range types {
		if _, ok := c.types[dt.ID]; !ok {
			c.typeOrder = append(c.typeOrder, dt.ID)
		}
		c.types[dt.ID] = dt
	}
	for _, t := range tiers {
		if _, ok := c.tiers[t.Name]; !ok {
			c.tierOrder = append(c.tierOrder, t.Name)
		}
		c.tiers[t.Name] = t
	}
	return c
}

// Validate fails fast on configuration errors. A non-positive price or
// multiplier is a deployment mistake, not a runtime condition to recover from.
func (c *Catalog) Validate() error {
	if c.Currency == "" {
		return fmt.Errorf("catalog: currency is required")
	}
	if len(c.types) == 0 {
		return fmt.Errorf("catalog: no document types defined")
	}
	if len(c.tiers) == 0 {
		return fmt.Errorf("catalog: no pricing tiers defined")
	}
	for id, dt := range c.types {
		if dt.BasePrice <= 0 {
			return fmt.Errorf("catalog: document type %q has non-positive base price %d", id, dt.BasePrice)
		}
		if dt.Name == "" {
			return fmt.Errorf("catalog: document type %q has empty name", id)
		}
	}
	for name, t := range c.tiers {
		if t.MultiplierPercent <= 0 {
			return fmt.Errorf("catalog: tier %q has non-positive multiplier %d", name, t.MultiplierPercent)
		}
	}
	return nil
}

// DocumentType returns the catalog entry for the given id.
func (c *Catalog) DocumentType(id string) (DocumentType, error) {
	dt, ok := c.types[id]
	if !ok {
		return DocumentType{}, fmt.Errorf("%w: %s", ErrUnknownDocumentType, id)
	}
	return dt, nil
}

// Tier returns the tier with the given name.
func (c *Catalog) Tier(name string) (Tier, error) {
	t, ok := c.tiers[name]
	if !ok {
		return Tier{}, fmt.Errorf("%w: %s", ErrUnknownTier, name)
	}
	return t, nil
}

// DocumentTypes lists entries in their declaration order.
func (c *Catalog) DocumentTypes() []DocumentType {
	out := make([]DocumentType, 0, len(c.typeOrder))
	for _, id := range c.typeOrder {
		out = append(out, c.types[id])
	}
	return out
}

// Tiers lists tiers in their declaration order.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, 0, len(c.tierOrder))
	for _, name := range c.tierOrder {
		out = append(out, c.tiers[name])
	}
	return out
}
