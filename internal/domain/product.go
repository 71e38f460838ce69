package domain

import (
	"encoding/json"
	"slices"
	"time"
)

// Product is the catalogue aggregate.
type Product struct {
	id          ProductID
	name        ProductName
	description string
	price       Price
	category    Category
	inventory   Inventory
	rating      Rating
	images      []string
	tags        []string
	isActive    bool
	createdAt   time.Time
	updatedAt   time.Time
	metadata    map[string]string
}

// NewProductParams contains the data needed to create a new product.
type NewProductParams struct {
	ID          string
	Name        string
	Description string
	Price       float64
	Currency    string
	Category    Category
	Quantity    int

	Images   []string
	Tags     []string
	Metadata map[string]string

	// Now defaults to the current time.
	Now time.Time
}

// NewProduct creates an active product with an empty rating.
func NewProduct(p NewProductParams) (*Product, error) {
	id, err := NewProductID(p.ID)
	if err != nil {
		return nil, err
	}
	name, err := NewProductName(p.Name)
	if err != nil {
		return nil, err
	}
	price, err := NewPrice(p.Price, p.Currency)
	if err != nil {
		return nil, err
	}
	category, err := p.Category.Validate()
	if err != nil {
		return nil, err
	}
	inventory, err := NewStock(p.Quantity)
	if err != nil {
		return nil, err
	}

	now := p.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	return &Product{
		id:          id,
		name:        name,
		description: p.Description,
		price:       price,
		category:    category,
		inventory:   inventory,
		images:      cloneStrings(p.Images),
		tags:        cloneStrings(p.Tags),
		isActive:    true,
		createdAt:   now,
		updatedAt:   now,
		metadata:    cloneMetadata(p.Metadata),
	}, nil
}

func (p *Product) ID() ProductID        { return p.id }
func (p *Product) Name() ProductName    { return p.name }
func (p *Product) Description() string  { return p.description }
func (p *Product) Price() Price         { return p.price }
func (p *Product) Category() Category   { return p.category }
func (p *Product) Inventory() Inventory { return p.inventory }
func (p *Product) Rating() Rating       { return p.rating }
func (p *Product) IsActive() bool       { return p.isActive }
func (p *Product) CreatedAt() time.Time { return p.createdAt }
func (p *Product) UpdatedAt() time.Time { return p.updatedAt }

func (p *Product) Images() []string            { return cloneStrings(p.images) }
func (p *Product) Tags() []string              { return cloneStrings(p.tags) }
func (p *Product) Metadata() map[string]string { return cloneMetadata(p.metadata) }

// HasTag reports whether the product carries tag.
func (p *Product) HasTag(tag string) bool { return slices.Contains(p.tags, tag) }

// IsInStock reports whether any unit is available.
func (p *Product) IsInStock() bool { return !p.inventory.IsOutOfStock() }

// StockValue returns price times quantity on hand.
func (p *Product) StockValue() float64 {
	return p.price.Amount() * float64(p.inventory.Quantity())
}

func (p *Product) clone(at time.Time) *Product {
	c := *p
	c.images = cloneStrings(p.images)
	c.tags = cloneStrings(p.tags)
	c.metadata = cloneMetadata(p.metadata)
	c.updatedAt = at.UTC()
	return &c
}

func (p *Product) WithInventory(inv Inventory, at time.Time) *Product {
	c := p.clone(at)
	c.inventory = inv
	return c
}

func (p *Product) WithRating(r Rating, at time.Time) *Product {
	c := p.clone(at)
	c.rating = r
	return c
}

func (p *Product) WithPrice(price Price, at time.Time) *Product {
	c := p.clone(at)
	c.price = price
	return c
}

func (p *Product) WithActive(active bool, at time.Time) *Product {
	c := p.clone(at)
	c.isActive = active
	return c
}

func (p *Product) WithName(name ProductName, at time.Time) *Product {
	c := p.clone(at)
	c.name = name
	return c
}

func (p *Product) WithDescription(description string, at time.Time) *Product {
	c := p.clone(at)
	c.description = description
	return c
}

// WithCategory validates the category before applying it.
func (p *Product) WithCategory(category Category, at time.Time) (*Product, error) {
	cat, err := category.Validate()
	if err != nil {
		return nil, err
	}
	c := p.clone(at)
	c.category = cat
	return c, nil
}

func (p *Product) WithTags(tags []string, at time.Time) *Product {
	c := p.clone(at)
	c.tags = cloneStrings(tags)
	return c
}

func (p *Product) WithImages(images []string, at time.Time) *Product {
	c := p.clone(at)
	c.images = cloneStrings(images)
	return c
}

func (p *Product) WithMetadata(metadata map[string]string, at time.Time) *Product {
	c := p.clone(at)
	c.metadata = cloneMetadata(metadata)
	return c
}

// =============================================================================
// Records
// =============================================================================

// ProductRecord is the loosely typed, serializable form of a Product.
type ProductRecord struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug,omitempty"`
	Description string            `json:"description"`
	Price       PriceRecord       `json:"price"`
	Category    Category          `json:"category"`
	Inventory   InventoryRecord   `json:"inventory"`
	Rating      RatingRecord      `json:"rating"`
	Images      []string          `json:"images"`
	Tags        []string          `json:"tags"`
	IsActive    bool              `json:"is_active"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Metadata    map[string]string `json:"metadata"`
}

// PriceRecord is the serializable form of a Price.
type PriceRecord struct {
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Formatted string  `json:"formatted,omitempty"`
}

// InventoryRecord is the serializable form of an Inventory.
// A nil threshold means the default.
type InventoryRecord struct {
	Quantity          int  `json:"quantity"`
	Reserved          int  `json:"reserved"`
	LowStockThreshold *int `json:"low_stock_threshold,omitempty"`
	Available         int  `json:"available"`
}

// RatingRecord is the serializable form of a Rating.
type RatingRecord struct {
	Average      float64     `json:"average"`
	Count        int         `json:"count"`
	Distribution map[int]int `json:"distribution,omitempty"`
}

// Record converts the product into its serializable form.
// Derived fields (slug, formatted price, available) are informational only.
func (p *Product) Record() ProductRecord {
	threshold := p.inventory.lowStockThreshold
	return ProductRecord{
		ID:          p.id.String(),
		Name:        p.name.String(),
		Slug:        p.name.Slug(),
		Description: p.description,
		Price: PriceRecord{
			Amount:    p.price.amount,
			Currency:  p.price.currency,
			Formatted: p.price.Format(),
		},
		Category: p.category,
		Inventory: InventoryRecord{
			Quantity:          p.inventory.quantity,
			Reserved:          p.inventory.reserved,
			LowStockThreshold: &threshold,
			Available:         p.inventory.Available(),
		},
		Rating: RatingRecord{
			Average:      p.rating.average,
			Count:        p.rating.count,
			Distribution: p.rating.Distribution(),
		},
		Images:    p.Images(),
		Tags:      p.Tags(),
		IsActive:  p.isActive,
		CreatedAt: p.createdAt,
		UpdatedAt: p.updatedAt,
		Metadata:  p.Metadata(),
	}
}

// MarshalJSON implements json.Marshaler.
func (p *Product) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Record())
}

// ProductFromRecord rebuilds a Product, running every value-object validation again.
func ProductFromRecord(rec ProductRecord) (*Product, error) {
	id, err := NewProductID(rec.ID)
	if err != nil {
		return nil, err
	}
	name, err := NewProductName(rec.Name)
	if err != nil {
		return nil, err
	}
	price, err := NewPrice(rec.Price.Amount, rec.Price.Currency)
	if err != nil {
		return nil, err
	}
	category, err := rec.Category.Validate()
	if err != nil {
		return nil, err
	}
	threshold := DefaultLowStockThreshold
	if rec.Inventory.LowStockThreshold != nil {
		threshold = *rec.Inventory.LowStockThreshold
	}
	inventory, err := NewInventory(rec.Inventory.Quantity, rec.Inventory.Reserved, threshold)
	if err != nil {
		return nil, err
	}
	rating, err := NewRating(rec.Rating.Average, rec.Rating.Count, rec.Rating.Distribution)
	if err != nil {
		return nil, err
	}
	if rec.CreatedAt.IsZero() {
		return nil, NewDomainError(ErrValidation, "created_at is required", rec.ID)
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = rec.CreatedAt
	}

	return &Product{
		id:          id,
		name:        name,
		description: rec.Description,
		price:       price,
		category:    category,
		inventory:   inventory,
		rating:      rating,
		images:      cloneStrings(rec.Images),
		tags:        cloneStrings(rec.Tags),
		isActive:    rec.IsActive,
		createdAt:   rec.CreatedAt.UTC(),
		updatedAt:   updatedAt.UTC(),
		metadata:    cloneMetadata(rec.Metadata),
	}, nil
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return slices.Clone(in)
}

func cloneMetadata(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
