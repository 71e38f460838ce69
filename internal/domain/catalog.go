package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultCurrency is used when a price is created without a currency.
	DefaultCurrency = "USD"

	// DefaultLowStockThreshold is the available count at or below which stock is low.
	DefaultLowStockThreshold = 5

	minProductNameLen = 2
	maxProductNameLen = 100
)

var (
	slugInvalidRun = regexp.MustCompile(`[^a-z0-9]+`)
	currencyRegex  = regexp.MustCompile(`^[A-Z]{3}$`)
)

// ProductID is the opaque identifier of a product.
type ProductID struct {
	value string
}

// NewProductID validates and wraps a product identifier.
func NewProductID(value string) (ProductID, error) {
	if strings.TrimSpace(value) == "" {
		return ProductID{}, ErrEmptyProductID
	}
	return ProductID{value: value}, nil
}

func (id ProductID) String() string { return id.value }

func (id ProductID) Equals(other ProductID) bool { return id.value == other.value }

// ProductName is a display name between 2 and 100 characters.
type ProductName struct {
	value string
}

// NewProductName validates a product name.
func NewProductName(value string) (ProductName, error) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < minProductNameLen || n > maxProductNameLen {
		return ProductName{}, NewDomainError(ErrInvalidProductName, "name length out of range", value)
	}
	return ProductName{value: value}, nil
}

func (n ProductName) String() string { return n.value }

// Slug returns the URL-friendly form of the name.
func (n ProductName) Slug() string {
	return Slugify(n.value)
}

// Slugify lowercases s and collapses every run of non-alphanumerics into a dash.
func Slugify(s string) string {
	return strings.Trim(slugInvalidRun.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// Price is a positive amount in a currency.
type Price struct {
	amount   float64
	currency string
}

// NewPrice validates an amount. An empty currency means USD.
func NewPrice(amount float64, currency string) (Price, error) {
	if amount <= 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Price{}, NewDomainError(ErrInvalidPrice, "amount out of range", strconv.FormatFloat(amount, 'f', -1, 64))
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	currency = strings.ToUpper(currency)
	if !currencyRegex.MatchString(currency) {
		return Price{}, NewDomainError(ErrInvalidCurrency, "malformed currency", currency)
	}
	return Price{amount: amount, currency: currency}, nil
}

func (p Price) Amount() float64  { return p.amount }
func (p Price) Currency() string { return p.currency }

// Add sums two prices of the same currency.
func (p Price) Add(other Price) (Price, error) {
	if p.currency != other.currency {
		return Price{}, NewDomainError(ErrCurrencyMismatch, p.currency+" vs "+other.currency, "")
	}
	return NewPrice(p.amount+other.amount, p.currency)
}

// Multiply scales the price by factor. The result must still be positive.
func (p Price) Multiply(factor float64) (Price, error) {
	return NewPrice(p.amount*factor, p.currency)
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
}

// Format renders the price for display, e.g. $1,234.50.
func (p Price) Format() string {
	amount := groupThousands(strconv.FormatFloat(p.amount, 'f', 2, 64))
	if sym, ok := currencySymbols[p.currency]; ok {
		return sym + amount
	}
	return p.currency + " " + amount
}

// groupThousands inserts commas into the integer part of a decimal string.
func groupThousands(s string) string {
	intPart, frac, _ := strings.Cut(s, ".")
	if len(intPart) <= 3 {
		return s
	}

	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// Category groups products. ParentID is empty for top-level categories.
type Category struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Slug     string `json:"slug"`
	ParentID string `json:"parent_id,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Validate checks the category has an id and a name, deriving the slug when blank.
func (c Category) Validate() (Category, error) {
	if strings.TrimSpace(c.ID) == "" || strings.TrimSpace(c.Name) == "" {
		return Category{}, ErrInvalidCategory
	}
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	return c, nil
}

// Inventory tracks stock on hand and stock held for pending orders.
type Inventory struct {
	quantity          int
	reserved          int
	lowStockThreshold int
}

// NewInventory validates that no field is negative.
func NewInventory(quantity, reserved, lowStockThreshold int) (Inventory, error) {
	if quantity < 0 || reserved < 0 || lowStockThreshold < 0 {
		return Inventory{}, ErrInvalidInventory
	}
	return Inventory{quantity: quantity, reserved: reserved, lowStockThreshold: lowStockThreshold}, nil
}

// NewStock creates an inventory with nothing reserved and the default threshold.
func NewStock(quantity int) (Inventory, error) {
	return NewInventory(quantity, 0, DefaultLowStockThreshold)
}

func (i Inventory) Quantity() int          { return i.quantity }
func (i Inventory) Reserved() int          { return i.reserved }
func (i Inventory) LowStockThreshold() int { return i.lowStockThreshold }

// Available returns the unreserved stock, never below zero.
func (i Inventory) Available() int {
	return max(0, i.quantity-i.reserved)
}

// IsLowStock reports whether available stock is at or below the threshold.
func (i Inventory) IsLowStock() bool { return i.Available() <= i.lowStockThreshold }

// IsOutOfStock reports whether nothing is available.
func (i Inventory) IsOutOfStock() bool { return i.Available() == 0 }

// CanReserve reports whether n units could be reserved.
func (i Inventory) CanReserve(n int) bool { return n > 0 && n <= i.Available() }

// Reserve holds n units.
func (i Inventory) Reserve(n int) (Inventory, error) {
	if n <= 0 {
		return Inventory{}, ErrInvalidQuantity
	}
	if n > i.Available() {
		return Inventory{}, NewDomainError(ErrInsufficientStock, "requested "+strconv.Itoa(n)+", available "+strconv.Itoa(i.Available()), "")
	}
	i.reserved += n
	return i, nil
}

// Release returns n reserved units to available stock.
func (i Inventory) Release(n int) (Inventory, error) {
	if n <= 0 {
		return Inventory{}, ErrInvalidQuantity
	}
	if n > i.reserved {
		return Inventory{}, NewDomainError(ErrReleaseExceedsReserved, "requested "+strconv.Itoa(n)+", reserved "+strconv.Itoa(i.reserved), "")
	}
	i.reserved -= n
	return i, nil
}

// WithQuantity replaces the stock on hand, keeping reservations.
func (i Inventory) WithQuantity(quantity int) (Inventory, error) {
	return NewInventory(quantity, i.reserved, i.lowStockThreshold)
}

// Rating aggregates customer ratings from 1 to 5 stars.
type Rating struct {
	average float64
	count   int
	buckets [6]int // index 1..5
}

// NewRating validates an aggregate. distribution may be nil.
func NewRating(average float64, count int, distribution map[int]int) (Rating, error) {
	if average < 0 || average > 5 || math.IsNaN(average) || math.IsInf(average, 0) || count < 0 {
		return Rating{}, ErrInvalidRating
	}
	r := Rating{average: average, count: count}
	for star, n := range distribution {
		if star < 1 || star > 5 || n < 0 {
			return Rating{}, NewDomainError(ErrInvalidRating, "bad distribution bucket", strconv.Itoa(star))
		}
		r.buckets[star] = n
	}
	return r, nil
}

func (r Rating) Average() float64 { return r.average }
func (r Rating) Count() int       { return r.count }

// Distribution returns a copy of the star buckets.
func (r Rating) Distribution() map[int]int {
	out := make(map[int]int, 5)
	for star := 1; star <= 5; star++ {
		out[star] = r.buckets[star]
	}
	return out
}

// AddRating folds one rating into the running average.
func (r Rating) AddRating(stars int) (Rating, error) {
	if stars < 1 || stars > 5 {
		return Rating{}, NewDomainError(ErrInvalidRatingValue, "out of range", strconv.Itoa(stars))
	}
	r.average = (r.average*float64(r.count) + float64(stars)) / float64(r.count+1)
	r.count++
	r.buckets[stars]++
	return r, nil
}

// AddRatings folds several ratings in order. Nothing is applied if any is invalid.
func (r Rating) AddRatings(stars ...int) (Rating, error) {
	out := r
	for _, s := range stars {
		next, err := out.AddRating(s)
		if err != nil {
			return Rating{}, err
		}
		out = next
	}
	return out, nil
}

// Rounded returns the average rounded to the nearest star.
func (r Rating) Rounded() int { return int(math.Round(r.average)) }

// Text returns a human label for the average.
func (r Rating) Text() string {
	switch {
	case r.average >= 4.5:
		return "Excellent"
	case r.average >= 4.0:
		return "Very Good"
	case r.average >= 3.5:
		return "Good"
	case r.average >= 3.0:
		return "Fair"
	case r.average >= 2.5:
		return "Poor"
	default:
		return "Very Poor"
	}
}
