// Package seed provides the demo catalogue: ten users, six categories and
// ten products with deterministic timestamps starting 2024-01-01.
package seed

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/prn-tf/meridian/internal/domain"
	"github.com/prn-tf/meridian/internal/repository"
)

// BaseDate is the creation time of the first seeded entity.
var BaseDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

type userSeed struct {
	email, first, last string
	role               domain.Role
	state              domain.UserState
	bio, location, web string
	theme              domain.Theme
	language           string
	visibility         domain.Visibility
}

var userSeeds = []userSeed{
	{"admin@company.com", "John", "Admin", domain.RoleAdmin, domain.StateActive,
		"Experienced software engineer with a passion for clean code and user experience.", "San Francisco, CA", "https://johnadmin.dev",
		domain.ThemeLight, "en", domain.VisibilityPublic},
	{"sarah.johnson@company.com", "Sarah", "Johnson", domain.RoleModerator, domain.StateActive,
		"Creative designer focused on intuitive interfaces and beautiful user experiences.", "New York, NY", "https://sarahjohnson.design",
		domain.ThemeDark, "en", domain.VisibilityPrivate},
	{"mike.chen@company.com", "Mike", "Chen", domain.RoleUser, domain.StateActive,
		"Data scientist specializing in machine learning and predictive analytics.", "Seattle, WA", "https://mikechen.tech",
		domain.ThemeSystem, "en", domain.VisibilityPublic},
	{"emma.wilson@company.com", "Emma", "Wilson", domain.RoleUser, domain.StatePending,
		"Product manager with expertise in agile methodologies and user research.", "Austin, TX", "https://emmawilson.product",
		domain.ThemeLight, "es", domain.VisibilityFriends},
	{"david.brown@company.com", "David", "Brown", domain.RoleUser, domain.StateActive,
		"Full-stack developer with strong backend and frontend skills.", "Boston, MA", "https://davidbrown.code",
		domain.ThemeDark, "en", domain.VisibilityPublic},
	{"lisa.garcia@company.com", "Lisa", "Garcia", domain.RoleModerator, domain.StateActive,
		"UX researcher passionate about understanding user needs and behaviors.", "Denver, CO", "https://lisagarcia.ux",
		domain.ThemeSystem, "en", domain.VisibilityPrivate},
	{"james.lee@company.com", "James", "Lee", domain.RoleUser, domain.StateSuspended,
		"DevOps engineer with experience in cloud infrastructure and automation.", "Chicago, IL", "https://jameslee.devops",
		domain.ThemeLight, "en", domain.VisibilityPublic},
	{"anna.martinez@company.com", "Anna", "Martinez", domain.RoleUser, domain.StateActive,
		"Marketing specialist with expertise in digital campaigns and analytics.", "Los Angeles, CA", "https://annamartinez.marketing",
		domain.ThemeDark, "en", domain.VisibilityFriends},
	{"robert.taylor@company.com", "Robert", "Taylor", domain.RoleUser, domain.StateInactive,
		"Business analyst with strong analytical and communication skills.", "Portland, OR", "https://roberttaylor.business",
		domain.ThemeSystem, "en", domain.VisibilityPublic},
	{"maria.rodriguez@company.com", "Maria", "Rodriguez", domain.RoleUser, domain.StateActive,
		"Customer success manager dedicated to ensuring customer satisfaction.", "Miami, FL", "https://mariarodriguez.success",
		domain.ThemeLight, "es", domain.VisibilityPrivate},
}

// Users returns the demo users with IDs "1" through "10".
// Pending users have never logged in.
func Users() ([]*domain.User, error) {
	users := make([]*domain.User, 0, len(userSeeds))
	for i, s := range userSeeds {
		created := BaseDate.Add(time.Duration(i) * day)
		updated := created.Add(time.Duration(3*i+2) * day)

		rec := domain.UserRecord{
			ID:    strconv.Itoa(i + 1),
			Email: s.email,
			Role:  string(s.role),
			Profile: domain.Profile{
				FirstName: s.first,
				LastName:  s.last,
				Avatar:    fmt.Sprintf("https://i.pravatar.cc/150?img=%d", i+1),
				Bio:       s.bio,
				Location:  s.location,
				Website:   s.web,
			},
			Status:    domain.StatusRecord{Value: string(s.state)},
			CreatedAt: created,
			UpdatedAt: updated,
			Preferences: &domain.Preferences{
				Theme:    s.theme,
				Language: s.language,
				Notifications: domain.NotificationPreferences{
					Email:     true,
					Push:      i%2 == 0,
					Marketing: i%2 == 0,
				},
				Privacy: domain.PrivacyPreferences{
					ProfileVisibility: s.visibility,
					ShowLocation:      i%2 == 0,
					AllowSearch:       true,
				},
			},
		}
		if s.state != domain.StatePending {
			login := updated.Add(-time.Duration(i%7+1) * 6 * time.Hour)
			rec.LastLoginAt = &login
		}

		u, err := domain.UserFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("seed user %s: %w", rec.ID, err)
		}
		users = append(users, u)
	}
	return users, nil
}

// Categories returns the demo product categories.
func Categories() []domain.Category {
	return []domain.Category{
		{ID: "electronics", Name: "Electronics", Slug: "electronics", IsActive: true},
		{ID: "clothing", Name: "Clothing & Fashion", Slug: "clothing", IsActive: true},
		{ID: "home", Name: "Home & Garden", Slug: "home", IsActive: true},
		{ID: "books", Name: "Books & Media", Slug: "books", IsActive: true},
		{ID: "sports", Name: "Sports & Outdoors", Slug: "sports", IsActive: true},
		{ID: "beauty", Name: "Beauty & Health", Slug: "beauty", IsActive: true},
	}
}

type productSeed struct {
	name, description string
	price             float64
	category          int
	quantity          int
	tags              []string
	brand, weight     string
	dimensions        string
}

var productSeeds = []productSeed{
	{"Wireless Bluetooth Headphones", "Premium noise-canceling wireless headphones with 30-hour battery life and crystal-clear sound quality.",
		199.99, 0, 150, []string{"wireless", "bluetooth", "audio", "premium", "noise-canceling"}, "AudioTech Pro", "250g", "18 x 18 x 8 cm"},
	{"Smart Fitness Watch", "Advanced fitness tracker with heart rate monitoring, GPS, and 7-day battery life.",
		299.99, 0, 75, []string{"fitness", "smartwatch", "health", "tracking", "gps"}, "FitLife", "45g", "4.2 x 4.2 x 1.2 cm"},
	{"Organic Cotton T-Shirt", "Comfortable and sustainable organic cotton t-shirt available in multiple colors and sizes.",
		29.99, 1, 200, []string{"organic", "cotton", "sustainable", "comfortable", "fashion"}, "EcoWear", "180g", "M: 70 x 54 cm"},
	{"Designer Denim Jeans", "Premium designer jeans with perfect fit and durable construction for everyday wear.",
		89.99, 1, 120, []string{"designer", "denim", "premium", "durable", "fashion"}, "DenimCraft", "400g", "32 x 32 x 1.5 cm"},
	{"Smart Home Security Camera", "1080p HD security camera with night vision, motion detection, and cloud storage.",
		149.99, 0, 60, []string{"security", "smart-home", "camera", "monitoring", "hd"}, "SecureHome", "120g", "6 x 6 x 4 cm"},
	{"Garden Tool Set", "Complete set of essential gardening tools including shovel, rake, and pruning shears.",
		79.99, 2, 85, []string{"garden", "tools", "outdoor", "essential", "durable"}, "GardenMaster", "2.5kg", "Various sizes"},
	{"Bestselling Novel Collection", "Collection of award-winning novels from contemporary authors in beautiful hardcover.",
		49.99, 3, 300, []string{"books", "novels", "award-winning", "hardcover", "collection"}, "BookWorld", "800g", "15 x 23 x 3 cm"},
	{"Professional Yoga Mat", "Non-slip yoga mat made from eco-friendly materials, perfect for home and studio practice.",
		39.99, 4, 180, []string{"yoga", "fitness", "eco-friendly", "non-slip", "practice"}, "YogaEssence", "1.2kg", "183 x 61 x 0.6 cm"},
	{"Natural Skincare Set", "Complete skincare routine with natural ingredients for all skin types.",
		69.99, 5, 95, []string{"skincare", "natural", "routine", "all-skin-types", "organic"}, "NaturalGlow", "300g", "Various sizes"},
	{"Portable Bluetooth Speaker", "Waterproof portable speaker with 360-degree sound and 12-hour battery life.",
		129.99, 0, 110, []string{"portable", "bluetooth", "speaker", "waterproof", "360-sound"}, "SoundWave", "450g", "15 x 15 x 8 cm"},
}

// ratingShares splits a rating count across star buckets 1..5.
var ratingShares = [5]float64{0.05, 0.08, 0.12, 0.35, 0.40}

// Products returns the demo products with IDs "1" through "10".
func Products() ([]*domain.Product, error) {
	categories := Categories()
	products := make([]*domain.Product, 0, len(productSeeds))

	for i, s := range productSeeds {
		created := BaseDate.Add(time.Duration(i) * day)
		count := 50 + (i*97)%450
		average := math.Round((4.0+float64((i*37)%9)/10)*10) / 10

		distribution := make(map[int]int, 5)
		for star, share := range ratingShares {
			distribution[star+1] = int(math.Floor(float64(count) * share))
		}
		threshold := domain.DefaultLowStockThreshold

		rec := domain.ProductRecord{
			ID:          strconv.Itoa(i + 1),
			Name:        s.name,
			Description: s.description,
			Price:       domain.PriceRecord{Amount: s.price, Currency: domain.DefaultCurrency},
			Category:    categories[s.category],
			Inventory: domain.InventoryRecord{
				Quantity:          s.quantity,
				LowStockThreshold: &threshold,
			},
			Rating: domain.RatingRecord{Average: average, Count: count, Distribution: distribution},
			Images: []string{
				fmt.Sprintf("https://picsum.photos/400/400?random=%d", i+1),
				fmt.Sprintf("https://picsum.photos/400/400?random=%d", i+11),
				fmt.Sprintf("https://picsum.photos/400/400?random=%d", i+21),
			},
			Tags:      s.tags,
			IsActive:  true,
			CreatedAt: created,
			UpdatedAt: created.Add(time.Duration(2*i+1) * day),
			Metadata: map[string]string{
				"brand":        s.brand,
				"weight":       s.weight,
				"dimensions":   s.dimensions,
				"warranty":     "2 years",
				"shipping":     "Free shipping",
				"returnPolicy": "30-day return policy",
			},
		}

		p, err := domain.ProductFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("seed product %s: %w", rec.ID, err)
		}
		products = append(products, p)
	}
	return products, nil
}

// Load saves the demo catalogue into the given repositories.
func Load(ctx context.Context, users repository.UserRepository, products repository.ProductRepository) error {
	us, err := Users()
	if err != nil {
		return err
	}
	for _, u := range us {
		if err := users.Save(ctx, u); err != nil {
			return fmt.Errorf("seed user %s: %w", u.ID(), err)
		}
	}

	ps, err := Products()
	if err != nil {
		return err
	}
	for _, p := range ps {
		if err := products.Save(ctx, p); err != nil {
			return fmt.Errorf("seed product %s: %w", p.ID(), err)
		}
	}
	return nil
}
