package infrastructure

import (
	"github.com/cafeteria/ordering-system/order-service/domain"
	"github.com/cafeteria/ordering-system/shared/models"
)

// Seed catalog identifiers are fixed so every repository backend starts
// from the same menu.
var (
	BeveragesCategoryID = models.ID("7b7a3f26-1a42-4a8e-9d5b-111111111111")
	SnacksCategoryID    = models.ID("7b7a3f26-1a42-4a8e-9d5b-222222222222")
	LunchCategoryID     = models.ID("7b7a3f26-1a42-4a8e-9d5b-333333333333")
	CombosCategoryID    = models.ID("7b7a3f26-1a42-4a8e-9d5b-444444444444")
)

func sizePtr(s domain.ProductSize) *domain.ProductSize { return &s }

func intPtr(i int) *int { return &i }

// SeedCategories returns the default menu categories
func SeedCategories() []*domain.Category {
	return []*domain.Category{
		{ID: BeveragesCategoryID, Name: "Beverages", Description: "Cold and hot drinks", Type: domain.CategoryTypeColdDrinks, Active: true},
		{ID: SnacksCategoryID, Name: "Snacks", Description: "Snacks and appetizers", Type: domain.CategoryTypeSnacks, Active: true},
		{ID: LunchCategoryID, Name: "Lunch Plates", Description: "Main dishes and meals", Type: domain.CategoryTypeLunch, Active: true},
		{ID: CombosCategoryID, Name: "Combos", Description: "Food and drink combos", Type: domain.CategoryTypeLunch, Active: true},
	}
}

// SeedProducts returns the default menu products
func SeedProducts() []*domain.Product {
	return []*domain.Product{
		{
			ID:          models.ID("a1f0c2d4-0001-4000-8000-000000000001"),
			Name:        "Cola",
			Description: "Classic cola soft drink",
			Price:       models.NewMoney(2500, "MXN"),
			CategoryID:  BeveragesCategoryID,
			Available:   true,
			Size:        sizePtr(domain.ProductSizeMedium),
			Ingredients: []string{"Carbonated water", "Sugar", "Flavoring"},
			Calories:    intPtr(140),
		},
		{
			ID:          models.ID("a1f0c2d4-0001-4000-8000-000000000002"),
			Name:        "Fresh Orange Juice",
			Description: "Freshly squeezed orange juice",
			Price:       models.NewMoney(3000, "MXN"),
			CategoryID:  BeveragesCategoryID,
			Available:   true,
			Size:        sizePtr(domain.ProductSizeLarge),
			Ingredients: []string{"Orange", "Sugar"},
			Calories:    intPtr(110),
		},
		{
			ID:          models.ID("a1f0c2d4-0001-4000-8000-000000000003"),
			Name:        "Horchata",
			Description: "Traditional rice drink with cinnamon",
			Price:       models.NewMoney(2000, "MXN"),
			CategoryID:  BeveragesCategoryID,
			Available:   true,
			Size:        sizePtr(domain.ProductSizeLarge),
			Ingredients: []string{"Rice", "Cinnamon", "Sugar", "Milk"},
			Calories:    intPtr(120),
		},
		{
			ID:          models.ID("a1f0c2d4-0001-4000-8000-000000000004"),
			Name:        "Lemonade",
			Description: "Natural lemonade with fresh lime",
			Price:       models.NewMoney(2200, "MXN"),
			CategoryID:  BeveragesCategoryID,
			Available:   true,
			Size:        sizePtr(domain.ProductSizeMedium),
			Ingredients: []string{"Lime", "Sugar", "Water"},
			Calories:    intPtr(50),
		},
		{
			ID:          models.ID("a1f0c2d4-0001-4000-8000-000000000005"),
			Name:        "Americano",
			Description: "Hot black americano coffee",
			Price:       models.NewMoney(2800, "MXN"),
			CategoryID:  BeveragesCategoryID,
			Available:   true,
			Size:        sizePtr(domain.ProductSizeMedium),
			Ingredients: []string{"Coffee", "Water"},
			Calories:    intPtr(5),
		},
		{
			ID:          models.ID("a1f0c2d4-0002-4000-8000-000000000001"),
			Name:        "Nachos with Cheese",
			Description: "Corn chips with melted cheese",
			Price:       models.NewMoney(4500, "MXN"),
			CategoryID:  SnacksCategoryID,
			Available:   true,
			Ingredients: []string{"Corn chips", "Cheese", "Jalapeno"},
			Calories:    intPtr(420),
		},
		{
			ID:          models.ID("a1f0c2d4-0002-4000-8000-000000000002"),
			Name:        "Fruit Cup",
			Description: "Seasonal fruit with lime and chili",
			Price:       models.NewMoney(3500, "MXN"),
			CategoryID:  SnacksCategoryID,
			Available:   true,
			Ingredients: []string{"Melon", "Pineapple", "Watermelon", "Lime"},
			Calories:    intPtr(90),
		},
		{
			ID:          models.ID("a1f0c2d4-0003-4000-8000-000000000001"),
			Name:        "Chicken Quesadillas",
			Description: "Grilled tortillas with chicken and cheese",
			Price:       models.NewMoney(7500, "MXN"),
			CategoryID:  LunchCategoryID,
			Available:   true,
			Ingredients: []string{"Tortilla", "Chicken", "Cheese", "Cream"},
			Calories:    intPtr(560),
		},
		{
			ID:          models.ID("a1f0c2d4-0003-4000-8000-000000000002"),
			Name:        "Beef Tacos",
			Description: "Three soft beef tacos with salsa",
			Price:       models.NewMoney(6800, "MXN"),
			CategoryID:  LunchCategoryID,
			Available:   true,
			Ingredients: []string{"Tortilla", "Beef", "Onion", "Cilantro"},
			Calories:    intPtr(610),
		},
		{
			ID:          models.ID("a1f0c2d4-0004-4000-8000-000000000001"),
			Name:        "Lunch Combo",
			Description: "Tacos, fries and a medium drink",
			Price:       models.NewMoney(9900, "MXN"),
			CategoryID:  CombosCategoryID,
			Available:   true,
			Calories:    intPtr(950),
		},
	}
}
