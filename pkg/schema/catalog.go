package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/quickcommerce/deals-engine/pkg/models"
)

// LoadCatalogFile reads table descriptors from a YAML catalog file.
func LoadCatalogFile(path string) ([]models.TableDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}

	var doc struct {
		Tables []models.TableDescriptor `yaml:"tables"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog file: %w", err)
	}
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("catalog file %s contains no tables", path)
	}

	return doc.Tables, nil
}

// DefaultCatalog returns the built-in quick-commerce catalog: the product,
// pricing, promotion, inventory, and analytics tables the engine answers
// questions against when no catalog file is configured.
func DefaultCatalog() []models.TableDescriptor {
	id := func(name string) models.ColumnDescriptor {
		return models.ColumnDescriptor{Name: name, DeclaredType: models.ColumnTypeInteger, IsIndexed: true, SemanticRole: models.RoleIdentifier}
	}
	text := func(name string, indexed bool) models.ColumnDescriptor {
		return models.ColumnDescriptor{Name: name, DeclaredType: models.ColumnTypeText, IsIndexed: indexed, SemanticRole: models.RoleCategory}
	}
	measure := func(name string) models.ColumnDescriptor {
		return models.ColumnDescriptor{Name: name, DeclaredType: models.ColumnTypeReal, SemanticRole: models.RoleMeasure}
	}
	flag := func(name string) models.ColumnDescriptor {
		return models.ColumnDescriptor{Name: name, DeclaredType: models.ColumnTypeBoolean, SemanticRole: models.RoleFlag}
	}
	ts := func(name string) models.ColumnDescriptor {
		return models.ColumnDescriptor{Name: name, DeclaredType: models.ColumnTypeTimestamp, IsIndexed: true, SemanticRole: models.RoleTimestamp}
	}

	return []models.TableDescriptor{
		{
			Name:        "products",
			Description: "Product catalog with names, descriptions, categories, brands",
			Columns: []models.ColumnDescriptor{
				id("id"), text("name", true), text("description", false),
				id("category_id"), id("brand_id"),
			},
			SemanticKeywords: []string{"product", "item", "goods", "merchandise", "name", "brand", "category", "onion", "apple", "milk", "banana", "tomato", "potato", "rice", "bread"},
			RowCountEstimate: 50000,
			Relationships: []models.Relationship{
				{ForeignTable: "categories", LocalColumn: "category_id", ForeignColumn: "id"},
				{ForeignTable: "brands", LocalColumn: "brand_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "product_prices",
			Description: "Current pricing across platforms with discounts and availability",
			Columns: []models.ColumnDescriptor{
				id("id"), id("product_id"), id("platform_id"),
				measure("current_price"), measure("original_price"),
				measure("discount_percentage"), flag("is_available"), ts("updated_at"),
			},
			SemanticKeywords: []string{"price", "cost", "rate", "cheap", "cheapest", "expensive", "discount", "offer", "deal"},
			RowCountEstimate: 500000,
			Relationships: []models.Relationship{
				{ForeignTable: "products", LocalColumn: "product_id", ForeignColumn: "id"},
				{ForeignTable: "platforms", LocalColumn: "platform_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "platforms",
			Description: "Quick commerce platforms like Blinkit, Zepto, Instamart",
			Columns: []models.ColumnDescriptor{
				id("id"), text("name", true), text("display_name", false),
				measure("delivery_fee"), measure("minimum_order_value"), flag("is_active"),
			},
			SemanticKeywords: []string{"platform", "app", "store", "blinkit", "zepto", "instamart", "bigbasket", "dunzo", "swiggy"},
			RowCountEstimate: 10,
		},
		{
			Name:        "categories",
			Description: "Product categories and subcategories hierarchically organized",
			Columns: []models.ColumnDescriptor{
				id("id"), text("name", true), text("display_name", false), id("parent_id"),
			},
			SemanticKeywords: []string{"category", "type", "kind", "fruits", "vegetables", "dairy", "snacks"},
			RowCountEstimate: 200,
			Relationships: []models.Relationship{
				{ForeignTable: "categories", LocalColumn: "parent_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "brands",
			Description: "Product brands and manufacturers",
			Columns: []models.ColumnDescriptor{
				id("id"), text("name", true), text("display_name", false),
			},
			SemanticKeywords: []string{"brand", "manufacturer", "company", "make"},
			RowCountEstimate: 2000,
		},
		{
			Name:        "promotions",
			Description: "Active promotional offers and discounts",
			Columns: []models.ColumnDescriptor{
				id("id"), id("platform_id"), text("title", false),
				measure("discount_percentage"), ts("starts_at"), ts("ends_at"),
			},
			SemanticKeywords: []string{"promotion", "offer", "deal", "discount", "sale", "coupon"},
			RowCountEstimate: 5000,
			Relationships: []models.Relationship{
				{ForeignTable: "platforms", LocalColumn: "platform_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "price_history",
			Description: "Historical price changes and trends",
			Columns: []models.ColumnDescriptor{
				id("id"), id("product_price_id"), measure("price"), ts("recorded_at"),
			},
			SemanticKeywords: []string{"history", "trend", "change", "historical", "past", "previous"},
			RowCountEstimate: 5000000,
			Relationships: []models.Relationship{
				{ForeignTable: "product_prices", LocalColumn: "product_price_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "inventory_levels",
			Description: "Stock availability and inventory status",
			Columns: []models.ColumnDescriptor{
				id("id"), id("product_id"), id("platform_id"),
				measure("quantity"), text("stock_status", false), ts("updated_at"),
			},
			SemanticKeywords: []string{"stock", "inventory", "available", "availability", "quantity"},
			RowCountEstimate: 500000,
			Relationships: []models.Relationship{
				{ForeignTable: "products", LocalColumn: "product_id", ForeignColumn: "id"},
				{ForeignTable: "platforms", LocalColumn: "platform_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "product_popularity",
			Description: "Product popularity metrics and search trends",
			Columns: []models.ColumnDescriptor{
				id("id"), id("product_id"), id("platform_id"),
				measure("view_count"), measure("search_count"), ts("recorded_at"),
			},
			SemanticKeywords: []string{"popular", "trending", "bestseller", "views", "searches"},
			RowCountEstimate: 200000,
			Relationships: []models.Relationship{
				{ForeignTable: "products", LocalColumn: "product_id", ForeignColumn: "id"},
				{ForeignTable: "platforms", LocalColumn: "platform_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "competitor_analysis",
			Description: "Price comparison between platforms for the same products",
			Columns: []models.ColumnDescriptor{
				id("id"), id("product_id"), measure("min_price"), measure("max_price"),
				measure("price_spread"), ts("computed_at"),
			},
			SemanticKeywords: []string{"compare", "comparison", "versus", "between", "difference"},
			RowCountEstimate: 50000,
			Relationships: []models.Relationship{
				{ForeignTable: "products", LocalColumn: "product_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "delivery_zones",
			Description: "Delivery areas and zones for each platform",
			Columns: []models.ColumnDescriptor{
				id("id"), id("platform_id"), text("city", true), text("pincode", true),
				measure("average_delivery_minutes"),
			},
			SemanticKeywords: []string{"delivery", "zone", "area", "location", "pincode", "city"},
			RowCountEstimate: 20000,
			Relationships: []models.Relationship{
				{ForeignTable: "platforms", LocalColumn: "platform_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "market_trends",
			Description: "Market analysis and pricing trends by category",
			Columns: []models.ColumnDescriptor{
				id("id"), id("category_id"), id("platform_id"),
				measure("average_price"), measure("growth_rate"), ts("period_start"),
			},
			SemanticKeywords: []string{"trend", "market", "analysis", "growth", "decline"},
			RowCountEstimate: 10000,
			Relationships: []models.Relationship{
				{ForeignTable: "categories", LocalColumn: "category_id", ForeignColumn: "id"},
				{ForeignTable: "platforms", LocalColumn: "platform_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "product_reviews",
			Description: "User reviews and ratings for products",
			Columns: []models.ColumnDescriptor{
				id("id"), id("product_id"), id("platform_id"),
				measure("rating"), text("comment", false), ts("created_at"),
			},
			SemanticKeywords: []string{"review", "rating", "feedback", "comment", "opinion"},
			RowCountEstimate: 1000000,
			Relationships: []models.Relationship{
				{ForeignTable: "products", LocalColumn: "product_id", ForeignColumn: "id"},
				{ForeignTable: "platforms", LocalColumn: "platform_id", ForeignColumn: "id"},
			},
		},
		{
			Name:        "platform_ratings",
			Description: "Overall platform ratings and user feedback",
			Columns: []models.ColumnDescriptor{
				id("id"), id("platform_id"), measure("average_rating"),
				measure("rating_count"), ts("updated_at"),
			},
			SemanticKeywords: []string{"service", "experience", "satisfaction"},
			RowCountEstimate: 10,
			Relationships: []models.Relationship{
				{ForeignTable: "platforms", LocalColumn: "platform_id", ForeignColumn: "id"},
			},
		},
	}
}
