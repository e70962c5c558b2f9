package models

import "time"

// Part is a single inventory part record. Parts are never physically deleted;
// IsActive=false marks a part that was merged into another.
type Part struct {
	ID             int64      `json:"id" db:"id"`
	TenantID       string     `json:"tenant_id" db:"tenant_id"`
	SKU            string     `json:"sku" db:"sku"`
	NormalizedSKU  string     `json:"normalized_sku" db:"normalized_sku"`
	Name           string     `json:"name" db:"name"`
	Description    string     `json:"description" db:"description"`
	BrandID        *int64     `json:"brand_id" db:"brand_id"`
	PartGroupID    *int64     `json:"part_group_id" db:"part_group_id"`
	CostPrice      float64    `json:"cost_price" db:"cost_price"`
	SalePrice      float64    `json:"sale_price" db:"sale_price"`
	QuantityOnHand float64    `json:"quantity_on_hand" db:"quantity_on_hand"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	IsService      bool       `json:"is_service" db:"is_service"`
	MergedIntoID   *int64     `json:"merged_into_id,omitempty" db:"merged_into_id"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`

	// Loaded separately from their own tables.
	PartNumbers  []PartNumber      `json:"part_numbers,omitempty" db:"-"`
	Applications []PartApplication `json:"applications,omitempty" db:"-"`
	Tags         []string          `json:"tags,omitempty" db:"-"`
}

// PartNumber is an alternate typed code for a part (OEM number, supplier
// reference, barcode and so on).
type PartNumber struct {
	ID              int64  `json:"id" db:"id"`
	PartID          int64  `json:"part_id" db:"part_id"`
	NumberType      string `json:"number_type" db:"number_type"`
	Value           string `json:"value" db:"value"`
	NormalizedValue string `json:"normalized_value" db:"normalized_value"`
}

// PartApplication links a part to a vehicle fitment.
type PartApplication struct {
	ID     int64  `json:"id" db:"id"`
	PartID int64  `json:"part_id" db:"part_id"`
	Make   string `json:"make" db:"make"`
	Model  string `json:"model" db:"model"`
	Engine string `json:"engine" db:"engine"`
}

// InventoryLevel is the stock of one part at one location.
type InventoryLevel struct {
	PartID     int64   `json:"part_id" db:"part_id"`
	LocationID int64   `json:"location_id" db:"location_id"`
	Quantity   float64 `json:"quantity" db:"quantity"`
	UnitCost   float64 `json:"unit_cost" db:"unit_cost"`
}
