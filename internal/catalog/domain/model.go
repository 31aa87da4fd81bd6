package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Product is reference data owned by the catalog; the order processor
// only ever reads it and snapshots fields onto order lines.
type Product struct {
	ID          int64             `json:"id" gorm:"primaryKey"`
	Code        string            `json:"code" gorm:"type:text;not null;uniqueIndex:ux_products_code"`
	Name        string            `json:"name" gorm:"type:text;not null"`
	UnitPrice   int64             `json:"unit_price" gorm:"column:unit_price;not null"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	Active      bool              `json:"active" gorm:"not null;default:true"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty" gorm:"type:jsonb"`
	CreatedAt   time.Time         `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time         `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }
