package domain

import "time"

// TaxRate maps an integer tax code to a percentage fraction
// (0.10 means 10%). Reference data, never mutated by the order path.
type TaxRate struct {
	Code      int       `json:"code" gorm:"primaryKey;column:code;autoIncrement:false"`
	Percent   float64   `json:"percent" gorm:"type:numeric(6,4);not null"`
	Name      string    `json:"name" gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (TaxRate) TableName() string { return "tax_rates" }

func (t *TaxRate) Validate() error {
	if t.Code <= 0 {
		return ErrInvalidTaxCode
	}
	if t.Percent < 0 {
		return ErrInvalidTaxRate
	}
	return nil
}
