package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Order is a completed purchase header. Created exactly once per
// successful submission, append-only afterwards. The id is assigned by
// the sequence allocator, not by the database.
type Order struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OccurredAt   time.Time `json:"occurred_at" gorm:"column:occurred_at;not null"`
	EmployeeRef  int       `json:"employee_ref" gorm:"column:employee_ref;not null"`
	StoreRef     int       `json:"store_ref" gorm:"column:store_ref;not null"`
	TerminalRef  int       `json:"terminal_ref" gorm:"column:terminal_ref;not null"`
	TaxCode      int       `json:"tax_code" gorm:"column:tax_code;not null"`
	TotalWithTax int64     `json:"total_with_tax" gorm:"column:total_with_tax;not null"`
	TotalExTax   int64     `json:"total_ex_tax" gorm:"column:total_ex_tax;not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Order) TableName() string { return "orders" }

// OrderLine is one purchased unit within an order. A cart item of
// quantity 3 materializes as 3 rows with consecutive line numbers;
// product fields are snapshots taken at submission time.
type OrderLine struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey;autoIncrement:false"`
	OrderID     int64        `json:"order_id" gorm:"column:order_id;not null;uniqueIndex:ux_order_lines_order_line,priority:1"`
	LineNo      int          `json:"line_no" gorm:"column:line_no;not null;uniqueIndex:ux_order_lines_order_line,priority:2"`
	ProductID   int64        `json:"product_id" gorm:"column:product_id;not null"`
	ProductCode string       `json:"product_code" gorm:"column:product_code;type:text;not null"`
	ProductName string       `json:"product_name" gorm:"column:product_name;type:text;not null"`
	UnitPrice   int64        `json:"unit_price" gorm:"column:unit_price;not null"`
	TaxCode     int          `json:"tax_code" gorm:"column:tax_code;not null"`
	OccurredAt  time.Time    `json:"occurred_at" gorm:"column:occurred_at;not null"`
}

func (OrderLine) TableName() string { return "order_lines" }
