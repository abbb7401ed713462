package models

import "time"

// PortClaim holds a dedicated host port for one owner. The unique
// (product_id, port) index is what makes a claim atomic.
type PortClaim struct {
	ID        string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	ProductID string    `gorm:"column:product_id;type:uuid;not null;uniqueIndex:unique_product_port,priority:1" json:"product_id"`
	Port      int       `gorm:"column:port;not null;uniqueIndex:unique_product_port,priority:2" json:"port"`
	Owner     string    `gorm:"column:owner;type:varchar(100);not null;index" json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

func (PortClaim) TableName() string {
	return "dedicated_port_claim"
}
