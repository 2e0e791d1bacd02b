package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 明細ごとのステータス（出品者が操作する）。
type OrderProductStatus string

const (
	OrderProductStatusRequested OrderProductStatus = "REQUESTED"
	OrderProductStatusAccepted  OrderProductStatus = "ACCEPTED"
	OrderProductStatusRejected  OrderProductStatus = "REJECTED"
	OrderProductStatusReady     OrderProductStatus = "READY"
)

// 明細ステータスの遷移表。REJECTED/READYは終端。
var itemTransitions = map[OrderProductStatus][]OrderProductStatus{
	OrderProductStatusRequested: {OrderProductStatusAccepted, OrderProductStatusRejected},
	OrderProductStatusAccepted:  {OrderProductStatusReady},
}

func CanTransitionItem(from, to OrderProductStatus) bool {
	for _, t := range itemTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// 注文明細。名前・価格は注文時点のスナップショット。
// キャンセル・返品でactive=falseになったら二度とtrueに戻さない。
type OrderItem struct {
	ID                  int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID             int64              `gorm:"not null;index" json:"order_id"`
	ProductID           int64              `gorm:"not null;index" json:"product_id"`
	SellerID            int64              `gorm:"not null;index" json:"seller_id"`
	ProductNameSnapshot string             `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	UnitPriceSnapshot   decimal.Decimal    `gorm:"type:numeric(12,2);not null" json:"unit_price_snapshot"`
	Quantity            int64              `gorm:"not null" json:"quantity"`
	Active              bool               `gorm:"not null;default:true" json:"active"`
	Status              OrderProductStatus `gorm:"type:varchar(20);not null" json:"status"`
	CreatedAt           time.Time          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
