package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 注文種別。DELIVERYが通常注文、RETURN_*は配達済み注文に対する返品サブ注文。
type OrderType string

const (
	OrderTypeDelivery      OrderType = "DELIVERY"
	OrderTypeReturnReplace OrderType = "RETURN_REPLACE"
	OrderTypeReturnRefund  OrderType = "RETURN_REFUND"
)

func (t OrderType) IsReturn() bool {
	return t == OrderTypeReturnReplace || t == OrderTypeReturnRefund
}

// 注文全体のステータス。
// DELIVERY注文は配送ステータス、返品サブ注文は返品ステータスの値を持つ。
type OrderStatus string

const (
	//配送ステータス（前進のみ。スキップ不可）
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusProcessing     OrderStatus = "PROCESSING"
	OrderStatusShipped        OrderStatus = "SHIPPED"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCanceled       OrderStatus = "CANCELED"

	//返品ステータス
	ReturnStatusRequested OrderStatus = "REQUESTED"
	ReturnStatusApproved  OrderStatus = "APPROVED"
	ReturnStatusRejected  OrderStatus = "REJECTED"
	ReturnStatusReplaced  OrderStatus = "REPLACED"
	ReturnStatusRefunded  OrderStatus = "REFUNDED"
)

// 配送ステータスの次の一歩。DELIVEREDとCANCELEDに次は無い。
var nextDeliveryStatus = map[OrderStatus]OrderStatus{
	OrderStatusPending:        OrderStatusConfirmed,
	OrderStatusConfirmed:      OrderStatusProcessing,
	OrderStatusProcessing:     OrderStatusShipped,
	OrderStatusShipped:        OrderStatusOutForDelivery,
	OrderStatusOutForDelivery: OrderStatusDelivered,
}

// NextDeliveryStatus は1ステップ前進した配送ステータスを返す。
func NextDeliveryStatus(cur OrderStatus) (OrderStatus, bool) {
	next, ok := nextDeliveryStatus[cur]
	return next, ok
}

// キャンセル可能なのはPENDING/CONFIRMED/PROCESSINGのみ（出荷後は不可）。
func CanCancelDelivery(cur OrderStatus) bool {
	switch cur {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing:
		return true
	}
	return false
}

// 返品ステータスの遷移表。
var returnTransitions = map[OrderStatus][]OrderStatus{
	ReturnStatusRequested: {ReturnStatusApproved, ReturnStatusRejected},
	ReturnStatusApproved:  {ReturnStatusReplaced, ReturnStatusRefunded},
}

// CanTransitionReturn は返品ステータスの遷移が合法かを返す。
func CanTransitionReturn(from, to OrderStatus) bool {
	for _, t := range returnTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// 終端ステータスか（以後いかなる遷移も不可）。
func IsTerminalStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusDelivered, OrderStatusCanceled,
		ReturnStatusRejected, ReturnStatusReplaced, ReturnStatusRefunded:
		return true
	}
	return false
}

// 注文。明細の構成と合計は作成時に確定し、以後は変更しない。
// 明細は削除せずactive=falseにするだけ。
type Order struct {
	ID     int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64     `gorm:"not null;index" json:"user_id"`
	Type   OrderType `gorm:"type:varchar(20);not null" json:"type"`

	//返品サブ注文のときだけ親注文を指す
	ParentOrderID *int64 `gorm:"index" json:"parent_order_id,omitempty"`

	Status OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//合計は作成時のスナップショット価格から一度だけ計算する
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total_price"`

	//支払いは「方法＋済みフラグ」だけ記録する（決済処理はしない）
	PaymentMethod string `gorm:"type:varchar(50);not null" json:"payment_method"`
	Paid          bool   `gorm:"not null;default:false" json:"paid"`

	IdempotencyKey string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
