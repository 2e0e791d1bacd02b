package model

import "time"

// カートの明細。
// 商品名・出品者・説明は追加時点で非正規化して持つ。
// 価格はスナップショットしない（カート合計は常に現在のカタログ価格で計算する）。
type CartItem struct {
	ID                  int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID              int64     `gorm:"not null;index" json:"cart_id"`
	ProductID           int64     `gorm:"not null;index" json:"product_id"`
	SellerID            int64     `gorm:"not null;index" json:"seller_id"`
	ProductNameSnapshot string    `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	DescriptionSnapshot string    `gorm:"type:text" json:"description_snapshot"`
	Quantity            int64     `gorm:"not null" json:"quantity"`
	CreatedAt           time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
