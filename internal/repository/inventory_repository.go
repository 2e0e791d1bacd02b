package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

// 在庫カウンタの窓口。Stockに触ってよいのはここだけ。
type InventoryRepository interface {
	// 在庫の現在値を設定（出品者の在庫管理用。注文フローでは使わない）
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りて商品が公開中のときだけ、1文でチェックして減算する。
	// 別読みしてから書くのは禁止（同時予約で売り越す）。
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル・返品の補償）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 調整履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
