package usecase

import (
	"context"

	"marketplace/internal/domain/model"
)

// 注文ステータス遷移の通知先（メール/PDF側）。
// 遷移が確定した後に呼ぶ。失敗しても遷移は取り消さない。
type OrderNotifier interface {
	NotifyOrderStatus(ctx context.Context, order model.Order, newStatus model.OrderStatus) error
}
