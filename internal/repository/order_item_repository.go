package repository

import (
	"context"

	"marketplace/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
	FindByOrderAndProduct(ctx context.Context, orderID int64, productID int64) (model.OrderItem, error)
	UpdateStatus(ctx context.Context, orderItemID int64, status model.OrderProductStatus) error
	// active=falseは一方通行。trueへ戻すメソッドは置かない。
	Deactivate(ctx context.Context, orderItemID int64) error
}
