package usecase

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderUsecase はユーザー自身の注文操作（閲覧・キャンセル）。
type OrderUsecase struct {
	tx       repo.TransactionManager
	audit    *AuditRecorder
	notifier OrderNotifier
	logger   *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, audit *AuditRecorder, notifier OrderNotifier, logger *zap.Logger) *OrderUsecase {
	return &OrderUsecase{tx: tx, audit: audit, notifier: notifier, logger: logger}
}

type OrderItemOutput struct {
	ProductID int64           `json:"product_id"`
	SellerID  int64           `json:"seller_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
	Active    bool            `json:"active"`
	Status    string          `json:"status"`
}

type OrderOutput struct {
	ID         int64             `json:"id"`
	UserID     int64             `json:"user_id"`
	Type       string            `json:"type"`
	Status     string            `json:"status"`
	TotalPrice decimal.Decimal   `json:"total_price"`
	CreatedAt  time.Time         `json:"created_at"`
	Items      []OrderItemOutput `json:"items"`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			SellerID:  it.SellerID,
			Name:      it.ProductNameSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Active:    it.Active,
			Status:    string(it.Status),
		})
	}

	return OrderOutput{
		ID:         o.ID,
		UserID:     o.UserID,
		Type:       string(o.Type),
		Status:     string(o.Status),
		TotalPrice: o.TotalPrice,
		CreatedAt:  o.CreatedAt,
		Items:      outItems,
	}
}

type OrderListOutput struct {
	Items []OrderOutput `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64, page int, limit int) (OrderListOutput, error) {
	if userID <= 0 {
		return OrderListOutput{}, NewError(CodeUnauthorized, "unauthorized")
	}
	if page < 1 {
		return OrderListOutput{}, NewError(CodeValidation, "invalid page")
	}
	if limit < 1 || limit > 100 {
		return OrderListOutput{}, NewError(CodeValidation, "invalid limit")
	}

	var outs []OrderOutput
	var total int64

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, n, err := r.Orders().ListByUserID(ctx, userID, page, limit)
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		total = n

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewError(CodeInternal, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return OrderListOutput{}, err
	}
	return OrderListOutput{Items: outs, Total: total, Page: page, Limit: limit}, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewError(CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewError(CodeValidation, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewError(CodeNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewError(CodeInternal, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// CancelOrder は注文全体のキャンセル。
// PENDING/CONFIRMED/PROCESSINGの間だけ。出荷後は不可。
// 有効な全明細の在庫を戻し、明細をactive=falseにする。
func (u *OrderUsecase) CancelOrder(ctx context.Context, actor model.Actor, orderID int64) error {
	var canceled model.Order
	err := u.cancelOrder(ctx, actor.UserID, orderID, &canceled)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionCancelOrder,
		TargetID: orderID,
		Outcome:  outcomeOf(err),
		After:    `{"status":"CANCELED"}`,
	})
	if err == nil {
		u.notifyStatus(ctx, canceled, model.OrderStatusCanceled)
	}
	return err
}

func (u *OrderUsecase) cancelOrder(ctx context.Context, userID int64, orderID int64, canceled *model.Order) error {
	if userID <= 0 {
		return NewError(CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if o.UserID != userID {
			return NewError(CodeNotFound, "not found")
		}
		if o.Type.IsReturn() {
			return NewError(CodeInvalidState, "not a delivery order")
		}
		if !model.CanCancelDelivery(o.Status) {
			return NewError(CodeInvalidState, "cannot cancel in current status")
		}

		if err := cancelAllActiveItems(ctx, r, orderID); err != nil {
			return err
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusCanceled); err != nil {
			return NewError(CodeInternal, "db error")
		}

		*canceled = o
		return nil
	})
}

// 有効な全明細の在庫戻し＋無効化。注文全体キャンセルの中身。
func cancelAllActiveItems(ctx context.Context, r repo.TxRepos, orderID int64) error {
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return NewError(CodeInternal, "db error")
	}

	for _, it := range items {
		if !it.Active {
			continue
		}
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			return NewError(CodeInternal, "db error")
		}
		if err := r.OrderItems().Deactivate(ctx, it.ID); err != nil {
			return NewError(CodeInternal, "db error")
		}
	}
	return nil
}

// CancelOrderItem は複数明細注文のうち1明細だけのキャンセル。
// 対象明細の数量だけ在庫を戻す。最後の有効明細だったら注文ごとCANCELEDにする。
func (u *OrderUsecase) CancelOrderItem(ctx context.Context, actor model.Actor, orderID int64, productID int64) error {
	var canceled model.Order
	var orderCanceled bool
	err := u.cancelOrderItem(ctx, actor.UserID, orderID, productID, &canceled, &orderCanceled)
	u.audit.Record(ctx, AuditEntry{
		Actor:  actor,
		Action: model.AuditActionCancelOrderItem,
		//明細キャンセルの監査対象は注文IDでなく商品ID
		TargetID: productID,
		Outcome:  outcomeOf(err),
		Before:   fmt.Sprintf(`{"order_id":%d}`, orderID),
		After:    `{"active":false}`,
	})
	if err == nil && orderCanceled {
		u.notifyStatus(ctx, canceled, model.OrderStatusCanceled)
	}
	return err
}

func (u *OrderUsecase) cancelOrderItem(ctx context.Context, userID int64, orderID int64, productID int64, canceled *model.Order, orderCanceled *bool) error {
	if userID <= 0 {
		return NewError(CodeUnauthorized, "unauthorized")
	}
	if orderID <= 0 || productID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if o.UserID != userID {
			return NewError(CodeNotFound, "not found")
		}
		if o.Type.IsReturn() {
			return NewError(CodeInvalidState, "not a delivery order")
		}
		if !model.CanCancelDelivery(o.Status) {
			return NewError(CodeInvalidState, "cannot cancel in current status")
		}

		item, err := r.OrderItems().FindByOrderAndProduct(ctx, orderID, productID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "item not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		//二重キャンセルは黙って成功にしない
		if !item.Active {
			return NewError(CodeAlreadyCanceled, "item already canceled")
		}

		if err := r.Inventory().IncreaseStock(ctx, item.ProductID, item.Quantity); err != nil {
			return NewError(CodeInternal, "db error")
		}
		if err := r.OrderItems().Deactivate(ctx, item.ID); err != nil {
			if err == repo.ErrNotFound {
				return NewError(CodeAlreadyCanceled, "item already canceled")
			}
			return NewError(CodeInternal, "db error")
		}

		//残りの有効明細が無ければ注文ごとキャンセル
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		remaining := 0
		for _, it := range items {
			if it.ID != item.ID && it.Active {
				remaining++
			}
		}
		if remaining == 0 {
			if err := r.Orders().UpdateStatus(ctx, orderID, model.OrderStatusCanceled); err != nil {
				return NewError(CodeInternal, "db error")
			}
			*orderCanceled = true
			*canceled = o
		}

		return nil
	})
}

// 通知は確定後のベストエフォート。失敗してもログだけ。
func (u *OrderUsecase) notifyStatus(ctx context.Context, o model.Order, status model.OrderStatus) {
	if u.notifier == nil {
		return
	}
	if err := u.notifier.NotifyOrderStatus(ctx, o, status); err != nil {
		u.logger.Error("order status notification failed",
			zap.Int64("order_id", o.ID),
			zap.String("status", string(status)),
			zap.Error(err))
	}
}
