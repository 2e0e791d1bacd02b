package usecase

import (
	"context"
	"fmt"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// SellerOrderUsecase は出品者の作業キューと明細ステータス更新。
// 明細ステータスは同じ注文内でも明細ごとに独立して動く。
type SellerOrderUsecase struct {
	tx    repo.TransactionManager
	audit *AuditRecorder
}

func NewSellerOrderUsecase(tx repo.TransactionManager, audit *AuditRecorder) *SellerOrderUsecase {
	return &SellerOrderUsecase{tx: tx, audit: audit}
}

type SellerUpdateItemStatusInput struct {
	Status string
}

// ListPendingOrders は出品者の商品を含む未完了注文。
// CANCELED/DELIVEREDは作業対象外なので出さない。明細は自分の分だけ。
func (u *SellerOrderUsecase) ListPendingOrders(ctx context.Context, actor model.Actor) ([]OrderOutput, error) {
	if !actor.IsSeller() {
		return []OrderOutput{}, NewError(CodeUnauthorized, "seller only")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, err := r.Orders().ListPendingBySellerID(ctx, actor.UserID)
		if err != nil {
			return NewError(CodeInternal, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewError(CodeInternal, "db error")
			}

			mine := make([]model.OrderItem, 0, len(items))
			for _, it := range items {
				if it.SellerID == actor.UserID {
					mine = append(mine, it)
				}
			}
			outs = append(outs, toOrderOutput(o, mine))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

// UpdateItemStatus は自分の明細だけのステータス更新。
// REQUESTED→ACCEPTED/REJECTED、ACCEPTED→READY。それ以外は不正遷移。
func (u *SellerOrderUsecase) UpdateItemStatus(ctx context.Context, actor model.Actor, orderID int64, productID int64, in SellerUpdateItemStatusInput) error {
	var before, after model.OrderProductStatus
	err := u.updateItemStatus(ctx, actor, orderID, productID, in, &before, &after)
	u.audit.Record(ctx, AuditEntry{
		Actor:  actor,
		Action: model.AuditActionUpdateItemStatus,
		//監査対象は注文内の商品
		TargetID: productID,
		Outcome:  outcomeOf(err),
		Before:   fmt.Sprintf(`{"order_id":%d,"status":%q}`, orderID, string(before)),
		After:    fmt.Sprintf(`{"status":%q}`, string(after)),
	})
	return err
}

func (u *SellerOrderUsecase) updateItemStatus(ctx context.Context, actor model.Actor, orderID int64, productID int64, in SellerUpdateItemStatusInput, before, after *model.OrderProductStatus) error {
	if !actor.IsSeller() {
		return NewError(CodeUnauthorized, "seller only")
	}
	if orderID <= 0 || productID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}

	newStatus := model.OrderProductStatus(in.Status)
	switch newStatus {
	case model.OrderProductStatusAccepted, model.OrderProductStatusRejected, model.OrderProductStatusReady:
		// OK
	default:
		return NewError(CodeValidation, "invalid status")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if o.Type.IsReturn() {
			return NewError(CodeInvalidState, "not a delivery order")
		}
		if model.IsTerminalStatus(o.Status) {
			return NewError(CodeInvalidState, "order in terminal status")
		}

		item, err := r.OrderItems().FindByOrderAndProduct(ctx, orderID, productID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "item not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if item.SellerID != actor.UserID {
			return NewError(CodeUnauthorized, "not your item")
		}
		if !item.Active {
			return NewError(CodeInvalidState, "item canceled")
		}

		*before = item.Status

		if !model.CanTransitionItem(item.Status, newStatus) {
			return NewError(CodeInvalidState, "illegal transition")
		}

		if err := r.OrderItems().UpdateStatus(ctx, item.ID, newStatus); err != nil {
			if err == repo.ErrNotFound {
				return NewError(CodeNotFound, "item not found")
			}
			return NewError(CodeInternal, "db error")
		}

		*after = newStatus
		return nil
	})
}
