package usecase

import (
	"context"
	"fmt"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"go.uber.org/zap"
)

// AdminOrderUsecase は管理者による注文一覧と全体ステータス更新。
type AdminOrderUsecase struct {
	tx       repo.TransactionManager
	audit    *AuditRecorder
	notifier OrderNotifier
	logger   *zap.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, audit *AuditRecorder, notifier OrderNotifier, logger *zap.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, audit: audit, notifier: notifier, logger: logger}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧（全ユーザー分）
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	if f.Page < 1 {
		return []OrderOutput{}, NewError(CodeValidation, "invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, NewError(CodeValidation, "invalid limit")
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
		if err != nil {
			return NewError(CodeInternal, "db error")
		}

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
		return []OrderOutput{}, err
	}
	return outs, nil
}

// UpdateStatus は配送ステータスの更新。
// 前進は1ステップずつ。スキップも後退も不可。CANCELEDだけは
// PENDING/CONFIRMED/PROCESSINGから直接入れる（在庫戻し付き）。
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actor model.Actor, orderID int64, in AdminUpdateOrderStatusInput) error {
	var before, after model.OrderStatus
	var updated model.Order
	err := u.updateStatus(ctx, actor, orderID, in, &before, &after, &updated)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionUpdateOrderStatus,
		TargetID: orderID,
		Outcome:  outcomeOf(err),
		Before:   fmt.Sprintf(`{"status":%q}`, string(before)),
		After:    fmt.Sprintf(`{"status":%q}`, string(after)),
	})
	if err == nil && before != after {
		u.notifyStatus(ctx, updated, after)
	}
	return err
}

func (u *AdminOrderUsecase) updateStatus(ctx context.Context, actor model.Actor, orderID int64, in AdminUpdateOrderStatusInput, before, after *model.OrderStatus, updated *model.Order) error {
	if !actor.IsAdmin() {
		return NewError(CodeUnauthorized, "admin only")
	}
	if orderID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}

	newStatus := model.OrderStatus(in.Status)
	switch newStatus {
	case model.OrderStatusConfirmed, model.OrderStatusProcessing,
		model.OrderStatusShipped, model.OrderStatusOutForDelivery,
		model.OrderStatusDelivered, model.OrderStatusCanceled:
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

		*before = o.Status
		*after = o.Status

		// すでに同じなら何もしない
		if o.Status == newStatus {
			return nil
		}
		if model.IsTerminalStatus(o.Status) {
			return NewError(CodeInvalidState, "order in terminal status")
		}

		if newStatus == model.OrderStatusCanceled {
			if !model.CanCancelDelivery(o.Status) {
				return NewError(CodeInvalidState, "cannot cancel in current status")
			}
			if err := cancelAllActiveItems(ctx, r, orderID); err != nil {
				return err
			}
		} else {
			//前進は1ステップだけ
			next, ok := model.NextDeliveryStatus(o.Status)
			if !ok || next != newStatus {
				return NewError(CodeInvalidState, "illegal transition")
			}
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, newStatus); err != nil {
			if err == repo.ErrNotFound {
				return NewError(CodeNotFound, "not found")
			}
			return NewError(CodeInternal, "db error")
		}

		*after = newStatus
		*updated = o
		return nil
	})
}

func (u *AdminOrderUsecase) notifyStatus(ctx context.Context, o model.Order, status model.OrderStatus) {
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
