package usecase

import (
	"context"
	"fmt"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReturnUsecase は配達済み注文の明細に対する返品サブ注文。
// REQUESTED→APPROVED/REJECTED→REPLACED/REFUNDED。
type ReturnUsecase struct {
	tx       repo.TransactionManager
	audit    *AuditRecorder
	notifier OrderNotifier
	logger   *zap.Logger
}

func NewReturnUsecase(tx repo.TransactionManager, audit *AuditRecorder, notifier OrderNotifier, logger *zap.Logger) *ReturnUsecase {
	return &ReturnUsecase{tx: tx, audit: audit, notifier: notifier, logger: logger}
}

type CreateReturnInput struct {
	OrderID   int64
	ProductID int64
	//REPLACE か REFUND
	Kind string
}

// CreateReturn は返品サブ注文を作る。対象は自分のDELIVERED注文の有効明細だけ。
func (u *ReturnUsecase) CreateReturn(ctx context.Context, actor model.Actor, in CreateReturnInput) (OrderOutput, error) {
	out, err := u.createReturn(ctx, actor.UserID, in)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionCreateReturn,
		TargetID: out.ID,
		Outcome:  outcomeOf(err),
		Before:   fmt.Sprintf(`{"order_id":%d,"product_id":%d}`, in.OrderID, in.ProductID),
	})
	return out, err
}

func (u *ReturnUsecase) createReturn(ctx context.Context, userID int64, in CreateReturnInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewError(CodeUnauthorized, "unauthorized")
	}
	if in.OrderID <= 0 || in.ProductID <= 0 {
		return OrderOutput{}, NewError(CodeValidation, "invalid id")
	}

	var kind model.OrderType
	switch in.Kind {
	case "REPLACE":
		kind = model.OrderTypeReturnReplace
	case "REFUND":
		kind = model.OrderTypeReturnRefund
	default:
		return OrderOutput{}, NewError(CodeValidation, "invalid kind")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		parent, err := r.Orders().FindByID(ctx, in.OrderID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if parent.UserID != userID {
			return NewError(CodeNotFound, "not found")
		}
		if parent.Type != model.OrderTypeDelivery || parent.Status != model.OrderStatusDelivered {
			return NewError(CodeInvalidState, "order not delivered")
		}

		item, err := r.OrderItems().FindByOrderAndProduct(ctx, in.OrderID, in.ProductID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "item not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if !item.Active {
			return NewError(CodeAlreadyCanceled, "item already canceled")
		}

		//同じ明細に未終了の返品が残っていたら二重に受け付けない
		open, err := r.Orders().HasOpenReturn(ctx, in.OrderID, in.ProductID)
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if open {
			return NewError(CodeInvalidState, "return already in progress")
		}

		now := time.Now()
		parentID := parent.ID
		total := item.UnitPriceSnapshot.Mul(decimal.NewFromInt(item.Quantity))

		returnOrder := model.Order{
			UserID:        userID,
			Type:          kind,
			ParentOrderID: &parentID,
			Status:        model.ReturnStatusRequested,
			TotalPrice:    total,
			PaymentMethod: parent.PaymentMethod,
			//サーバー側で生成する（クライアントのキーではない）
			IdempotencyKey: uuid.NewString(),
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		returnID, err := r.Orders().Create(ctx, returnOrder)
		if err != nil {
			return NewError(CodeInternal, "db error")
		}

		//親明細のスナップショットを引き継ぐ
		items := []model.OrderItem{{
			ProductID:           item.ProductID,
			SellerID:            item.SellerID,
			ProductNameSnapshot: item.ProductNameSnapshot,
			UnitPriceSnapshot:   item.UnitPriceSnapshot,
			Quantity:            item.Quantity,
			Active:              true,
			Status:              model.OrderProductStatusRequested,
			CreatedAt:           now,
		}}
		if err := r.OrderItems().CreateBulk(ctx, returnID, items); err != nil {
			return NewError(CodeInternal, "db error")
		}

		returnOrder.ID = returnID
		out = toOrderOutput(returnOrder, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type ReviewReturnInput struct {
	Approve bool
}

// ReviewReturn は管理者による承認/却下。REQUESTEDのときだけ。
func (u *ReturnUsecase) ReviewReturn(ctx context.Context, actor model.Actor, returnOrderID int64, in ReviewReturnInput) error {
	var reviewed model.Order
	var newStatus model.OrderStatus
	err := u.reviewReturn(ctx, actor, returnOrderID, in, &reviewed, &newStatus)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionReviewReturn,
		TargetID: returnOrderID,
		Outcome:  outcomeOf(err),
		After:    fmt.Sprintf(`{"status":%q}`, string(newStatus)),
	})
	if err == nil {
		u.notifyStatus(ctx, reviewed, newStatus)
	}
	return err
}

func (u *ReturnUsecase) reviewReturn(ctx context.Context, actor model.Actor, returnOrderID int64, in ReviewReturnInput, reviewed *model.Order, newStatus *model.OrderStatus) error {
	if !actor.IsAdmin() {
		return NewError(CodeUnauthorized, "admin only")
	}
	if returnOrderID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}

	target := model.ReturnStatusRejected
	if in.Approve {
		target = model.ReturnStatusApproved
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, returnOrderID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if !o.Type.IsReturn() {
			return NewError(CodeInvalidState, "not a return order")
		}
		if !model.CanTransitionReturn(o.Status, target) {
			return NewError(CodeInvalidState, "illegal transition")
		}

		if err := r.Orders().UpdateStatus(ctx, returnOrderID, target); err != nil {
			return NewError(CodeInternal, "db error")
		}

		*reviewed = o
		*newStatus = target
		return nil
	})
}

// FinalizeReturn はAPPROVEDの返品を確定させる。
// REFUND: 返ってきた数量を在庫へ戻し、親明細をactive=falseにする。
// REPLACE: 交換出荷分を先に在庫から確保し、確保できたら返品分を戻す。
// 確保できなければINSUFFICIENT_INVENTORYで確定不可。親明細はそのまま。
func (u *ReturnUsecase) FinalizeReturn(ctx context.Context, actor model.Actor, returnOrderID int64) error {
	var finalized model.Order
	var newStatus model.OrderStatus
	err := u.finalizeReturn(ctx, actor, returnOrderID, &finalized, &newStatus)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionFinalizeReturn,
		TargetID: returnOrderID,
		Outcome:  outcomeOf(err),
		After:    fmt.Sprintf(`{"status":%q}`, string(newStatus)),
	})
	if err == nil {
		u.notifyStatus(ctx, finalized, newStatus)
	}
	return err
}

func (u *ReturnUsecase) finalizeReturn(ctx context.Context, actor model.Actor, returnOrderID int64, finalized *model.Order, newStatus *model.OrderStatus) error {
	if !actor.IsAdmin() {
		return NewError(CodeUnauthorized, "admin only")
	}
	if returnOrderID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, returnOrderID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if !o.Type.IsReturn() {
			return NewError(CodeInvalidState, "not a return order")
		}

		target := model.ReturnStatusReplaced
		if o.Type == model.OrderTypeReturnRefund {
			target = model.ReturnStatusRefunded
		}
		if !model.CanTransitionReturn(o.Status, target) {
			return NewError(CodeInvalidState, "illegal transition")
		}

		if o.ParentOrderID == nil {
			return NewError(CodeInternal, "return without parent")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, returnOrderID)
		if err != nil || len(items) == 0 {
			return NewError(CodeInternal, "db error")
		}
		line := items[0]

		parentItem, err := r.OrderItems().FindByOrderAndProduct(ctx, *o.ParentOrderID, line.ProductID)
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "item not found")
		}
		if err != nil {
			return NewError(CodeInternal, "db error")
		}
		if !parentItem.Active {
			return NewError(CodeAlreadyCanceled, "item already canceled")
		}

		if o.Type == model.OrderTypeReturnRefund {
			//返品された数量を在庫へ戻す
			if err := r.Inventory().IncreaseStock(ctx, line.ProductID, line.Quantity); err != nil {
				return NewError(CodeInternal, "db error")
			}
			if err := r.OrderItems().Deactivate(ctx, parentItem.ID); err != nil {
				return NewError(CodeInternal, "db error")
			}
		} else {
			//交換出荷分を確保してから返品分を戻す。返ってきた品はそのまま
			//売れるとは限らないので、交換は今ある在庫から出す。
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return NewError(CodeInternal, "db error")
			}
			if !ok {
				return NewError(CodeInsufficientInventory, "insufficient stock for replacement")
			}
			if err := r.Inventory().IncreaseStock(ctx, line.ProductID, line.Quantity); err != nil {
				return NewError(CodeInternal, "db error")
			}
		}

		if err := r.Orders().UpdateStatus(ctx, returnOrderID, target); err != nil {
			return NewError(CodeInternal, "db error")
		}

		*finalized = o
		*newStatus = target
		return nil
	})
}

func (u *ReturnUsecase) notifyStatus(ctx context.Context, o model.Order, status model.OrderStatus) {
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
