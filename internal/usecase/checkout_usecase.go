package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CheckoutUsecase はカート明細を注文へ変換する。
//
// 予約（在庫減算）はトランザクションの外で行う。1商品につき1文の条件付き
// UPDATEなので同時予約でも売り越さない。予約後に注文の書き込みが失敗したら
// 補償（在庫戻し）を必ず実行する。予約だけ残して帰ることは許されない。
type CheckoutUsecase struct {
	tx         repo.TransactionManager
	inventory  repo.InventoryRepository
	products   repo.ProductRepository
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	carts      repo.CartRepository
	cartItems  repo.CartItemRepository
	audit      *AuditRecorder
	logger     *zap.Logger
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	inventory repo.InventoryRepository,
	products repo.ProductRepository,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	carts repo.CartRepository,
	cartItems repo.CartItemRepository,
	audit *AuditRecorder,
	logger *zap.Logger,
) *CheckoutUsecase {
	return &CheckoutUsecase{
		tx:         tx,
		inventory:  inventory,
		products:   products,
		orders:     orders,
		orderItems: orderItems,
		carts:      carts,
		cartItems:  cartItems,
		audit:      audit,
		logger:     logger,
	}
}

type PlaceOrderInput struct {
	ProductID      int64
	PaymentMethod  string
	IdempotencyKey string
}

type PlaceOrdersInput struct {
	ProductIDs     []int64
	PaymentMethod  string
	IdempotencyKey string
}

// PlaceOrder はカートの1商品を単品注文にする。
func (u *CheckoutUsecase) PlaceOrder(ctx context.Context, actor model.Actor, in PlaceOrderInput) (OrderOutput, error) {
	return u.PlaceOrders(ctx, actor, PlaceOrdersInput{
		ProductIDs:     []int64{in.ProductID},
		PaymentMethod:  in.PaymentMethod,
		IdempotencyKey: in.IdempotencyKey,
	})
}

// PlaceOrders はカートの複数商品を1つの注文にする。
// 全部成功か全部なかったことにするかの二択。1つでも在庫が足りなければ
// そこまでの予約を全て戻して失敗を返す。カートには触らない。
func (u *CheckoutUsecase) PlaceOrders(ctx context.Context, actor model.Actor, in PlaceOrdersInput) (OrderOutput, error) {
	out, err := u.placeOrders(ctx, actor.UserID, in)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionCheckout,
		TargetID: out.ID,
		Outcome:  outcomeOf(err),
		After:    fmt.Sprintf(`{"products":%d}`, len(in.ProductIDs)),
	})
	return out, err
}

type reservation struct {
	productID int64
	quantity  int64
}

func (u *CheckoutUsecase) placeOrders(ctx context.Context, userID int64, in PlaceOrdersInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewError(CodeUnauthorized, "unauthorized")
	}
	if len(in.ProductIDs) == 0 {
		return OrderOutput{}, NewError(CodeValidation, "no products")
	}
	seen := make(map[int64]bool, len(in.ProductIDs))
	for _, id := range in.ProductIDs {
		if id <= 0 || seen[id] {
			return OrderOutput{}, NewError(CodeValidation, "invalid product_ids")
		}
		seen[id] = true
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return OrderOutput{}, NewError(CodeValidation, "invalid payment_method")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, NewError(CodeValidation, "invalid idempotency_key")
	}

	// 同じキーなら同じ結果
	if existing, found, err := u.orders.FindByIdempotencyKey(ctx, userID, key); err != nil {
		return OrderOutput{}, NewError(CodeInternal, "db error")
	} else if found {
		items, err := u.orderItems.ListByOrderID(ctx, existing.ID)
		if err != nil {
			return OrderOutput{}, NewError(CodeInternal, "db error")
		}
		return toOrderOutput(existing, items), nil
	}

	//ACTIVEカートとカート明細の取得
	cart, err := u.carts.FindActiveByUserID(ctx, userID)
	if err == repo.ErrNotFound {
		return OrderOutput{}, NewError(CodeNotFound, "cart empty")
	}
	if err != nil {
		return OrderOutput{}, NewError(CodeInternal, "db error")
	}

	cartLines := make([]model.CartItem, 0, len(in.ProductIDs))
	for _, pid := range in.ProductIDs {
		ci, err := u.cartItems.FindByCartAndProduct(ctx, cart.ID, pid)
		if err == repo.ErrNotFound {
			return OrderOutput{}, NewError(CodeNotFound, "product not in cart")
		}
		if err != nil {
			return OrderOutput{}, NewError(CodeInternal, "db error")
		}
		cartLines = append(cartLines, ci)
	}

	//単価は注文確定時点のカタログ価格をスナップショットする
	prices := make(map[int64]decimal.Decimal, len(cartLines))
	for _, ci := range cartLines {
		p, err := u.products.FindByID(ctx, ci.ProductID)
		if err == repo.ErrNotFound {
			return OrderOutput{}, NewError(CodeNotFound, "product not found")
		}
		if err != nil {
			return OrderOutput{}, NewError(CodeInternal, "db error")
		}
		if !p.IsActive {
			return OrderOutput{}, NewError(CodeNotFound, "product not found")
		}
		prices[ci.ProductID] = p.Price
	}

	//予約フェーズ。1つでも失敗したらそこまでの予約を全て戻す。
	reserved := make([]reservation, 0, len(cartLines))
	for _, ci := range cartLines {
		ok, err := u.inventory.DecreaseStockIfEnough(ctx, ci.ProductID, ci.Quantity)
		if err != nil {
			u.restoreReservations(ctx, reserved)
			return OrderOutput{}, NewError(CodeInternal, "db error")
		}
		if !ok {
			u.restoreReservations(ctx, reserved)
			return OrderOutput{}, NewError(CodeInsufficientInventory, "insufficient stock")
		}
		reserved = append(reserved, reservation{productID: ci.ProductID, quantity: ci.Quantity})
	}

	//スナップショット
	now := time.Now()
	orderItems := make([]model.OrderItem, 0, len(cartLines))
	total := decimal.Zero
	for _, ci := range cartLines {
		unit := prices[ci.ProductID]
		orderItems = append(orderItems, model.OrderItem{
			ProductID:           ci.ProductID,
			SellerID:            ci.SellerID,
			ProductNameSnapshot: ci.ProductNameSnapshot,
			UnitPriceSnapshot:   unit,
			Quantity:            ci.Quantity,
			Active:              true,
			Status:              model.OrderProductStatusRequested,
			CreatedAt:           now,
		})
		total = total.Add(unit.Mul(decimal.NewFromInt(ci.Quantity)))
	}

	var out OrderOutput
	//競合で既存注文を返したかどうか。trueならこの呼び出し分の予約は余りになる。
	conflicted := false

	//注文の書き込みは1トランザクション。失敗したら予約を補償で戻す。
	txErr := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orderID, err := r.Orders().Create(ctx, model.Order{
			UserID:         userID,
			Type:           model.OrderTypeDelivery,
			Status:         model.OrderStatusPending,
			TotalPrice:     total,
			PaymentMethod:  in.PaymentMethod,
			IdempotencyKey: key,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		if err != nil {
			//競合（同時に同じキーが入った等）はもう一回検索して同じ結果を返す
			ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err2 == nil && found2 {
				items2, err3 := r.OrderItems().ListByOrderID(ctx, ex2.ID)
				if err3 != nil {
					return NewError(CodeInternal, "db error")
				}
				out = toOrderOutput(ex2, items2)
				conflicted = true
				return nil
			}
			return NewError(CodeInternal, "db error")
		}

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewError(CodeInternal, "db error")
		}

		//注文になった明細だけカートから外す
		if err := r.CartItems().DeleteByCartAndProducts(ctx, cart.ID, in.ProductIDs); err != nil {
			return NewError(CodeInternal, "db error")
		}

		created := model.Order{
			ID:            orderID,
			UserID:        userID,
			Type:          model.OrderTypeDelivery,
			Status:        model.OrderStatusPending,
			TotalPrice:    total,
			PaymentMethod: in.PaymentMethod,
			CreatedAt:     now,
		}
		out = toOrderOutput(created, orderItems)
		return nil
	})

	if txErr != nil {
		//予約済み在庫を注文なしで残してはいけない
		u.restoreReservations(ctx, reserved)
		return OrderOutput{}, txErr
	}

	//既存注文を返す場合、在庫を消費したのはその注文側。
	//この呼び出しで取った予約は対応する注文が無いので戻す。
	if conflicted {
		u.restoreReservations(ctx, reserved)
	}

	return out, nil
}

// 補償。失敗したらログに残す（在庫が静かに漏れるのが最悪なので必ず痕跡を残す）。
func (u *CheckoutUsecase) restoreReservations(ctx context.Context, reserved []reservation) {
	for _, r := range reserved {
		if err := u.inventory.IncreaseStock(ctx, r.productID, r.quantity); err != nil {
			u.logger.Error("inventory restore failed",
				zap.Int64("product_id", r.productID),
				zap.Int64("quantity", r.quantity),
				zap.Error(err))
		}
	}
}
