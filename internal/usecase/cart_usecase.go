package usecase

import (
	"context"
	"fmt"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/shopspring/decimal"
)

// CartUsecase は /cart の業務ロジック。
// 追加・数量変更の時点で在庫を「確認」するだけで、予約はしない。
// 予約（減算）はチェックアウトで行う。先にカートに入れた者勝ちではなく、
// 先にチェックアウトした者勝ち。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
	audit        *AuditRecorder
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
	audit *AuditRecorder,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
		audit:        audit,
	}
}

// price は現在のカタログ価格。カート合計はスナップショットではない。
type CartItemResponse struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	SellerID  int64           `json:"seller_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int64           `json:"quantity"`
}

type CartResponse struct {
	Items []CartItemResponse `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewError(CodeUnauthorized, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// AddToCart はカートに追加（同一商品は数量加算）。
// 在庫は追加時点の値で確認する。予約はしない。
func (u *CartUsecase) AddToCart(ctx context.Context, actor model.Actor, in AddCartInput) (CartResponse, error) {
	resp, err := u.addToCart(ctx, actor.UserID, in)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionAddCartItem,
		TargetID: in.ProductID,
		Outcome:  outcomeOf(err),
		After:    fmt.Sprintf(`{"quantity":%d}`, in.Quantity),
	})
	return resp, err
}

func (u *CartUsecase) addToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewError(CodeUnauthorized, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewError(CodeValidation, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewError(CodeValidation, "invalid quantity")
	}

	// ACTIVEカート取得（無ければ作成）
	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewError(CodeNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewError(CodeNotFound, "product not found")
	}

	// 既存数量と合算して在庫と比較
	var existingQty int64 = 0
	existing, err := u.cartItemRepo.FindByCartAndProduct(ctx, cart.ID, in.ProductID)
	if err == nil {
		existingQty = existing.Quantity
	} else if err != repo.ErrNotFound {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}

	if existingQty+in.Quantity > p.Stock {
		return CartResponse{}, NewError(CodeInsufficientInventory, "insufficient stock")
	}

	// Upsert（同一商品は加算）。名前・出品者・説明は追加時点のスナップショット。
	item := model.CartItem{
		CartID:              cart.ID,
		ProductID:           in.ProductID,
		SellerID:            p.SellerID,
		ProductNameSnapshot: p.Name,
		DescriptionSnapshot: p.Description,
		Quantity:            in.Quantity,
	}
	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, item); err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// 数量変更（所有チェック＋在庫チェック）。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, actor model.Actor, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	resp, err := u.updateCartItem(ctx, actor.UserID, cartItemID, in)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionUpdateCartItem,
		TargetID: cartItemID,
		Outcome:  outcomeOf(err),
		After:    fmt.Sprintf(`{"quantity":%d}`, in.Quantity),
	})
	return resp, err
}

func (u *CartUsecase) updateCartItem(ctx context.Context, userID int64, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewError(CodeUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewError(CodeValidation, "invalid id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewError(CodeValidation, "invalid quantity")
	}

	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}
	if !owned {
		return CartResponse{}, NewError(CodeNotFound, "not found")
	}

	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewError(CodeNotFound, "not found")
	}
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}

	//追加時と同じ基準で在庫を確認し直す
	p, err := u.productRepo.FindByID(ctx, item.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewError(CodeNotFound, "product not found")
	}
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewError(CodeNotFound, "product not found")
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, NewError(CodeInsufficientInventory, "insufficient stock")
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewError(CodeNotFound, "not found")
		}
		return CartResponse{}, NewError(CodeInternal, "db error")
	}

	cart, err := u.cartRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// 明細削除
func (u *CartUsecase) DeleteCartItem(ctx context.Context, actor model.Actor, cartItemID int64) (CartResponse, error) {
	resp, err := u.deleteCartItem(ctx, actor.UserID, cartItemID)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionDeleteCartItem,
		TargetID: cartItemID,
		Outcome:  outcomeOf(err),
	})
	return resp, err
}

func (u *CartUsecase) deleteCartItem(ctx context.Context, userID int64, cartItemID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewError(CodeUnauthorized, "unauthorized")
	}
	if cartItemID <= 0 {
		return CartResponse{}, NewError(CodeValidation, "invalid id")
	}

	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, userID)
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}
	if !owned {
		return CartResponse{}, NewError(CodeNotFound, "not found")
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if err == repo.ErrNotFound {
			return CartResponse{}, NewError(CodeNotFound, "not found")
		}
		return CartResponse{}, NewError(CodeInternal, "db error")
	}

	cart, err := u.cartRepo.FindActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}
	return u.buildCartResponse(ctx, cart.ID)
}

// cartIDの明細をまとめてCartResponseを作る。
// 合計は常に現在のカタログ価格×数量。注文のスナップショット合計とは別物。
func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, NewError(CodeInternal, "db error")
	}

	respItems := make([]CartItemResponse, 0, len(items))
	total := decimal.Zero

	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		//消えた商品・非公開商品だけ表示から外す。DB障害は隠さない。
		if err == repo.ErrNotFound {
			continue
		}
		if err != nil {
			return CartResponse{}, NewError(CodeInternal, "db error")
		}
		if !p.IsActive {
			continue
		}

		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			SellerID:  it.SellerID,
			Name:      it.ProductNameSnapshot,
			Price:     p.Price,
			Quantity:  it.Quantity,
		})

		total = total.Add(p.Price.Mul(decimal.NewFromInt(it.Quantity)))
	}

	return CartResponse{Items: respItems, Total: total}, nil
}
