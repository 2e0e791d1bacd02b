package usecase

import (
	"context"
	"fmt"
	"strings"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/shopspring/decimal"
)

// ProductUsecase はカタログの公開閲覧と、出品者の商品・在庫管理。
type ProductUsecase struct {
	productRepo   repo.ProductRepository
	inventoryRepo repo.InventoryRepository
	audit         *AuditRecorder
}

func NewProductUsecase(
	productRepo repo.ProductRepository,
	inventoryRepo repo.InventoryRepository,
	audit *AuditRecorder,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		audit:         audit,
	}
}

type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	SellerID *int64
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) ListPublicProducts(ctx context.Context, in ListProductsInput) (ProductListOutput, error) {
	if in.Page < 1 {
		return ProductListOutput{}, NewError(CodeValidation, "invalid page")
	}
	if in.Limit < 1 || in.Limit > 100 {
		return ProductListOutput{}, NewError(CodeValidation, "invalid limit")
	}
	if len(in.Q) > 100 {
		return ProductListOutput{}, NewError(CodeValidation, "invalid q")
	}

	items, total, err := u.productRepo.ListPublic(ctx, repo.ProductListQuery{
		Page:     in.Page,
		Limit:    in.Limit,
		Q:        in.Q,
		SellerID: in.SellerID,
		MinPrice: in.MinPrice,
		MaxPrice: in.MaxPrice,
		Sort:     in.Sort,
	})
	if err != nil {
		return ProductListOutput{}, NewError(CodeInternal, "db error")
	}

	return ProductListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

func (u *ProductUsecase) GetProduct(ctx context.Context, id int64) (model.Product, error) {
	if id <= 0 {
		return model.Product{}, NewError(CodeValidation, "invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, id)
	if err == repo.ErrNotFound {
		return model.Product{}, NewError(CodeNotFound, "not found")
	}
	if err != nil {
		return model.Product{}, NewError(CodeInternal, "db error")
	}
	if !p.IsActive {
		//非公開商品は存在しない扱い
		return model.Product{}, NewError(CodeNotFound, "not found")
	}
	return p, nil
}

type CreateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int64
	IsActive    bool
}

// CreateProduct は出品者の新規出品。
func (u *ProductUsecase) CreateProduct(ctx context.Context, actor model.Actor, in CreateProductInput) (model.Product, error) {
	created, err := u.createProduct(ctx, actor, in)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionCreateProduct,
		TargetID: created.ID,
		Outcome:  outcomeOf(err),
		After:    fmt.Sprintf(`{"name":%q}`, in.Name),
	})
	return created, err
}

func (u *ProductUsecase) createProduct(ctx context.Context, actor model.Actor, in CreateProductInput) (model.Product, error) {
	if !actor.IsSeller() {
		return model.Product{}, NewError(CodeUnauthorized, "seller only")
	}
	if strings.TrimSpace(in.Name) == "" || len(in.Name) > 255 {
		return model.Product{}, NewError(CodeValidation, "invalid name")
	}
	if in.Price.IsNegative() {
		return model.Product{}, NewError(CodeValidation, "invalid price")
	}
	if in.Stock < 0 {
		return model.Product{}, NewError(CodeValidation, "invalid stock")
	}

	p, err := u.productRepo.Create(ctx, model.Product{
		SellerID:    actor.UserID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		IsActive:    in.IsActive,
	})
	if err != nil {
		return model.Product{}, NewError(CodeInternal, "db error")
	}
	return p, nil
}

type UpdateProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	IsActive    bool
}

// UpdateProduct は自分の商品だけ更新できる。在庫はSetStockで別管理。
func (u *ProductUsecase) UpdateProduct(ctx context.Context, actor model.Actor, productID int64, in UpdateProductInput) error {
	err := u.updateProduct(ctx, actor, productID, in)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionUpdateProduct,
		TargetID: productID,
		Outcome:  outcomeOf(err),
		After:    fmt.Sprintf(`{"name":%q,"is_active":%t}`, in.Name, in.IsActive),
	})
	return err
}

func (u *ProductUsecase) updateProduct(ctx context.Context, actor model.Actor, productID int64, in UpdateProductInput) error {
	if !actor.IsSeller() {
		return NewError(CodeUnauthorized, "seller only")
	}
	if productID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}
	if strings.TrimSpace(in.Name) == "" || len(in.Name) > 255 {
		return NewError(CodeValidation, "invalid name")
	}
	if in.Price.IsNegative() {
		return NewError(CodeValidation, "invalid price")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return NewError(CodeNotFound, "not found")
	}
	if err != nil {
		return NewError(CodeInternal, "db error")
	}
	if p.SellerID != actor.UserID {
		return NewError(CodeUnauthorized, "not your product")
	}

	p.Name = strings.TrimSpace(in.Name)
	p.Description = in.Description
	p.Price = in.Price
	p.IsActive = in.IsActive

	if err := u.productRepo.Update(ctx, p); err != nil {
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		return NewError(CodeInternal, "db error")
	}
	return nil
}

// DeleteProduct は論理削除。出品者本人か管理者だけ。
func (u *ProductUsecase) DeleteProduct(ctx context.Context, actor model.Actor, productID int64) error {
	err := u.deleteProduct(ctx, actor, productID)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionDeleteProduct,
		TargetID: productID,
		Outcome:  outcomeOf(err),
	})
	return err
}

func (u *ProductUsecase) deleteProduct(ctx context.Context, actor model.Actor, productID int64) error {
	if !actor.IsSeller() && !actor.IsAdmin() {
		return NewError(CodeUnauthorized, "forbidden")
	}
	if productID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return NewError(CodeNotFound, "not found")
	}
	if err != nil {
		return NewError(CodeInternal, "db error")
	}
	if !actor.IsAdmin() && p.SellerID != actor.UserID {
		return NewError(CodeUnauthorized, "not your product")
	}

	if err := u.productRepo.SoftDelete(ctx, productID); err != nil {
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		return NewError(CodeInternal, "db error")
	}
	return nil
}

type SetStockInput struct {
	Stock  int64
	Reason string
}

// SetStock は在庫の絶対値セット。注文フローの増減とは別系統で、
// 調整履歴（delta＋理由）を必ず残す。
func (u *ProductUsecase) SetStock(ctx context.Context, actor model.Actor, productID int64, in SetStockInput) error {
	err := u.setStock(ctx, actor, productID, in)
	u.audit.Record(ctx, AuditEntry{
		Actor:    actor,
		Action:   model.AuditActionUpdateStock,
		TargetID: productID,
		Outcome:  outcomeOf(err),
		After:    fmt.Sprintf(`{"stock":%d}`, in.Stock),
	})
	return err
}

func (u *ProductUsecase) setStock(ctx context.Context, actor model.Actor, productID int64, in SetStockInput) error {
	if !actor.IsSeller() && !actor.IsAdmin() {
		return NewError(CodeUnauthorized, "forbidden")
	}
	if productID <= 0 {
		return NewError(CodeValidation, "invalid id")
	}
	if in.Stock < 0 {
		return NewError(CodeValidation, "invalid stock")
	}
	if strings.TrimSpace(in.Reason) == "" {
		return NewError(CodeValidation, "reason required")
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if err == repo.ErrNotFound {
		return NewError(CodeNotFound, "not found")
	}
	if err != nil {
		return NewError(CodeInternal, "db error")
	}
	if !actor.IsAdmin() && p.SellerID != actor.UserID {
		return NewError(CodeUnauthorized, "not your product")
	}

	if err := u.inventoryRepo.SetStock(ctx, productID, in.Stock); err != nil {
		if err == repo.ErrNotFound {
			return NewError(CodeNotFound, "not found")
		}
		return NewError(CodeInternal, "db error")
	}

	if err := u.inventoryRepo.CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   productID,
		ActorUserID: actor.UserID,
		Delta:       in.Stock - p.Stock,
		Reason:      strings.TrimSpace(in.Reason),
	}); err != nil {
		return NewError(CodeInternal, "db error")
	}

	return nil
}
