package usecase_test

import (
	"context"
	"testing"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newProductUsecase(products *ProductRepoMock, inv repo.InventoryRepository, audit *AuditRepoStub) *usecase.ProductUsecase {
	return usecase.NewProductUsecase(products, inv, newTestRecorder(audit))
}

// =====================
// Public catalog
// =====================

// 非公開商品の詳細は404
func TestProduct_Get_Inactive_NotFound(t *testing.T) {
	productsRepo := new(ProductRepoMock)
	productsRepo.On("FindByID", mock.Anything, int64(100)).
		Return(model.Product{ID: 100, IsActive: false}, nil)

	uc := newProductUsecase(productsRepo, new(InventoryRepoMock), &AuditRepoStub{})

	_, err := uc.GetProduct(context.Background(), 100)
	assertErrCode(t, err, usecase.CodeNotFound)
}

// =====================
// Seller CRUD
// =====================

func TestProduct_Create_NonSeller_Unauthorized(t *testing.T) {
	uc := newProductUsecase(new(ProductRepoMock), new(InventoryRepoMock), &AuditRepoStub{})

	_, err := uc.CreateProduct(context.Background(), userActor(1), usecase.CreateProductInput{
		Name: "widget", Price: decimal.NewFromInt(500), Stock: 5, IsActive: true,
	})
	assertErrCode(t, err, usecase.CodeUnauthorized)
}

func TestProduct_Create_NegativePrice(t *testing.T) {
	uc := newProductUsecase(new(ProductRepoMock), new(InventoryRepoMock), &AuditRepoStub{})

	_, err := uc.CreateProduct(context.Background(), sellerActor(2), usecase.CreateProductInput{
		Name: "widget", Price: decimal.NewFromInt(-1), Stock: 5,
	})
	assertErrCode(t, err, usecase.CodeValidation)
}

// 他の出品者の商品は更新できない
func TestProduct_Update_NotOwner(t *testing.T) {
	productsRepo := new(ProductRepoMock)
	productsRepo.On("FindByID", mock.Anything, int64(100)).
		Return(model.Product{ID: 100, SellerID: 3, IsActive: true}, nil)

	uc := newProductUsecase(productsRepo, new(InventoryRepoMock), &AuditRepoStub{})

	err := uc.UpdateProduct(context.Background(), sellerActor(2), 100, usecase.UpdateProductInput{
		Name: "widget", Price: decimal.NewFromInt(500),
	})
	assertErrCode(t, err, usecase.CodeUnauthorized)

	productsRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

// 管理者は他の出品者の商品を削除できる
func TestProduct_Delete_AdminCanDeleteAny(t *testing.T) {
	productsRepo := new(ProductRepoMock)
	productsRepo.On("FindByID", mock.Anything, int64(100)).
		Return(model.Product{ID: 100, SellerID: 3, IsActive: true}, nil)
	productsRepo.On("SoftDelete", mock.Anything, int64(100)).Return(nil)

	uc := newProductUsecase(productsRepo, new(InventoryRepoMock), &AuditRepoStub{})

	err := uc.DeleteProduct(context.Background(), adminActor(9), 100)
	assert.NoError(t, err)
	productsRepo.AssertExpectations(t)
}

// =====================
// SetStock
// =====================

func TestProduct_SetStock_Negative(t *testing.T) {
	uc := newProductUsecase(new(ProductRepoMock), new(InventoryRepoMock), &AuditRepoStub{})

	err := uc.SetStock(context.Background(), sellerActor(2), 100, usecase.SetStockInput{Stock: -1, Reason: "count"})
	assertErrCode(t, err, usecase.CodeValidation)
}

func TestProduct_SetStock_ReasonRequired(t *testing.T) {
	uc := newProductUsecase(new(ProductRepoMock), new(InventoryRepoMock), &AuditRepoStub{})

	err := uc.SetStock(context.Background(), sellerActor(2), 100, usecase.SetStockInput{Stock: 10})
	assertErrContains(t, err, "reason required")
}

// 在庫セットは絶対値。調整履歴にdeltaと理由が残り、監査ログも書かれる
func TestProduct_SetStock_RecordsAdjustmentDelta(t *testing.T) {
	ctx := context.Background()

	productsRepo := new(ProductRepoMock)
	invRepo := new(InventoryRepoMock)

	productsRepo.On("FindByID", mock.Anything, int64(100)).
		Return(model.Product{ID: 100, SellerID: 2, IsActive: true, Stock: 7}, nil)
	invRepo.On("SetStock", mock.Anything, int64(100), int64(12)).Return(nil)
	invRepo.On("CreateAdjustment", mock.Anything, mock.MatchedBy(func(a model.InventoryAdjustment) bool {
		return a.ProductID == 100 &&
			a.ActorUserID == 2 &&
			a.Delta == 5 &&
			a.Reason == "restock"
	})).Return(nil)

	audit := &AuditRepoStub{}
	uc := newProductUsecase(productsRepo, invRepo, audit)

	err := uc.SetStock(ctx, sellerActor(2), 100, usecase.SetStockInput{Stock: 12, Reason: "restock"})
	assert.NoError(t, err)

	invRepo.AssertExpectations(t)

	last, ok := audit.Last()
	assert.True(t, ok)
	assert.Equal(t, model.AuditActionUpdateStock, last.Action)
	assert.Equal(t, int64(100), last.ResourceID)
	assert.Equal(t, `{"stock":12}`, last.AfterJSON)
}

// 他の出品者の在庫は触れない
func TestProduct_SetStock_NotOwner(t *testing.T) {
	productsRepo := new(ProductRepoMock)
	invRepo := new(InventoryRepoMock)

	productsRepo.On("FindByID", mock.Anything, int64(100)).
		Return(model.Product{ID: 100, SellerID: 3, IsActive: true, Stock: 7}, nil)

	uc := newProductUsecase(productsRepo, invRepo, &AuditRepoStub{})

	err := uc.SetStock(context.Background(), sellerActor(2), 100, usecase.SetStockInput{Stock: 12, Reason: "restock"})
	assertErrCode(t, err, usecase.CodeUnauthorized)

	invRepo.AssertNotCalled(t, "SetStock", mock.Anything, mock.Anything, mock.Anything)
}
