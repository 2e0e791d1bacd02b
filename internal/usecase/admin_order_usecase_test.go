package usecase_test

import (
	"context"
	"testing"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
	"marketplace/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func newAdminOrderUsecase(tx *TxManagerMock, audit *AuditRepoStub, notifier usecase.OrderNotifier) *usecase.AdminOrderUsecase {
	return usecase.NewAdminOrderUsecase(tx, newTestRecorder(audit), notifier, zap.NewNop())
}

// =====================
// List
// =====================

func TestAdminOrder_List_InvalidPage(t *testing.T) {
	uc := newAdminOrderUsecase(new(TxManagerMock), &AuditRepoStub{}, nil)

	outs, err := uc.List(context.Background(), repo.AdminOrderListFilter{Page: 0, Limit: 20})
	assert.Equal(t, 0, len(outs))
	assertErrContains(t, err, "invalid page")
}

func TestAdminOrder_List_CallsItemsPerOrder(t *testing.T) {
	ctx := context.Background()

	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)

	f := repo.AdminOrderListFilter{Page: 1, Limit: 20}
	orders := []model.Order{
		{ID: 10, Status: model.OrderStatusPending},
		{ID: 11, Status: model.OrderStatusConfirmed},
	}
	ordersRepo.On("ListAdmin", mock.Anything, f).Return(orders, int64(2), nil)
	itemsRepo.On("ListByOrderID", mock.Anything, int64(10)).Return([]model.OrderItem{}, nil)
	itemsRepo.On("ListByOrderID", mock.Anything, int64(11)).Return([]model.OrderItem{}, nil)

	tx := new(TxManagerMock)
	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	uc := newAdminOrderUsecase(tx, &AuditRepoStub{}, nil)

	outs, err := uc.List(ctx, f)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(outs))

	ordersRepo.AssertExpectations(t)
	itemsRepo.AssertExpectations(t)
}

// =====================
// UpdateStatus
// =====================

func TestAdminOrder_UpdateStatus_NonAdmin_Unauthorized(t *testing.T) {
	uc := newAdminOrderUsecase(new(TxManagerMock), &AuditRepoStub{}, nil)

	err := uc.UpdateStatus(context.Background(), userActor(1), 10,
		usecase.AdminUpdateOrderStatusInput{Status: "CONFIRMED"})
	assertErrCode(t, err, usecase.CodeUnauthorized)
}

func TestAdminOrder_UpdateStatus_InvalidStatus(t *testing.T) {
	uc := newAdminOrderUsecase(new(TxManagerMock), &AuditRepoStub{}, nil)

	err := uc.UpdateStatus(context.Background(), adminActor(9), 10,
		usecase.AdminUpdateOrderStatusInput{Status: "XXX"})
	assertErrContains(t, err, "invalid status")
}

// 前進は1ステップずつ。PENDINGからSHIPPEDへのスキップは不正遷移
func TestAdminOrder_UpdateStatus_SkipStep_Fails(t *testing.T) {
	ctx := context.Background()

	ordersRepo := new(OrderRepoMock)
	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Type: model.OrderTypeDelivery, Status: model.OrderStatusPending,
	}, nil)

	tx := new(TxManagerMock)
	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	uc := newAdminOrderUsecase(tx, &AuditRepoStub{}, nil)

	err := uc.UpdateStatus(ctx, adminActor(9), 10, usecase.AdminUpdateOrderStatusInput{Status: "SHIPPED"})
	assertErrCode(t, err, usecase.CodeInvalidState)

	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

// 後退も不可（DELIVEREDは終端）
func TestAdminOrder_UpdateStatus_Backward_Fails(t *testing.T) {
	ctx := context.Background()

	ordersRepo := new(OrderRepoMock)
	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Type: model.OrderTypeDelivery, Status: model.OrderStatusDelivered,
	}, nil)

	tx := new(TxManagerMock)
	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	uc := newAdminOrderUsecase(tx, &AuditRepoStub{}, nil)

	err := uc.UpdateStatus(ctx, adminActor(9), 10, usecase.AdminUpdateOrderStatusInput{Status: "CONFIRMED"})
	assertErrCode(t, err, usecase.CodeInvalidState)
}

// 同じステータスへの更新は何もしないで成功
func TestAdminOrder_UpdateStatus_SameStatus_NoOp(t *testing.T) {
	ctx := context.Background()

	ordersRepo := new(OrderRepoMock)
	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Type: model.OrderTypeDelivery, Status: model.OrderStatusConfirmed,
	}, nil)

	tx := new(TxManagerMock)
	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	notifier := &NotifierMock{}
	uc := newAdminOrderUsecase(tx, &AuditRepoStub{}, notifier)

	err := uc.UpdateStatus(ctx, adminActor(9), 10, usecase.AdminUpdateOrderStatusInput{Status: "CONFIRMED"})
	assert.NoError(t, err)

	ordersRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 0, len(notifier.Events))
}

// 1ステップ前進＋監査＋通知
func TestAdminOrder_UpdateStatus_OneStepForward(t *testing.T) {
	ctx := context.Background()

	ordersRepo := new(OrderRepoMock)
	ordersRepo.On("FindByID", mock.Anything, int64(10)).Return(model.Order{
		ID: 10, Type: model.OrderTypeDelivery, Status: model.OrderStatusShipped,
	}, nil)
	ordersRepo.On("UpdateStatus", mock.Anything, int64(10), model.OrderStatusOutForDelivery).Return(nil)

	tx := new(TxManagerMock)
	tx.Repos = &TxReposMock{orders: ordersRepo}
	tx.On("WithinTx", mock.Anything).Return(nil)

	notifier := &NotifierMock{}
	audit := &AuditRepoStub{}
	uc := newAdminOrderUsecase(tx, audit, notifier)

	err := uc.UpdateStatus(ctx, adminActor(9), 10, usecase.AdminUpdateOrderStatusInput{Status: "OUT_FOR_DELIVERY"})
	assert.NoError(t, err)

	ordersRepo.AssertExpectations(t)
	assert.Equal(t, []model.OrderStatus{model.OrderStatusOutForDelivery}, notifier.Events)

	last, ok := audit.Last()
	assert.True(t, ok)
	assert.Equal(t, model.AuditActionUpdateOrderStatus, last.Action)
	assert.Equal(t, `{"status":"SHIPPED"}`, last.BeforeJSON)
	assert.Equal(t, `{"status":"OUT_FOR_DELIVERY"}`, last.AfterJSON)
}

// 管理者キャンセル。2商品の在庫が両方戻る
func TestAdminOrder_UpdateStatus_Cancel_RestoresStock(t *testing.T) {
	ctx := context.Background()

	ordersRepo := new(OrderRepoMock)
	itemsRepo := new(OrderItemRepoMock)

	ordersRepo.On("FindByID", mock.Anything, int64(50)).Return(model.Order{
		ID: 50, Type: model.OrderTypeDelivery, Status: model.OrderStatusProcessing,
	}, nil)
	itemsRepo.On("ListByOrderID", mock.Anything, int64(50)).Return([]model.OrderItem{
		{ID: 1, OrderID: 50, ProductID: 100, Quantity: 2, Active: true},
		{ID: 2, OrderID: 50, ProductID: 101, Quantity: 1, Active: true},
	}, nil)
	itemsRepo.On("Deactivate", mock.Anything, int64(1)).Return(nil)
	itemsRepo.On("Deactivate", mock.Anything, int64(2)).Return(nil)
	ordersRepo.On("UpdateStatus", mock.Anything, int64(50), model.OrderStatusCanceled).Return(nil)

	inv := NewFakeInventory(map[int64]int64{100: 0, 101: 0})

	tx := new(TxManagerMock)
	tx.Repos = &TxReposMock{orders: ordersRepo, orderItems: itemsRepo, inventory: inv}
	tx.On("WithinTx", mock.Anything).Return(nil)

	uc := newAdminOrderUsecase(tx, &AuditRepoStub{}, nil)

	err := uc.UpdateStatus(ctx, adminActor(9), 50, usecase.AdminUpdateOrderStatusInput{Status: "CANCELED"})
	assert.NoError(t, err)

	assert.Equal(t, int64(2), inv.StockOf(100))
	assert.Equal(t, int64(1), inv.StockOf(101))
	itemsRepo.AssertExpectations(t)
	ordersRepo.AssertExpectations(t)
}
