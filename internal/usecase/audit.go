package usecase

import (
	"context"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"go.uber.org/zap"
)

// アクションごとの監査対象の決め方。
// ResourceIDの意味はここで固定する（例：明細キャンセルは注文IDでなく商品ID）。
var auditRoutes = map[model.AuditAction]struct {
	Path     string
	Resource model.AuditResourceType
}{
	model.AuditActionCheckout:          {Path: "/orders", Resource: model.AuditResourceOrder},
	model.AuditActionCancelOrder:       {Path: "/orders/:id/cancel", Resource: model.AuditResourceOrder},
	model.AuditActionCancelOrderItem:   {Path: "/orders/:id/items/:product_id/cancel", Resource: model.AuditResourceProduct},
	model.AuditActionUpdateOrderStatus: {Path: "/admin/orders/:id/status", Resource: model.AuditResourceOrder},
	model.AuditActionUpdateItemStatus:  {Path: "/seller/orders/:id/items/:product_id/status", Resource: model.AuditResourceProduct},
	model.AuditActionCreateReturn:      {Path: "/orders/:id/returns", Resource: model.AuditResourceOrder},
	model.AuditActionReviewReturn:      {Path: "/admin/returns/:id/review", Resource: model.AuditResourceOrder},
	model.AuditActionFinalizeReturn:    {Path: "/admin/returns/:id/finalize", Resource: model.AuditResourceOrder},
	model.AuditActionUpdateStock:       {Path: "/seller/products/:id/stock", Resource: model.AuditResourceProduct},
	model.AuditActionCreateProduct:     {Path: "/seller/products", Resource: model.AuditResourceProduct},
	model.AuditActionUpdateProduct:     {Path: "/seller/products/:id", Resource: model.AuditResourceProduct},
	model.AuditActionDeleteProduct:     {Path: "/seller/products/:id", Resource: model.AuditResourceProduct},
	model.AuditActionAddCartItem:       {Path: "/cart/items", Resource: model.AuditResourceCartItem},
	model.AuditActionUpdateCartItem:    {Path: "/cart/items/:id", Resource: model.AuditResourceCartItem},
	model.AuditActionDeleteCartItem:    {Path: "/cart/items/:id", Resource: model.AuditResourceCartItem},
}

type AuditEntry struct {
	Actor    model.Actor
	Action   model.AuditAction
	TargetID int64
	Outcome  model.AuditOutcome
	Before   string
	After    string
}

// 監査ログの書き手。
// 本処理の結果（成功・失敗）が確定してから呼ぶ。
// 書き込み失敗はログに残して飲み込む。本処理を巻き戻さない。
type AuditRecorder struct {
	auditRepo repo.AuditLogRepository
	logger    *zap.Logger
}

func NewAuditRecorder(auditRepo repo.AuditLogRepository, logger *zap.Logger) *AuditRecorder {
	return &AuditRecorder{auditRepo: auditRepo, logger: logger}
}

func (a *AuditRecorder) Record(ctx context.Context, e AuditEntry) {
	route, ok := auditRoutes[e.Action]
	if !ok {
		//表に無いアクションは実装漏れ
		a.logger.Error("audit action not in route table",
			zap.String("action", string(e.Action)))
		return
	}

	log := model.AuditLog{
		ActorUserID:  e.Actor.UserID,
		ActorRole:    e.Actor.Role,
		Path:         route.Path,
		Action:       e.Action,
		ResourceType: route.Resource,
		ResourceID:   e.TargetID,
		Outcome:      e.Outcome,
		BeforeJSON:   e.Before,
		AfterJSON:    e.After,
		CreatedAt:    time.Now(),
	}

	if err := a.auditRepo.Create(ctx, log); err != nil {
		a.logger.Error("audit write failed",
			zap.String("action", string(e.Action)),
			zap.Int64("resource_id", e.TargetID),
			zap.Error(err))
	}
}

// 成否をAuditOutcomeへ
func outcomeOf(err error) model.AuditOutcome {
	if err != nil {
		return model.AuditOutcomeFailure
	}
	return model.AuditOutcomeSuccess
}
