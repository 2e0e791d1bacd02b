package model

import "time"

// 状態を変える操作の種類。
type AuditAction string

const (
	AuditActionCheckout          AuditAction = "CHECKOUT"
	AuditActionCancelOrder       AuditAction = "CANCEL_ORDER"
	AuditActionCancelOrderItem   AuditAction = "CANCEL_ORDER_ITEM"
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
	AuditActionUpdateItemStatus  AuditAction = "UPDATE_ITEM_STATUS"
	AuditActionCreateReturn      AuditAction = "CREATE_RETURN"
	AuditActionReviewReturn      AuditAction = "REVIEW_RETURN"
	AuditActionFinalizeReturn    AuditAction = "FINALIZE_RETURN"
	AuditActionUpdateStock       AuditAction = "UPDATE_STOCK"
	AuditActionCreateProduct     AuditAction = "CREATE_PRODUCT"
	AuditActionUpdateProduct     AuditAction = "UPDATE_PRODUCT"
	AuditActionDeleteProduct     AuditAction = "DELETE_PRODUCT"
	AuditActionAddCartItem       AuditAction = "ADD_CART_ITEM"
	AuditActionUpdateCartItem    AuditAction = "UPDATE_CART_ITEM"
	AuditActionDeleteCartItem    AuditAction = "DELETE_CART_ITEM"
)

// 何に対する操作か。
type AuditResourceType string

const (
	AuditResourceProduct  AuditResourceType = "product"
	AuditResourceOrder    AuditResourceType = "order"
	AuditResourceCartItem AuditResourceType = "cart_item"
	AuditResourceUser     AuditResourceType = "user"
)

// 操作結果。失敗した操作も記録する。
type AuditOutcome string

const (
	AuditOutcomeSuccess AuditOutcome = "SUCCESS"
	AuditOutcomeFailure AuditOutcome = "FAILURE"
)

// 監査ログ。
// 「誰が」「どの役割で」「何を」「どの対象に」「どう変えたか」「成否」を残す。
// 追記のみ。更新・削除はしない。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//操作したユーザーのID と役割
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`
	ActorRole   Role  `gorm:"type:varchar(20);not null" json:"actor_role"`

	//呼ばれたエンドポイント
	Path string `gorm:"type:varchar(255);not null" json:"path"`

	Action AuditAction `gorm:"type:varchar(50);not null;index" json:"action"`

	//対象の種類とID。IDの意味はActionごとに決まる（例：明細キャンセルは商品ID）
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	Outcome AuditOutcome `gorm:"type:varchar(20);not null" json:"outcome"`

	//変更前後のJSON文字列
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}
