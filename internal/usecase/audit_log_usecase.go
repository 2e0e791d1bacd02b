package usecase

import (
	"context"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"
)

// AuditLogUsecase は管理者向けの監査ログ検索。
// ログは追記専用。ここからの更新・削除は存在しない。
type AuditLogUsecase struct {
	auditRepo repo.AuditLogRepository
}

func NewAuditLogUsecase(auditRepo repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{auditRepo: auditRepo}
}

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
}

func (u *AuditLogUsecase) List(ctx context.Context, actor model.Actor, f repo.AuditLogFilter) (AuditLogListOutput, error) {
	if !actor.IsAdmin() {
		return AuditLogListOutput{}, NewError(CodeUnauthorized, "admin only")
	}
	if f.Limit < 1 || f.Limit > 200 {
		return AuditLogListOutput{}, NewError(CodeValidation, "invalid limit")
	}
	if f.Offset < 0 {
		return AuditLogListOutput{}, NewError(CodeValidation, "invalid offset")
	}

	items, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return AuditLogListOutput{}, NewError(CodeInternal, "db error")
	}

	return AuditLogListOutput{Items: items}, nil
}
