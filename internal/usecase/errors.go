package usecase

import (
	"errors"
	"fmt"
)

// エラー分類。境界層（handler）がHTTPステータスへ変換する。
// usecaseはHTTPを知らない。
type ErrorCode string

const (
	CodeNotFound              ErrorCode = "NOT_FOUND"
	CodeInsufficientInventory ErrorCode = "INSUFFICIENT_INVENTORY"
	CodeInvalidState          ErrorCode = "INVALID_STATE"
	CodeAlreadyCanceled       ErrorCode = "ALREADY_CANCELED"
	CodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	CodeValidation            ErrorCode = "VALIDATION_FAILED"
	CodeInternal              ErrorCode = "INTERNAL"
)

type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewError(code ErrorCode, message string) error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

func AsError(err error) (*Error, bool) {
	var ue *Error
	ok := errors.As(err, &ue)
	return ue, ok
}

// ErrCodeOf は分類コードを取り出す。分類できないものはINTERNAL扱い。
func ErrCodeOf(err error) ErrorCode {
	if ue, ok := AsError(err); ok {
		return ue.Code
	}
	return CodeInternal
}
