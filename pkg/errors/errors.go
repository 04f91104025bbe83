package errors

import (
	stderrors "errors"
	"fmt"
)

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// CodeOf 返回错误的业务码，非AppError返回空字符串
func CodeOf(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Is 判断错误是否携带指定业务码
func Is(err error, code string) bool {
	return CodeOf(err) == code
}

// 领域规则错误码
var (
	ErrAlreadyRegistered   = "ALREADY_REGISTERED"
	ErrNotRegistered       = "NOT_REGISTERED"
	ErrTokenNotFound       = "TOKEN_NOT_FOUND"
	ErrTokenInactive       = "TOKEN_INACTIVE"
	ErrUnauthorizedGrader  = "UNAUTHORIZED_GRADER"
	ErrUploadLimitExceeded = "UPLOAD_LIMIT_EXCEEDED"
	ErrNotOwner            = "NOT_OWNER"
	ErrNotSeller           = "NOT_SELLER"
	ErrAlreadyListed       = "ALREADY_LISTED"
	ErrNoActiveListing     = "NO_ACTIVE_LISTING"
	ErrInvalidPrice        = "INVALID_PRICE"
	ErrInsufficientPayment = "INSUFFICIENT_PAYMENT"
	ErrSelfEndorsement     = "SELF_ENDORSEMENT"
)

// 基础设施错误码
var (
	ErrConfigLoad      = "CONFIG_LOAD_ERROR"
	ErrDatabaseConnect = "DATABASE_CONNECT_ERROR"
	ErrRPConnect       = "RPC_CONNECT_ERROR"
	ErrBlockFetch      = "BLOCK_FETCH_ERROR"
	ErrEventParse      = "EVENT_PARSE_ERROR"
	ErrStateApply      = "STATE_APPLY_ERROR"
)
