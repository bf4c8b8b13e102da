package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError 应用错误类型
// 用于统一管理业务错误，包含错误码和用户可见的错误消息
type AppError struct {
	Code    int    // 错误码
	Message string // 用户可见的错误消息
	Err     error  // 原始错误（可选，仅用于日志）
}

// Error 实现 error 接口
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持 errors.Unwrap
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewError 创建新错误
func NewError(code int, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装原始错误
func (e *AppError) Wrap(err error) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     err,
	}
}

// Is 判断是否为指定错误
func Is(err error, target *AppError) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == target.Code
	}
	return false
}

// GetCode 获取错误码，如果不是 AppError 返回默认错误码
func GetCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeServerError
}

// GetMessage 获取错误消息，非 AppError 一律返回通用消息，避免泄露内部细节
func GetMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return ErrServerError.Message
}

// HTTPStatus 根据错误码映射 HTTP 状态码
func HTTPStatus(err error) int {
	code := GetCode(err)
	if status, ok := codeStatus[code]; ok {
		return status
	}
	switch {
	case code >= 50000:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

// ============== 错误码定义 ==============

const (
	CodeSuccess = 0

	// 认证相关 10000-10999
	CodeUnauthenticated    = 10001
	CodeInvalidCredentials = 10002
	CodeTokenInvalid       = 10003
	CodeTokenExpired       = 10004
	CodeEmailExists        = 10005
	CodeNameExists         = 10006
	CodePasswordTooShort   = 10007
	CodeResetTokenInvalid  = 10008

	// 用户相关 11000-11999
	CodeUserNotFound     = 11001
	CodeInvalidParams    = 11002
	CodeInvalidRecipient = 11003

	// 消息相关 12000-12999
	CodeMessageNotFound = 12001
	CodeNotMessageOwner = 12002
	CodeMessageDeleted  = 12003
	CodeTextRequired    = 12004

	// 群组相关 13000-13999
	CodeGroupNotFound     = 13001
	CodeNotGroupMember    = 13002
	CodeNotGroupAdmin     = 13003
	CodeGroupNameRequired = 13004
	CodeGroupTooSmall     = 13005
	CodeMemberNotFound    = 13006
	CodeCannotRemoveSelf  = 13007

	// 系统错误 50000-50999
	CodeServerError    = 50001
	CodeDBError        = 50002
	CodeTooManyRequest = 50003
	CodeUploadFailed   = 50004
)

var codeStatus = map[int]int{
	CodeUnauthenticated:    http.StatusUnauthorized,
	CodeInvalidCredentials: http.StatusBadRequest,
	CodeTokenInvalid:       http.StatusUnauthorized,
	CodeTokenExpired:       http.StatusUnauthorized,
	CodeEmailExists:        http.StatusConflict,
	CodeNameExists:         http.StatusConflict,
	CodeResetTokenInvalid:  http.StatusBadRequest,
	CodeUserNotFound:       http.StatusNotFound,
	CodeMessageNotFound:    http.StatusNotFound,
	CodeNotMessageOwner:    http.StatusForbidden,
	CodeGroupNotFound:      http.StatusNotFound,
	CodeNotGroupMember:     http.StatusForbidden,
	CodeNotGroupAdmin:      http.StatusForbidden,
	CodeMemberNotFound:     http.StatusNotFound,
	CodeTooManyRequest:     http.StatusTooManyRequests,
}

// ============== 预定义错误 ==============

// 认证相关
var (
	ErrUnauthenticated    = NewError(CodeUnauthenticated, "Unauthorized - No Token Provided")
	ErrInvalidCredentials = NewError(CodeInvalidCredentials, "Invalid credentials")
	ErrTokenInvalid       = NewError(CodeTokenInvalid, "Unauthorized - Invalid Token")
	ErrTokenExpired       = NewError(CodeTokenExpired, "Unauthorized - Token Expired")
	ErrEmailExists        = NewError(CodeEmailExists, "email already exists")
	ErrNameExists         = NewError(CodeNameExists, "username already exists")
	ErrPasswordTooShort   = NewError(CodePasswordTooShort, "Password must be at least 6 characters")
	ErrResetTokenInvalid  = NewError(CodeResetTokenInvalid, "Invalid or expired reset token")
)

// 用户相关
var (
	ErrUserNotFound       = NewError(CodeUserNotFound, "User not found")
	ErrInvalidParams      = NewError(CodeInvalidParams, "All fields are required")
	ErrInvalidRecipient   = NewError(CodeInvalidRecipient, "Invalid recipient")
	ErrProfilePicRequired = NewError(CodeInvalidParams, "Profile pic is required")
	ErrPasswordRequired   = NewError(CodeInvalidParams, "Password is required")
)

// 消息相关
var (
	ErrMessageNotFound = NewError(CodeMessageNotFound, "Message not found")
	ErrNotMessageOwner = NewError(CodeNotMessageOwner, "You can edit only your own messages")
	ErrDeleteNotOwner  = NewError(CodeNotMessageOwner, "You can delete only your own messages")
	ErrMessageDeleted  = NewError(CodeMessageDeleted, "Deleted messages cannot be edited")
	ErrTextRequired    = NewError(CodeTextRequired, "Message text is required")
)

// 群组相关
var (
	ErrGroupNotFound     = NewError(CodeGroupNotFound, "Group not found")
	ErrNotGroupMember    = NewError(CodeNotGroupMember, "Not authorized for this group")
	ErrLeaveNotMember    = NewError(CodeNotGroupMember, "You are not a member of this group")
	ErrDeleteNotAdmin    = NewError(CodeNotGroupAdmin, "Only group admin can delete this group")
	ErrRemoveNotAdmin    = NewError(CodeNotGroupAdmin, "Only group admin can remove members")
	ErrClearNotAdmin     = NewError(CodeNotGroupAdmin, "Only group admin can clear group messages")
	ErrGroupNameRequired = NewError(CodeGroupNameRequired, "Group name is required")
	ErrGroupTooSmall     = NewError(CodeGroupTooSmall, "Group must include at least 2 members")
	ErrMemberNotFound    = NewError(CodeMemberNotFound, "Member not found in this group")
	ErrCannotRemoveSelf  = NewError(CodeCannotRemoveSelf, "Admin cannot remove self. Use leave group.")
)

// 系统相关
var (
	ErrServerError    = NewError(CodeServerError, "Internal server error")
	ErrDBError        = NewError(CodeDBError, "Internal server error")
	ErrTooManyRequest = NewError(CodeTooManyRequest, "Too many requests, please try again later")
	ErrUploadFailed   = NewError(CodeUploadFailed, "Upload failed")
)
