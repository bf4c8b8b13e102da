package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "sudooom.im.chat/pkg/errors"
)

// Response 统一响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    appErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:    appErrors.CodeSuccess,
		Message: "success",
		Data:    data,
	})
}

// SuccessWithMsg 带消息的成功响应
func SuccessWithMsg(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:    appErrors.CodeSuccess,
		Message: message,
		Data:    data,
	})
}

// ErrorWithMsg 自定义错误消息（字段级校验失败）
func ErrorWithMsg(c *gin.Context, code int, message string) {
	c.JSON(appErrors.HTTPStatus(appErrors.NewError(code, message)), Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// ErrorFromAppError 从 AppError 生成错误响应
// 非 AppError 统一返回通用内部错误，原始错误只进日志
func ErrorFromAppError(c *gin.Context, err error) {
	c.JSON(appErrors.HTTPStatus(err), Response{
		Code:    appErrors.GetCode(err),
		Message: appErrors.GetMessage(err),
		Data:    nil,
	})
}

// Unauthorized 未认证
func Unauthorized(c *gin.Context, err *appErrors.AppError) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Code:    err.Code,
		Message: err.Message,
		Data:    nil,
	})
}

// TooManyRequests 请求过多
func TooManyRequests(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
		Code:    appErrors.CodeTooManyRequest,
		Message: appErrors.ErrTooManyRequest.Message,
		Data:    nil,
	})
}
