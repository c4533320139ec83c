package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode 表示错误码类型
type ErrorCode int

// 定义应用程序的错误码
const (
	// 通用错误
	ErrUnknown ErrorCode = iota + 1000
	ErrInvalidParameter

	// 无线模块通信错误
	ErrModemIO           // 串口读写失败
	ErrModemTimeout      // 在等待时间内没有收到响应
	ErrPeerError         // 模块返回+ERR
	ErrMalformedResponse // 响应格式无法解析

	// 配置流程错误
	ErrCredentialFormat
	ErrSavePrecondition
	ErrRecordWrite
	ErrConsoleClosed

	// 链路错误
	ErrModemStart
	ErrJoinFailed
	ErrSendFailed
	ErrNotConnected

	// 缓存错误
	ErrCacheUnavailable
	ErrCacheMiss
)

// AppError 应用程序自定义错误类型
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap 支持Go 1.13+的错误包装
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New 创建一个新的AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap 包装一个已有的错误
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// IsErrCode 检查错误链中是否存在指定错误码
func IsErrCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	if appErr.Code == code {
		return true
	}
	return IsErrCode(appErr.Cause, code)
}

// CodeOf 返回错误链中第一个AppError的错误码
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrUnknown
}

// IsCommunicationFailure 判断是否为链路层面的通信失败（无响应/读写失败）
func IsCommunicationFailure(err error) bool {
	return IsErrCode(err, ErrModemIO) || IsErrCode(err, ErrModemTimeout)
}
