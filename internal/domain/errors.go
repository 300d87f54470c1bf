package domain

import (
	"errors"
	"fmt"
)

const (
	ErrCodeSchemaInvalid     = "schema_invalid"
	ErrCodeEmptyModules      = "empty_modules"
	ErrCodeEmptyRequirements = "empty_requirements"
	ErrCodeSourceReadFailed  = "source_read_failed"
	ErrCodeUploadInvalid     = "upload_invalid"
	ErrCodeRenderFailed      = "render_failed"
	ErrCodeTargetConflict    = "target_conflict"
	ErrCodeIOFailed          = "io_failed"
)

// Error 是对外可分类的结构化错误（带 error_code）。
// 传输层只依据 Code 选择响应，不做字符串匹配。
type Error struct {
	Code   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := defaultMessage(e.Code)
	if e.Detail != "" {
		msg = e.Detail
	}
	if e.Err != nil {
		return fmt.Sprintf("%s：%v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func defaultMessage(code string) string {
	switch code {
	case ErrCodeSchemaInvalid:
		return "表格格式不正确：至少需要4列数据（A列：二级模块，D列：需求名称）"
	case ErrCodeEmptyModules:
		return "未找到有效的二级模块数据（A列）"
	case ErrCodeEmptyRequirements:
		return "未找到有效的需求数据（D列）"
	case ErrCodeSourceReadFailed:
		return "无法读取表格文件"
	case ErrCodeUploadInvalid:
		return "上传文件无效"
	case ErrCodeRenderFailed:
		return "结果文件生成失败"
	case ErrCodeTargetConflict:
		return "输出路径冲突"
	case ErrCodeIOFailed:
		return "文件读写失败"
	case "":
		return "unknown error"
	default:
		return code
	}
}

// Errorf 构造带 code 的错误；msg 为空时使用该 code 的默认文案。
func Errorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Wrap 把底层错误归类到 code 下；err 为 nil 时返回 nil。
func Wrap(code string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Err: err}
}

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsValidation 表示该错误由输入内容导致（用户可修复），而非服务自身故障。
func IsValidation(err error) bool {
	switch Code(err) {
	case ErrCodeSchemaInvalid, ErrCodeEmptyModules, ErrCodeEmptyRequirements,
		ErrCodeSourceReadFailed, ErrCodeUploadInvalid:
		return true
	default:
		return false
	}
}
