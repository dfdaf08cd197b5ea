package service

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// 履约流程的错误分类，具体错误通过 %w 包装其中之一
var (
	ErrAuthentication   = errors.New("authentication failure")
	ErrUnrecognizedPlan = errors.New("unrecognized plan")
	ErrValidation       = errors.New("validation failure")
	ErrUpstream         = errors.New("upstream failure")
	ErrPersistence      = errors.New("persistence failure")
)

// ValidationError 档案缺少必填字段或字段不合法
type ValidationError struct {
	Missing []string
	Reason  string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("missing required profile fields: %s", strings.Join(e.Missing, ", "))
	}
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(format string, args ...interface{}) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// HTTPStatus 错误分类到 HTTP 状态码
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrAuthentication),
		errors.Is(err, ErrUnrecognizedPlan),
		errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage 对外返回的错误信息，5xx 不暴露内部细节
func PublicMessage(err error) string {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.Is(err, ErrAuthentication):
		return "signature verification failed"
	case errors.Is(err, ErrUnrecognizedPlan):
		return err.Error()
	case errors.Is(err, ErrValidation):
		return err.Error()
	case errors.Is(err, ErrPersistence):
		return "failed to record payment"
	default:
		return "failed to generate plan"
	}
}
