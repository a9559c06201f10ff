package httptransport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
)

// 错误消息映射表（业务错误 -> 中文消息）
var errorMessages = map[error]string{
	domain.ErrInvalidUsername:        "用户名只能包含字母、数字、点、短横线和下划线",
	domain.ErrUsernameLength:         "用户名长度不符合要求",
	domain.ErrReservedUsername:       "该用户名为系统保留",
	domain.ErrInvalidDomain:          "域名不可用",
	domain.ErrInvalidIdentifier:      "标识符格式无效",
	domain.ErrInvalidPage:            "页码必须大于等于 1",
	domain.ErrInvalidPerPage:         "每页数量必须在 1 到 100 之间",
	domain.ErrCustomUsernameDisabled: "当前不允许自定义用户名",
	domain.ErrAddressTaken:           "该邮箱地址已被占用",
	domain.ErrNoDomains:              "服务器未配置可用域名",
}

// 通用错误消息
const (
	MsgInvalidRequest  = "请求参数格式错误"
	MsgInvalidQuery    = "查询参数格式错误"
	MsgNotFound        = "资源不存在"
	MsgForbidden       = "操作不被允许"
	MsgConflict        = "资源冲突"
	MsgExhausted       = "暂时无法分配新的邮箱地址，请稍后重试"
	MsgInternalError   = "服务器内部错误，请稍后重试"
	MsgInboxNotFound   = "邮箱不存在或已过期"
	MsgServiceDegraded = "服务不可用"
)

// GetErrorMessage 获取错误的中文消息，未登记的错误按分类给出通用提示
func GetErrorMessage(err error) string {
	for target, msg := range errorMessages {
		if errors.Is(err, target) {
			return msg
		}
	}
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return MsgNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return MsgInvalidRequest
	case errors.Is(err, domain.ErrForbidden):
		return MsgForbidden
	case errors.Is(err, domain.ErrConflict):
		return MsgConflict
	case errors.Is(err, domain.ErrExhausted):
		return MsgExhausted
	default:
		return MsgInternalError
	}
}

// StatusFor 错误分类对应的 HTTP 状态码
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError 按错误分类写出响应，服务端错误写日志
func respondError(c *gin.Context, log *zap.Logger, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("route", c.FullPath()),
			zap.Error(err),
		)
		_ = c.Error(err)
	}
	Error(c, status, GetErrorMessage(err))
}
