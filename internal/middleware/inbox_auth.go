package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
)

// ContextAddressKey 认证通过的地址在 gin 上下文中的键
const ContextAddressKey = "address"

// TokenAuthenticator 将路径中的令牌解析为有效地址
type TokenAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.Address, error)
}

// InboxAuth 收件箱令牌认证中间件
type InboxAuth struct {
	auth TokenAuthenticator
	log  *zap.Logger
}

// NewInboxAuth 创建收件箱认证中间件
func NewInboxAuth(auth TokenAuthenticator, log *zap.Logger) *InboxAuth {
	if log == nil {
		log = zap.NewNop()
	}
	return &InboxAuth{auth: auth, log: log}
}

// RequireToken 校验路径参数 :token
//
// 令牌缺失、不存在或已过期都返回 404，不区分具体原因。
func (ia *InboxAuth) RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		addr, err := ia.auth.Authenticate(c.Request.Context(), c.Param("token"))
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				ia.log.Debug("inbox token rejected",
					zap.String("route", c.FullPath()),
					zap.String("ip", c.ClientIP()),
				)
				abortWithError(c, http.StatusNotFound, "邮箱不存在或已过期")
				return
			}

			ia.log.Error("inbox authentication failed", zap.Error(err))
			abortWithError(c, http.StatusInternalServerError, "服务器内部错误，请稍后重试")
			return
		}

		c.Set(ContextAddressKey, addr)
		c.Next()
	}
}

// AddressFromContext 取出 RequireToken 写入的地址
func AddressFromContext(c *gin.Context) (*domain.Address, bool) {
	v, ok := c.Get(ContextAddressKey)
	if !ok {
		return nil, false
	}
	addr, ok := v.(*domain.Address)
	return addr, ok
}

// abortWithError 以统一响应结构中止请求
func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"code": status,
		"msg":  msg,
	})
}
