package httptransport

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/health"
	"tempmail/inbox/internal/middleware"
	"tempmail/inbox/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	registry *service.Registry
	inbox    *service.InboxService
	health   *health.Checker
	log      *zap.Logger
}

type createAddressRequest struct {
	Username *string `json:"username"`
	Domain   *string `json:"domain"`
}

type domainListResponse struct {
	Domains []string `json:"domains"`
}

type healthResponse struct {
	Status   string   `json:"status"`
	Database string   `json:"database"`
	Domains  []string `json:"domains"`
}

// health godoc
// @Summary 服务健康状态
// @Tags System
// @Produce json
// @Success 200 {object} healthResponse
// @Failure 503 {object} healthResponse
// @Router /api/v1/health [get]
func (h *Handler) healthStatus(c *gin.Context) {
	report := h.health.Report()
	resp := healthResponse{
		Status:   string(report.Status),
		Database: report.Database,
		Domains:  h.registry.Domains(),
	}
	if report.Status == health.StatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, Response{
			Code: CodeServiceUnavailable,
			Msg:  MsgServiceDegraded,
			Data: resp,
		})
		return
	}
	Success(c, resp)
}

// listDomains godoc
// @Summary 可用域名列表
// @Tags Addresses
// @Produce json
// @Success 200 {object} domainListResponse
// @Router /api/v1/domains [get]
func (h *Handler) listDomains(c *gin.Context) {
	Success(c, domainListResponse{Domains: h.registry.Domains()})
}

// createAddress godoc
// @Summary 创建临时邮箱
// @Description 不带用户名时生成随机地址；带用户名时尝试占用，过期的同名地址会被回收
// @Tags Addresses
// @Accept json
// @Produce json
// @Param request body createAddressRequest false "地址参数"
// @Success 201 {object} domain.Address
// @Failure 400 {object} Response
// @Failure 403 {object} Response
// @Failure 409 {object} Response
// @Failure 503 {object} Response
// @Router /api/v1/addresses [post]
func (h *Handler) createAddress(c *gin.Context) {
	var req createAddressRequest
	// 请求体可以为空
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(c, MsgInvalidRequest)
		return
	}

	addr, err := h.registry.Allocate(c.Request.Context(), service.AllocateInput{
		Username: req.Username,
		Domain:   req.Domain,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	Created(c, addr)
}

// addressInfo godoc
// @Summary 邮箱概况
// @Tags Addresses
// @Produce json
// @Param token path string true "访问令牌"
// @Success 200 {object} service.AddressInfo
// @Failure 404 {object} Response
// @Router /api/v1/{token} [get]
func (h *Handler) addressInfo(c *gin.Context) {
	addr := mustAddress(c)
	info, err := h.inbox.Info(c.Request.Context(), addr)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, info)
}

// mustAddress 取出认证中间件写入的地址
func mustAddress(c *gin.Context) *domain.Address {
	addr, ok := middleware.AddressFromContext(c)
	if !ok {
		panic("inbox route registered without token middleware")
	}
	return addr
}

// queryInt 读取整数查询参数，缺省时返回 def
func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

// queryBool 读取布尔查询参数，缺省时返回 def
func queryBool(c *gin.Context, key string, def bool) (bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return def, nil
	}
	return strconv.ParseBool(raw)
}
