package httptransport

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tempmail/inbox/internal/domain"
	"tempmail/inbox/internal/service"
)

// listEmails godoc
// @Summary 邮件列表
// @Description 按接收时间倒序分页，支持未读过滤和关键词搜索（主题、发件人、正文）
// @Tags Emails
// @Produce json
// @Param token path string true "访问令牌"
// @Param page query int false "页码（默认1）"
// @Param per_page query int false "每页数量（默认50，最大100）"
// @Param unread_only query boolean false "只看未读"
// @Param search query string false "搜索关键词"
// @Success 200 {object} domain.EmailPage
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/{token}/emails [get]
func (h *Handler) listEmails(c *gin.Context) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		BadRequest(c, MsgInvalidQuery)
		return
	}
	perPage, err := queryInt(c, "per_page", domain.DefaultPerPage)
	if err != nil {
		BadRequest(c, MsgInvalidQuery)
		return
	}
	unreadOnly, err := queryBool(c, "unread_only", false)
	if err != nil {
		BadRequest(c, MsgInvalidQuery)
		return
	}

	result, err := h.inbox.List(c.Request.Context(), mustAddress(c), service.ListInput{
		Page:       page,
		PerPage:    perPage,
		UnreadOnly: unreadOnly,
		Search:     c.Query("search"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, result)
}

// getEmail godoc
// @Summary 邮件详情
// @Tags Emails
// @Produce json
// @Param token path string true "访问令牌"
// @Param emailId path string true "邮件ID"
// @Param mark_read query boolean false "是否标记为已读（默认true）"
// @Success 200 {object} domain.EmailDetail
// @Failure 400 {object} Response
// @Failure 404 {object} Response
// @Router /api/v1/{token}/emails/{emailId} [get]
func (h *Handler) getEmail(c *gin.Context) {
	markRead, err := queryBool(c, "mark_read", true)
	if err != nil {
		BadRequest(c, MsgInvalidQuery)
		return
	}

	detail, err := h.inbox.Get(c.Request.Context(), mustAddress(c), c.Param("emailId"), markRead)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	Success(c, detail)
}

// deleteEmail godoc
// @Summary 删除邮件
// @Tags Emails
// @Param token path string true "访问令牌"
// @Param emailId path string true "邮件ID"
// @Success 204
// @Failure 404 {object} Response
// @Router /api/v1/{token}/emails/{emailId} [delete]
func (h *Handler) deleteEmail(c *gin.Context) {
	if err := h.inbox.Delete(c.Request.Context(), mustAddress(c), c.Param("emailId")); err != nil {
		respondError(c, h.log, err)
		return
	}
	NoContent(c)
}

// downloadRaw godoc
// @Summary 下载原始邮件
// @Tags Emails
// @Produce message/rfc822
// @Param token path string true "访问令牌"
// @Param emailId path string true "邮件ID"
// @Success 200 {file} binary
// @Failure 404 {object} Response
// @Router /api/v1/{token}/emails/{emailId}/raw [get]
func (h *Handler) downloadRaw(c *gin.Context) {
	raw, err := h.inbox.Raw(c.Request.Context(), mustAddress(c), c.Param("emailId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	// 原始邮件不使用统一响应格式，直接返回二进制流
	c.Header("Content-Disposition", attachmentDisposition(raw.Filename))
	c.Data(http.StatusOK, "message/rfc822", raw.Data)
}

// downloadAttachment godoc
// @Summary 下载附件
// @Tags Emails
// @Produce octet-stream
// @Param token path string true "访问令牌"
// @Param emailId path string true "邮件ID"
// @Param attachmentId path string true "附件ID"
// @Success 200 {file} binary
// @Failure 404 {object} Response
// @Router /api/v1/{token}/emails/{emailId}/attachments/{attachmentId} [get]
func (h *Handler) downloadAttachment(c *gin.Context) {
	att, err := h.inbox.Attachment(c.Request.Context(), mustAddress(c), c.Param("emailId"), c.Param("attachmentId"))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", attachmentDisposition(att.Filename))
	c.Header("Content-Length", strconv.Itoa(len(att.Data)))
	c.Data(http.StatusOK, contentType, att.Data)
}

// attachmentDisposition 生成下载头，文件名中的非 ASCII 字符按 RFC 2231 编码
func attachmentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
