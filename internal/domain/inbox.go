package domain

import "math"

// 分页约束
const (
	DefaultPerPage = 50
	MaxPerPage     = 100
)

// InboxQuery 收件箱查询条件，作用域限定在单个地址。
type InboxQuery struct {
	AddressID  string
	Page       int
	PerPage    int
	UnreadOnly bool
	Search     string
}

// Validate 校验分页参数
func (q InboxQuery) Validate() error {
	if q.Page < 1 {
		return ErrInvalidPage
	}
	if q.PerPage < 1 || q.PerPage > MaxPerPage {
		return ErrInvalidPerPage
	}
	return nil
}

// Offset 返回分页偏移量
//
// 页码过大导致溢出时返回 math.MaxInt，存储层按超出范围处理。
func (q InboxQuery) Offset() int {
	if q.Page < 1 || q.PerPage < 1 {
		return 0
	}
	if q.Page-1 > math.MaxInt/q.PerPage {
		return math.MaxInt
	}
	return (q.Page - 1) * q.PerPage
}

// EmailPage 分页后的邮件列表
type EmailPage struct {
	Emails  []EmailSummary `json:"emails"`
	Total   int            `json:"total"`
	Page    int            `json:"page"`
	PerPage int            `json:"per_page"`
	HasNext bool           `json:"has_next"`
	HasPrev bool           `json:"has_prev"`
}

// NewEmailPage 根据总数计算分页元数据
//
// has_next = page < ceil(total/per_page)，has_prev = page > 1。
// 超出范围的页码返回空列表而不是错误。
func NewEmailPage(q InboxQuery, emails []EmailSummary, total int) *EmailPage {
	if emails == nil {
		emails = []EmailSummary{}
	}
	totalPages := 0
	if q.PerPage > 0 {
		totalPages = (total + q.PerPage - 1) / q.PerPage
	}
	return &EmailPage{
		Emails:  emails,
		Total:   total,
		Page:    q.Page,
		PerPage: q.PerPage,
		HasNext: q.Page < totalPages,
		HasPrev: q.Page > 1,
	}
}
