package domain

import (
	"time"
)

// Email 表示一封已接收的邮件。邮件内容与收件地址解耦，
// 通过 Recipient 关联到一个或多个 Address。
type Email struct {
	ID             string      `json:"id" gorm:"primaryKey;type:varchar(36)"`
	MessageID      string      `json:"message_id" gorm:"type:varchar(998)"`
	Subject        *string     `json:"subject" gorm:"type:text"`
	FromAddress    string      `json:"from_address" gorm:"type:varchar(320);not null"`
	ToAddress      string      `json:"to_address" gorm:"type:varchar(320);not null"`
	RawHeaders     string      `json:"raw_headers" gorm:"type:text"`
	BodyPlain      *string     `json:"body_plain" gorm:"type:text"`
	BodyHTML       *string     `json:"body_html" gorm:"column:body_html;type:text"`
	RawMessage     []byte      `json:"-" gorm:"not null"`
	SizeBytes      int64       `json:"size_bytes" gorm:"not null"`
	DKIMValid      DKIMStatus  `json:"dkim_valid" gorm:"column:dkim_valid"`
	SPFResult      SPFResult   `json:"spf_result" gorm:"column:spf_result;type:varchar(16)"`
	DMARCResult    DMARCResult `json:"dmarc_result" gorm:"column:dmarc_result;type:varchar(16)"`
	HasAttachments bool        `json:"has_attachments" gorm:"not null;default:false"`
	ReceivedAt     time.Time   `json:"received_at" gorm:"index;not null"`
}

// TableName 指定表名
func (Email) TableName() string {
	return "emails"
}

// Attachment 表示邮件附件，归属于唯一一封邮件。
type Attachment struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	EmailID     string    `json:"email_id" gorm:"type:varchar(36);not null;index"`
	Filename    string    `json:"filename" gorm:"type:varchar(255)"`
	ContentType string    `json:"content_type" gorm:"type:varchar(255)"`
	SizeBytes   int64     `json:"size_bytes" gorm:"not null"`
	Data        []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`

	Email *Email `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// TableName 指定表名
func (Attachment) TableName() string {
	return "attachments"
}

// AttachmentInfo 附件元数据（不含内容）
type AttachmentInfo struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// EmailSummary 邮件列表中的一条记录，IsRead 为当前地址视角下的已读状态。
type EmailSummary struct {
	ID             string    `json:"id"`
	Subject        *string   `json:"subject"`
	FromAddress    string    `json:"from_address"`
	ToAddress      string    `json:"to_address"`
	ReceivedAt     time.Time `json:"received_at"`
	IsRead         bool      `json:"is_read"`
	HasAttachments bool      `json:"has_attachments"`
	SizeBytes      int64     `json:"size_bytes"`
}

// EmailDetail 邮件详情
type EmailDetail struct {
	Email
	IsRead      bool             `json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	Attachments []AttachmentInfo `json:"attachments"`
}
