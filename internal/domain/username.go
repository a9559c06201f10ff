package domain

import (
	"regexp"
	"strings"
)

// 用户名与域名长度约束
const (
	MinUsernameLength = 3
	MaxUsernameLength = 64 // RFC 5321 本地部分上限
	MaxDomainLength   = 253

	RandomLocalPartLength = 8
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	domainRegex   = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)*$`)
)

// UsernamePolicy 自定义用户名规则
type UsernamePolicy struct {
	MinLength int
	MaxLength int
	Reserved  []string
}

// NormalizeUsername 校验并规范化用户名
//
// 参数:
//   - raw: 用户提交的用户名（会去除首尾空白）
//
// 返回值:
//   - string: 小写后的用户名
//   - error: ErrUsernameLength / ErrInvalidUsername / ErrReservedUsername
func (p UsernamePolicy) NormalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)

	minLen, maxLen := p.MinLength, p.MaxLength
	if minLen <= 0 {
		minLen = MinUsernameLength
	}
	if maxLen <= 0 || maxLen > MaxUsernameLength {
		maxLen = MaxUsernameLength
	}
	if len(username) < minLen || len(username) > maxLen {
		return "", ErrUsernameLength
	}
	if !usernameRegex.MatchString(username) {
		return "", ErrInvalidUsername
	}

	username = strings.ToLower(username)
	if p.IsReserved(username) {
		return "", ErrReservedUsername
	}
	return username, nil
}

// IsReserved 大小写不敏感地判断是否为保留用户名
func (p UsernamePolicy) IsReserved(username string) bool {
	for _, name := range p.Reserved {
		if strings.EqualFold(strings.TrimSpace(name), username) {
			return true
		}
	}
	return false
}

// NormalizeDomain 规范化并校验域名格式（不检查是否在允许列表中）
func NormalizeDomain(raw string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(raw))
	if d == "" || len(d) > MaxDomainLength || !domainRegex.MatchString(d) {
		return "", ErrInvalidDomain
	}
	return d, nil
}

// ComposeEmail 拼接完整邮箱地址
func ComposeEmail(localPart, domain string) string {
	return localPart + "@" + domain
}

// NormalizeEmail 统一邮箱地址的大小写，用于投递时按地址精确匹配
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
