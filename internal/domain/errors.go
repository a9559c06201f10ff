package domain

import (
	"errors"
	"fmt"
)

// 错误分类。业务层返回的错误都可以通过 errors.Is 归入以下某一类，
// 传输层据此决定响应状态码。
var (
	// ErrNotFound 资源不存在、令牌无效或已过期、资源属于其他地址（三者不可区分）
	ErrNotFound = errors.New("not found")
	// ErrConflict 请求的邮箱地址仍处于有效期内
	ErrConflict = errors.New("conflict")
	// ErrForbidden 当前配置不允许该操作（例如禁用了自定义用户名）
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput 用户名、域名、标识符或分页参数格式错误
	ErrInvalidInput = errors.New("invalid input")
	// ErrExhausted 随机地址生成超过重试次数
	ErrExhausted = errors.New("exhausted")
	// ErrInternal 未配置域名或存储故障
	ErrInternal = errors.New("internal error")
)

// 具体的校验错误，均包装自上面的分类，便于调用方给出明确提示。
var (
	ErrInvalidUsername        = fmt.Errorf("%w: username may only contain letters, digits, '.', '-' and '_'", ErrInvalidInput)
	ErrUsernameLength         = fmt.Errorf("%w: username length out of range", ErrInvalidInput)
	ErrReservedUsername       = fmt.Errorf("%w: username is reserved", ErrInvalidInput)
	ErrInvalidDomain          = fmt.Errorf("%w: domain is not available", ErrInvalidInput)
	ErrInvalidIdentifier      = fmt.Errorf("%w: malformed identifier", ErrInvalidInput)
	ErrInvalidPage            = fmt.Errorf("%w: page must be >= 1", ErrInvalidInput)
	ErrInvalidPerPage         = fmt.Errorf("%w: per_page must be between 1 and 100", ErrInvalidInput)
	ErrCustomUsernameDisabled = fmt.Errorf("%w: custom usernames are disabled", ErrForbidden)
	ErrAddressTaken           = fmt.Errorf("%w: address is already taken", ErrConflict)
	ErrNoDomains              = fmt.Errorf("%w: no domains configured", ErrInternal)
)
