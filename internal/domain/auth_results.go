package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// DKIMStatus DKIM 校验结果（三态）。
//
// 数据库中以可空布尔存储：NULL 表示未校验，true 表示通过，false 表示失败。
type DKIMStatus int8

const (
	DKIMUnchecked DKIMStatus = iota
	DKIMPass
	DKIMFail
)

// DKIMFromBool 将布尔结果转换为 DKIMStatus
func DKIMFromBool(valid bool) DKIMStatus {
	if valid {
		return DKIMPass
	}
	return DKIMFail
}

func (s DKIMStatus) String() string {
	switch s {
	case DKIMPass:
		return "pass"
	case DKIMFail:
		return "fail"
	default:
		return "unchecked"
	}
}

// Value 实现 driver.Valuer
func (s DKIMStatus) Value() (driver.Value, error) {
	switch s {
	case DKIMPass:
		return true, nil
	case DKIMFail:
		return false, nil
	case DKIMUnchecked:
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid dkim status %d", s)
	}
}

// Scan 实现 sql.Scanner，兼容各驱动返回的布尔表示
func (s *DKIMStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = DKIMUnchecked
	case bool:
		*s = DKIMFromBool(v)
	case int64:
		*s = DKIMFromBool(v != 0)
	case []byte:
		return s.scanString(string(v))
	case string:
		return s.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into DKIMStatus", src)
	}
	return nil
}

func (s *DKIMStatus) scanString(v string) error {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true":
		*s = DKIMPass
	case "0", "f", "false":
		*s = DKIMFail
	default:
		return fmt.Errorf("cannot scan %q into DKIMStatus", v)
	}
	return nil
}

// GormDataType 声明列类型为布尔
func (DKIMStatus) GormDataType() string {
	return "bool"
}

// MarshalJSON 输出 null / true / false
func (s DKIMStatus) MarshalJSON() ([]byte, error) {
	switch s {
	case DKIMPass:
		return []byte("true"), nil
	case DKIMFail:
		return []byte("false"), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON 接受 null / true / false
func (s *DKIMStatus) UnmarshalJSON(data []byte) error {
	var v *bool
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v == nil {
		*s = DKIMUnchecked
		return nil
	}
	*s = DKIMFromBool(*v)
	return nil
}

// SPFResult SPF 校验结果，空值表示没有结果。
type SPFResult string

const (
	SPFAbsent    SPFResult = ""
	SPFPass      SPFResult = "pass"
	SPFFail      SPFResult = "fail"
	SPFSoftFail  SPFResult = "softfail"
	SPFNeutral   SPFResult = "neutral"
	SPFNone      SPFResult = "none"
	SPFTempError SPFResult = "temperror"
	SPFPermError SPFResult = "permerror"
)

var spfResults = map[SPFResult]struct{}{
	SPFPass: {}, SPFFail: {}, SPFSoftFail: {}, SPFNeutral: {},
	SPFNone: {}, SPFTempError: {}, SPFPermError: {},
}

// ParseSPFResult 解析 SPF 结果，空字符串视为缺失，未知取值返回错误
func ParseSPFResult(value string) (SPFResult, error) {
	r := SPFResult(strings.ToLower(strings.TrimSpace(value)))
	if r == SPFAbsent {
		return SPFAbsent, nil
	}
	if _, ok := spfResults[r]; !ok {
		return SPFAbsent, fmt.Errorf("%w: unknown spf result %q", ErrInvalidInput, value)
	}
	return r, nil
}

// Valid 判断取值是否属于闭合集合（含缺失）
func (r SPFResult) Valid() bool {
	if r == SPFAbsent {
		return true
	}
	_, ok := spfResults[r]
	return ok
}

// Value 实现 driver.Valuer，缺失写入 NULL
func (r SPFResult) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid spf result %q", string(r))
	}
	if r == SPFAbsent {
		return nil, nil
	}
	return string(r), nil
}

// Scan 实现 sql.Scanner
func (r *SPFResult) Scan(src interface{}) error {
	s, err := scanNullableString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseSPFResult(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalJSON 缺失时输出 null
func (r SPFResult) MarshalJSON() ([]byte, error) {
	if r == SPFAbsent {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

// DMARCResult DMARC 校验结果，空值表示没有结果。
type DMARCResult string

const (
	DMARCAbsent DMARCResult = ""
	DMARCPass   DMARCResult = "pass"
	DMARCFail   DMARCResult = "fail"
	DMARCNone   DMARCResult = "none"
)

// ParseDMARCResult 解析 DMARC 结果
func ParseDMARCResult(value string) (DMARCResult, error) {
	r := DMARCResult(strings.ToLower(strings.TrimSpace(value)))
	switch r {
	case DMARCAbsent, DMARCPass, DMARCFail, DMARCNone:
		return r, nil
	}
	return DMARCAbsent, fmt.Errorf("%w: unknown dmarc result %q", ErrInvalidInput, value)
}

// Valid 判断取值是否属于闭合集合（含缺失）
func (r DMARCResult) Valid() bool {
	switch r {
	case DMARCAbsent, DMARCPass, DMARCFail, DMARCNone:
		return true
	}
	return false
}

// Value 实现 driver.Valuer，缺失写入 NULL
func (r DMARCResult) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid dmarc result %q", string(r))
	}
	if r == DMARCAbsent {
		return nil, nil
	}
	return string(r), nil
}

// Scan 实现 sql.Scanner
func (r *DMARCResult) Scan(src interface{}) error {
	s, err := scanNullableString(src)
	if err != nil {
		return err
	}
	parsed, err := ParseDMARCResult(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// MarshalJSON 缺失时输出 null
func (r DMARCResult) MarshalJSON() ([]byte, error) {
	if r == DMARCAbsent {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

func scanNullableString(src interface{}) (string, error) {
	switch v := src.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return "", fmt.Errorf("cannot scan %T into string enum", src)
	}
}
