// internal/pkg/money/money.go
package money

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Money 以最小货币单位（分）存储金额，所有金额计算都在整数上完成。
type Money int64

// Percent 以基点存储百分比，1% = 100bp，100% = 10000bp。
type Percent int64

const (
	centsPerUnit      = 100
	basisPointsPerPct = 100
	// HundredPercent 是合法费率的上界
	HundredPercent Percent = 100 * basisPointsPerPct

	// MaxAmount 是单笔金额上限（1 万亿），保证 MaxAmount × HundredPercent 不超出 int64
	MaxAmount Money = 1_000_000_000_000 * centsPerUnit
)

var (
	ErrTooPrecise = errors.New("money: too many fractional digits")
	ErrNegative   = errors.New("money: negative amount")
	ErrMalformed  = errors.New("money: malformed decimal")
	ErrOutOfRange = errors.New("money: amount out of range")
)

// FromCents 直接由分构造金额
func FromCents(cents int64) Money { return Money(cents) }

// Cents 返回分值
func (m Money) Cents() int64 { return int64(m) }

// Decimal 将金额转换为 decimal，供序列化使用
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// String 以两位小数形式输出，例如 "333.33"
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// MarshalJSON 以字符串输出，避免客户端按浮点数解析
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON 同时接受 "12.34" 与 12.34 两种写法
func (m *Money) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseMoney 精确解析十进制金额字符串，超过两位小数或为负数时返回错误
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "parse %q", s)
	}
	if d.IsNegative() {
		return 0, errors.Wrapf(ErrNegative, "parse %q", s)
	}
	scaled := d.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, errors.Wrapf(ErrTooPrecise, "parse %q", s)
	}
	if scaled.GreaterThan(decimal.NewFromInt(int64(MaxAmount))) {
		return 0, errors.Wrapf(ErrOutOfRange, "parse %q", s)
	}
	return Money(scaled.IntPart()), nil
}

// MustParse 仅用于测试和常量初始化
func MustParse(s string) Money {
	m, err := ParseMoney(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromPercent 由整数百分比构造，例如 FromPercent(7) 表示 7%
func FromPercent(pct int64) Percent { return Percent(pct * basisPointsPerPct) }

// BasisPoints 返回基点值
func (p Percent) BasisPoints() int64 { return int64(p) }

// Valid 报告费率是否位于 [0, 100] 区间
func (p Percent) Valid() bool { return p >= 0 && p <= HundredPercent }

// Decimal 将费率转换为百分数形式的 decimal，例如 7.5
func (p Percent) Decimal() decimal.Decimal {
	return decimal.New(int64(p), -2)
}

func (p Percent) String() string {
	return p.Decimal().String() + "%"
}

func (p Percent) MarshalJSON() ([]byte, error) {
	return []byte(`"` + p.Decimal().StringFixed(2) + `"`), nil
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	parsed, err := ParsePercent(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePercent 解析百分数，最多两位小数，例如 "7.25" 表示 7.25%。
// 区间校验由调用方负责。
func ParsePercent(s string) (Percent, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "parse percent %q", s)
	}
	scaled := d.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, errors.Wrapf(ErrTooPrecise, "parse percent %q", s)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, errors.Wrapf(ErrOutOfRange, "parse percent %q", s)
	}
	return Percent(scaled.IntPart()), nil
}

// Apply 计算 m × p，四舍五入到分。
// 乘积在 int64 内时走整数运算，否则退到 decimal 精确计算，结果不会回绕。
func (m Money) Apply(p Percent) Money {
	if m == 0 || p == 0 {
		return 0
	}
	const denom = centsPerUnit * basisPointsPerPct
	if m > 0 && p > 0 && int64(m) <= (math.MaxInt64-denom/2)/int64(p) {
		return Money((int64(m)*int64(p) + denom/2) / denom)
	}
	exact := decimal.NewFromInt(int64(m)).Mul(decimal.NewFromInt(int64(p))).
		Div(decimal.NewFromInt(denom)).Round(0)
	return Money(exact.IntPart())
}

// Add 返回 m + o
func (m Money) Add(o Money) Money { return m + o }

// CheckedAdd 与 Add 相同，但在结果超出 int64 时返回 ErrOutOfRange
func (m Money) CheckedAdd(o Money) (Money, error) {
	if (o > 0 && m > math.MaxInt64-o) || (o < 0 && m < math.MinInt64-o) {
		return 0, errors.Wrapf(ErrOutOfRange, "%s + %s", m, o)
	}
	return m + o, nil
}

// Sub 返回 m - o
func (m Money) Sub(o Money) Money { return m - o }

// Sum 汇总一组金额
func Sum(ms ...Money) Money {
	var total Money
	for _, m := range ms {
		total += m
	}
	return total
}

// GoString 便于测试失败时阅读
func (m Money) GoString() string { return fmt.Sprintf("money.Money(%s)", m.String()) }
