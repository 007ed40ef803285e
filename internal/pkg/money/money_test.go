package money

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	cases := []struct {
		in      string
		want    Money
		wantErr error
	}{
		{in: "333.33", want: 33333},
		{in: "10000", want: 1000000},
		{in: "0.5", want: 50},
		{in: "0", want: 0},
		{in: "1.005", wantErr: ErrTooPrecise},
		{in: "-1", wantErr: ErrNegative},
		{in: "abc", wantErr: ErrMalformed},
		{in: "1000000000000", want: MaxAmount},
		{in: "1000000000000.01", wantErr: ErrOutOfRange},
		{in: "100000000000000", wantErr: ErrOutOfRange},
		{in: "100000000000000000000", wantErr: ErrOutOfRange},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMoney(tc.in)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestApplyRoundsToNearestCent(t *testing.T) {
	total := MustParse("333.33")
	rate := FromPercent(7)

	first := total.Apply(rate)
	second := total.Apply(rate)

	// 33333 * 7 / 100 = 2333.31 分
	assert.Equal(t, Money(2333), first)
	assert.Equal(t, first, second)
	assert.Equal(t, "23.33", first.String())
}

func TestApplyHalfUp(t *testing.T) {
	// 150 分 × 1% = 1.5 分 -> 2 分
	assert.Equal(t, Money(2), Money(150).Apply(FromPercent(1)))
	// 149 分 × 1% = 1.49 分 -> 1 分
	assert.Equal(t, Money(1), Money(149).Apply(FromPercent(1)))
	assert.Equal(t, Money(0), Money(0).Apply(FromPercent(15)))
	assert.Equal(t, Money(0), Money(1000).Apply(0))
}

func TestFractionalPercent(t *testing.T) {
	p, err := ParsePercent("7.5")
	require.NoError(t, err)
	assert.Equal(t, int64(750), p.BasisPoints())
	assert.Equal(t, Money(750), MustParse("100").Apply(p))

	_, err = ParsePercent("7.125")
	assert.ErrorIs(t, err, ErrTooPrecise)

	_, err = ParsePercent("1000000000000000000")
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestPercentValid(t *testing.T) {
	assert.True(t, FromPercent(0).Valid())
	assert.True(t, FromPercent(100).Valid())
	assert.False(t, FromPercent(101).Valid())
	assert.False(t, Percent(-1).Valid())
}

func TestJSON(t *testing.T) {
	type payload struct {
		Total Money   `json:"total"`
		Rate  Percent `json:"rate"`
	}
	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"total": 12.5, "rate": "8"}`), &p))
	assert.Equal(t, Money(1250), p.Total)
	assert.Equal(t, FromPercent(8), p.Rate)

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"12.50","rate":"8.00"}`, string(out))
}

func TestSum(t *testing.T) {
	assert.Equal(t, MustParse("30.00"), Sum(MustParse("10.00"), MustParse("15.50"), MustParse("4.50")))
}

func TestApplyDoesNotWrap(t *testing.T) {
	cases := []struct {
		name  string
		total Money
		rate  Percent
		want  Money
	}{
		{name: "max amount at 100%", total: MaxAmount, rate: HundredPercent, want: MaxAmount},
		{name: "max amount at 15%", total: MaxAmount, rate: FromPercent(15), want: MaxAmount / 100 * 15},
		{name: "beyond int64 product", total: Money(math.MaxInt64 / 2), rate: HundredPercent, want: Money(math.MaxInt64 / 2)},
		{name: "beyond int64 product rounds half up", total: Money(math.MaxInt64 / 100), rate: FromPercent(1), want: Money((math.MaxInt64/100 + 50) / 100)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.total.Apply(tc.rate)
			assert.Equal(t, tc.want, got)
			assert.GreaterOrEqual(t, int64(got), int64(0))
		})
	}
}

func TestUnmarshalRejectsOversizedAmount(t *testing.T) {
	var m Money
	err := json.Unmarshal([]byte(`"100000000000000"`), &m)
	assert.ErrorIs(t, err, ErrOutOfRange)

	err = json.Unmarshal([]byte(`100000000000000000000`), &m)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestCheckedAdd(t *testing.T) {
	sum, err := MustParse("10.00").CheckedAdd(MustParse("0.50"))
	require.NoError(t, err)
	assert.Equal(t, MustParse("10.50"), sum)

	_, err = Money(math.MaxInt64 - 1).CheckedAdd(2)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
