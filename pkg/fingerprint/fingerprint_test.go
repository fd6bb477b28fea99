package fingerprint

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(s string) time.Time {
	t, _ := time.Parse("2006-01-02", s)
	return t
}

func TestGenerateDeterministic(t *testing.T) {
	amount := decimal.NewFromInt(50000)
	first := Generate(date("2024-03-15"), amount, "振込 カ）サンプル", "FIT-001")
	second := Generate(date("2024-03-15"), amount, "振込 カ）サンプル", "FIT-001")

	assert.Equal(t, first, second)
	assert.Len(t, first, 32)
}

func TestGenerateIgnoresTimeOfDay(t *testing.T) {
	amount := decimal.NewFromInt(1200)
	morning := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 15, 21, 45, 0, 0, time.UTC)

	assert.Equal(t,
		Generate(morning, amount, "ATM引出", ""),
		Generate(evening, amount, "ATM引出", ""),
	)
}

// 摘要不做任何规范化：空白或大小写不同即视为不同交易
func TestGenerateContentSensitive(t *testing.T) {
	amount := decimal.NewFromInt(1200)
	d := date("2024-03-15")

	base := Generate(d, amount, "transfer abc", "")
	assert.NotEqual(t, base, Generate(d, amount, "transfer  abc", ""))
	assert.NotEqual(t, base, Generate(d, amount, "Transfer abc", ""))
	assert.NotEqual(t, base, Generate(d, amount, "transfer abc ", ""))
}

func TestGenerateReferenceSensitive(t *testing.T) {
	amount := decimal.NewFromInt(1200)
	d := date("2024-03-15")

	withRef := Generate(d, amount, "transfer", "FIT-001")
	withoutRef := Generate(d, amount, "transfer", "")
	otherRef := Generate(d, amount, "transfer", "FIT-002")

	assert.NotEqual(t, withRef, withoutRef)
	assert.NotEqual(t, withRef, otherRef)
}

func TestGenerateAmountExact(t *testing.T) {
	d := date("2024-03-15")

	a := Generate(d, decimal.RequireFromString("100.10"), "transfer", "")
	b := Generate(d, decimal.RequireFromString("100.10"), "transfer", "")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, Generate(d, decimal.RequireFromString("100.11"), "transfer", ""))
	assert.NotEqual(t, a, Generate(d, decimal.RequireFromString("-100.10"), "transfer", ""))
}
