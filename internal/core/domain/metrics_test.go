package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func TestComputeVATAndTTC(t *testing.T) {
	vat := ComputeVAT(1000, 20)
	assert.Equal(t, 200.0, vat)
	assert.Equal(t, 1200.0, ComputeTTC(1000, vat, 0))
	assert.Equal(t, 1150.0, ComputeTTC(1000, vat, 50))

	// withheld VAT larger than the total is kept as is
	assert.Equal(t, -100.0, ComputeTTC(100, 0, 200))
}

func TestComputeTTCMatchesFormula(t *testing.T) {
	cases := []struct{ ht, rate, ras float64 }{
		{1000, 20, 0},
		{1234.56, 5.5, 12.3},
		{0.01, 100, 0},
		{99999.99, 0, 99999.99},
	}
	for _, c := range cases {
		got := ComputeTTC(c.ht, ComputeVAT(c.ht, c.rate), c.ras)
		assert.Equal(t, c.ht+c.ht*c.rate/100-c.ras, got)
	}
}

func TestComputeDueDate(t *testing.T) {
	issue := date(2025, time.January, 1)

	due, ok := ComputeDueDate(&issue, Modality30)
	require.True(t, ok)
	assert.Equal(t, date(2025, time.January, 31), due)

	for _, m := range []Modality{Modality30, Modality60, Modality90, Modality120} {
		for _, d := range []time.Time{issue, date(2024, time.February, 28), date(2025, time.December, 15)} {
			due, ok := ComputeDueDate(&d, m)
			require.True(t, ok)
			assert.Equal(t, time.Duration(m.Days())*24*time.Hour, due.Sub(d), "%s from %s", m, d)
		}
	}
}

func TestComputeDueDateUndetermined(t *testing.T) {
	issue := date(2025, time.January, 1)

	_, ok := ComputeDueDate(&issue, "")
	assert.False(t, ok)
	_, ok = ComputeDueDate(&issue, "DELAI_45")
	assert.False(t, ok)
	_, ok = ComputeDueDate(nil, Modality30)
	assert.False(t, ok)
}

func TestDaysUntilDue(t *testing.T) {
	due := date(2025, time.January, 31)

	days, ok := DaysUntilDue(&due, date(2025, time.January, 25))
	require.True(t, ok)
	assert.Equal(t, 6, days)

	// partial days round up
	days, _ = DaysUntilDue(&due, date(2025, time.January, 25).Add(10*time.Hour))
	assert.Equal(t, 6, days)

	days, _ = DaysUntilDue(&due, date(2025, time.February, 2))
	assert.Equal(t, -2, days)

	_, ok = DaysUntilDue(nil, time.Now())
	assert.False(t, ok)
}

func TestDaysUntilDueDecreasesOverTime(t *testing.T) {
	due := date(2025, time.March, 1)
	now := date(2025, time.January, 1)
	prev, _ := DaysUntilDue(&due, now)
	for i := 0; i < 24*90; i += 7 {
		now = now.Add(7 * time.Hour)
		days, _ := DaysUntilDue(&due, now)
		assert.LessOrEqual(t, days, prev)
		prev = days
	}
}

func TestClassifyUrgency(t *testing.T) {
	tests := []struct {
		days int
		ok   bool
		want Urgency
	}{
		{0, false, UrgencyUndetermined},
		{-1, true, UrgencyOverdue},
		{-30, true, UrgencyOverdue},
		{0, true, UrgencyUrgent},
		{6, true, UrgencyUrgent},
		{7, true, UrgencyUrgent},
		{8, true, UrgencyNormal},
		{120, true, UrgencyNormal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifyUrgency(tt.days, tt.ok, DefaultUrgencyThreshold), "days=%d ok=%v", tt.days, tt.ok)
	}

	assert.Equal(t, UrgencyNormal, ClassifyUrgency(6, true, 5))
}

func TestClassifyUrgencyIsExhaustive(t *testing.T) {
	for days := -50; days <= 50; days++ {
		u := ClassifyUrgency(days, true, DefaultUrgencyThreshold)
		overdue := days < 0
		urgent := days >= 0 && days <= DefaultUrgencyThreshold
		normal := days > DefaultUrgencyThreshold
		assert.Equal(t, overdue, u == UrgencyOverdue)
		assert.Equal(t, urgent, u == UrgencyUrgent)
		assert.Equal(t, normal, u == UrgencyNormal)
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2025-01-31")
	require.True(t, ok)
	assert.Equal(t, date(2025, time.January, 31), got)

	_, ok = ParseDate("31/01/2025")
	assert.True(t, ok)

	for _, bad := range []string{"", "  ", "2025-13-45", "yesterday", "31-01"} {
		_, ok := ParseDate(bad)
		assert.False(t, ok, bad)
	}
}

func TestSummarize(t *testing.T) {
	now := date(2025, time.January, 25)
	soon := date(2025, time.January, 28)
	late := date(2025, time.January, 10)
	far := date(2025, time.April, 1)

	items := []Subject{
		{Status: StatusPendingV1, AmountHT: 1000, AmountTTC: ptr(1200.0), DueDate: &soon},
		{Status: StatusPendingV2, AmountHT: 500, AmountTTC: ptr(600.0), DueDate: &late},
		{Status: StatusPendingTreasury, AmountHT: 100, DueDate: &far},
		{Status: StatusDraft, AmountHT: 50, AmountTTC: ptr(60.0)},
		{Status: StatusPaid, AmountHT: 10, AmountTTC: ptr(12.0), DueDate: &late},
	}

	s := Summarize(items, now, DefaultUrgencyThreshold)
	assert.Equal(t, 5, s.Count)
	assert.Equal(t, 1, s.ByStatus[StatusPendingV1])
	assert.Equal(t, 1, s.ByStatus[StatusPaid])
	assert.Equal(t, 1, s.ByUrgency[UrgencyUrgent])
	assert.Equal(t, 1, s.ByUrgency[UrgencyOverdue])
	assert.Equal(t, 1, s.ByUrgency[UrgencyNormal])
	assert.InDelta(t, 1200+600+100+60+12, s.Total, 0.001)
}

func TestPaymentReference(t *testing.T) {
	assert.Equal(t, "PAY20250307-42", PaymentReference(date(2025, time.March, 7), 42))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "FAC-2025-0007", FormatNumber(2025, 7))
	assert.Equal(t, "FAC-2025-12345", FormatNumber(2025, 12345))
}
