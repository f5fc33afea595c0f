package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// DefaultUrgencyThreshold is the number of days before the due date at
// which a pending invoice becomes urgent.
const DefaultUrgencyThreshold = 7

// DefaultVATRate is applied when an invoice is created without a rate.
const DefaultVATRate = 20.0

// Urgency classifies an invoice against its due date
type Urgency string

const (
	UrgencyNormal       Urgency = "NORMAL"
	UrgencyUrgent       Urgency = "URGENT"
	UrgencyOverdue      Urgency = "OVERDUE"
	UrgencyUndetermined Urgency = "UNDETERMINED"
)

// ComputeVAT returns amountHT * rate / 100.
func ComputeVAT(amountHT, rate float64) float64 {
	return amountHT * rate / 100
}

// ComputeTTC returns amountHT + vat - withheld. The result is not clamped:
// withheld VAT may bring the payable total below HT or below zero.
func ComputeTTC(amountHT, vat, withheld float64) float64 {
	return amountHT + vat - withheld
}

// ComputeDueDate adds the modality's term to the issue date. ok is false
// when either input is missing.
func ComputeDueDate(issue *time.Time, m Modality) (due time.Time, ok bool) {
	if issue == nil || issue.IsZero() || !m.IsValid() {
		return time.Time{}, false
	}
	return issue.AddDate(0, 0, m.Days()), true
}

// DaysUntilDue returns ceil((due - now) / 24h).
func DaysUntilDue(due *time.Time, now time.Time) (days int, ok bool) {
	if due == nil || due.IsZero() {
		return 0, false
	}
	d := math.Ceil(due.Sub(now).Hours() / 24)
	return int(d), true
}

// ClassifyUrgency is total over (days, ok): undetermined, overdue, urgent
// and normal are mutually exclusive.
func ClassifyUrgency(days int, ok bool, threshold int) Urgency {
	switch {
	case !ok:
		return UrgencyUndetermined
	case days < 0:
		return UrgencyOverdue
	case days <= threshold:
		return UrgencyUrgent
	default:
		return UrgencyNormal
	}
}

// UrgencyOf classifies a due date relative to now.
func UrgencyOf(due *time.Time, now time.Time, threshold int) Urgency {
	days, ok := DaysUntilDue(due, now)
	return ClassifyUrgency(days, ok, threshold)
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02/01/2006",
}

// ParseDate tries the accepted layouts. A malformed value yields ok=false.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Summary aggregates a set of invoices
type Summary struct {
	Count     int             `json:"count"`
	ByStatus  map[Status]int  `json:"by_status"`
	ByUrgency map[Urgency]int `json:"by_urgency"`
	Total     float64         `json:"total"`
}

// Summarize counts invoices by status and urgency and sums TTC, falling
// back to HT where TTC is absent. Urgency only counts pending invoices;
// settled ones are not at risk.
func Summarize(items []Subject, now time.Time, threshold int) Summary {
	s := Summary{
		ByStatus:  make(map[Status]int),
		ByUrgency: make(map[Urgency]int),
	}
	for _, it := range items {
		s.Count++
		s.ByStatus[it.Status]++
		if IsPending(it.Status) {
			s.ByUrgency[UrgencyOf(it.DueDate, now, threshold)]++
		}
		if it.AmountTTC != nil {
			s.Total += *it.AmountTTC
		} else {
			s.Total += it.AmountHT
		}
	}
	return s
}

// PaymentReference builds the fallback reference PAY{YYYYMMDD}-{id} used
// when a treasurer does not supply one.
func PaymentReference(date time.Time, invoiceID uint) string {
	return fmt.Sprintf("PAY%s-%d", date.Format("20060102"), invoiceID)
}

// FormatNumber renders the sequential invoice number for a year.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("FAC-%d-%04d", year, seq)
}
