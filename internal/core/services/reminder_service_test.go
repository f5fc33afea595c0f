package services

import (
	"context"
	"testing"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReminderService_Run(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// due in four days, waiting on V2
	urgent := h.advance(t, "2025-05-20", domain.StatusPendingV2)
	// overdue, waiting on the treasurer
	late := h.advance(t, "2025-05-01", domain.StatusPendingTreasury)
	// due in sixteen days, outside the window
	h.advance(t, "2025-06-01", domain.StatusPendingV1)
	// settled invoices are never reminded
	h.advance(t, "2025-05-01", domain.StatusPaid)

	report, err := h.reminders.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 2, report.Sent)
	assert.Zero(t, report.Failed)

	reminders := func(u *models.User) []*models.Notification {
		list, err := h.notifier.List(ctx, u.ID, false, paginationAll())
		require.NoError(t, err)
		var out []*models.Notification
		for _, n := range list.Items {
			if n.Type == models.NotifDueSoon {
				out = append(out, n)
			}
		}
		return out
	}

	v2 := reminders(h.v2)
	require.Len(t, v2, 1)
	assert.Equal(t, urgent.ID, *v2[0].InvoiceID)
	assert.Contains(t, v2[0].Message, "4 jours")
	assert.True(t, v2[0].Urgent)

	t1 := reminders(h.t1)
	require.Len(t, t1, 1)
	assert.Equal(t, late.ID, *t1[0].InvoiceID)
	assert.Equal(t, "Échéance dépassée", t1[0].Title)

	again, err := h.reminders.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, again.Sent, "one reminder per day")
	assert.Equal(t, 2, again.Skipped)
}

func TestReminderService_OpenTreasuryQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	other := h.seed(t, "gina@example.com", "Roux", domain.RoleT1)
	// park t1 and other so the next approval finds no treasurer
	for _, u := range []*models.User{h.t1, other} {
		u.IsActive = false
		require.NoError(t, h.userRepo.Update(ctx, u))
	}
	open := h.advance(t, "2025-05-20", domain.StatusPendingTreasury)
	require.Nil(t, open.TreasurerID)

	for _, u := range []*models.User{h.t1, other} {
		u.IsActive = true
		require.NoError(t, h.userRepo.Update(ctx, u))
	}

	report, err := h.reminders.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 2, report.Sent, "every active treasurer is reminded")
}
