package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"facture-workflow/internal/adapters/persistence/models"
	"facture-workflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceService_Create(t *testing.T) {
	h := newHarness(t)

	resp := h.draft(t, "2025-06-01")

	assert.Equal(t, string(domain.StatusDraft), resp.Status)
	assert.Regexp(t, `^FAC-\d{4}-0001$`, resp.Number)
	assert.Equal(t, 200.0, resp.VATAmount)
	assert.Equal(t, 1200.0, resp.AmountTTC)
	require.NotNil(t, resp.DueDate)
	assert.Equal(t, "2025-07-01", resp.DueDate.Format("2006-01-02"))
	require.NotNil(t, resp.DaysUntilDue)
	assert.Equal(t, 16, *resp.DaysUntilDue)
	assert.Equal(t, domain.UrgencyNormal, resp.Urgency)
	assert.Equal(t, []domain.Action{domain.ActionSubmit, domain.ActionCancel, domain.ActionEdit, domain.ActionDelete}, resp.Actions)
	require.NotNil(t, resp.Creator)
	assert.Equal(t, h.u1.ID, resp.Creator.ID)
}

func TestInvoiceService_CreateRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	t.Run("only U1 creates", func(t *testing.T) {
		_, err := h.invoices.Create(ctx, h.v1.Actor(), h.input("2025-06-01"))
		assert.ErrorIs(t, err, ErrCreateForbidden)
	})

	t.Run("same validator twice", func(t *testing.T) {
		in := h.input("2025-06-01")
		in.Validator2ID = &h.v1.ID
		_, err := h.invoices.Create(ctx, h.u1.Actor(), in)

		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "validator2_id")
	})

	t.Run("validator with the wrong role", func(t *testing.T) {
		in := h.input("2025-06-01")
		in.Validator1ID = &h.v2.ID
		_, err := h.invoices.Create(ctx, h.u1.Actor(), in)

		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "validator1_id")
	})

	t.Run("bad fields", func(t *testing.T) {
		in := h.input("not a date")
		in.SupplierName = ""
		in.AmountHT = -5
		_, err := h.invoices.Create(ctx, h.u1.Actor(), in)

		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "supplier_name")
		assert.Contains(t, verrs, "amount_ht")
		assert.Contains(t, verrs, "issue_date")
	})
}

func TestInvoiceService_FullLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	paid := h.advance(t, "2025-06-01", domain.StatusPaid)

	assert.Equal(t, "VIR-0001", paid.PaymentRef)
	require.NotNil(t, paid.PaymentDate)
	assert.Equal(t, "2025-06-15", paid.PaymentDate.Format("2006-01-02"))
	require.NotNil(t, paid.TreasurerID, "treasurer assigned at level 2")
	assert.Equal(t, h.t1.ID, *paid.TreasurerID)
	assert.NotNil(t, paid.SubmittedAt)
	assert.NotNil(t, paid.ValidatedV1At)
	assert.NotNil(t, paid.ValidatedV2At)
	assert.Empty(t, paid.Actions)

	history, err := h.invoices.History(ctx, h.u1.Actor(), paid.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	for i, action := range []domain.Action{domain.ActionSubmit, domain.ActionApproveV1, domain.ActionApproveV2, domain.ActionPay} {
		assert.Equal(t, string(action), history[i].Action)
	}
	assert.Equal(t, h.t1.ID, history[3].UserID)

	kinds := func(u *models.User) []string {
		list, err := h.notifier.List(ctx, u.ID, false, paginationAll())
		require.NoError(t, err)
		var out []string
		for _, n := range list.Items {
			out = append(out, n.Type)
		}
		return out
	}
	assert.ElementsMatch(t, []string{models.NotifValidationV1, models.NotifPayment}, kinds(h.v1))
	assert.ElementsMatch(t, []string{models.NotifValidationV2, models.NotifPayment}, kinds(h.v2))
	assert.ElementsMatch(t, []string{models.NotifTreasury}, kinds(h.t1))
	assert.ElementsMatch(t, []string{models.NotifPayment}, kinds(h.u1))

	stats, err := h.users.Stats(ctx, h.v1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FacturesValideesV1)

	stats, err = h.users.Stats(ctx, h.t1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FacturesTraiteesTresorerie)

	stats, err = h.users.Stats(ctx, h.u1.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FacturesCreees)
}

func TestInvoiceService_RejectThenResubmit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.advance(t, "2025-06-01", domain.StatusPendingV1)

	_, err := h.invoices.RejectV1(ctx, h.v1.Actor(), pending.ID, &DecisionInput{})
	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs, "a reason is mandatory")
	assert.Contains(t, verrs, "comment")

	rejected, err := h.invoices.RejectV1(ctx, h.v1.Actor(), pending.ID, &DecisionInput{Comment: "Montant erroné sur la ligne 2"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusRejected), rejected.Status)
	assert.Equal(t, "Montant erroné sur la ligne 2", rejected.RejectionReason)

	list, err := h.notifier.List(ctx, h.u1.ID, true, paginationAll())
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, models.NotifRejection, list.Items[0].Type)
	assert.True(t, list.Items[0].Urgent)

	asCreator, err := h.invoices.Get(ctx, h.u1.Actor(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, []domain.Action{domain.ActionEdit}, asCreator.Actions)

	in := h.input("2025-06-01")
	in.AmountHT = 900
	edited, err := h.invoices.Update(ctx, h.u1.Actor(), pending.ID, in)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusDraft), edited.Status)
	assert.Empty(t, edited.RejectionReason)
	assert.Nil(t, edited.SubmittedAt)
	assert.Equal(t, 1080.0, edited.AmountTTC)

	history, err := h.invoices.History(ctx, h.u1.Actor(), pending.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	last := history[2]
	assert.Equal(t, string(domain.ActionEdit), last.Action)
	assert.Equal(t, "U1", last.Level)
	assert.Equal(t, h.u1.ID, last.UserID)
	assert.Equal(t, string(domain.StatusRejected), last.PreviousStatus)
	assert.Equal(t, string(domain.StatusDraft), last.NewStatus)

	// editing a plain draft leaves no trail
	in.Comments = "Montant corrigé"
	_, err = h.invoices.Update(ctx, h.u1.Actor(), pending.ID, in)
	require.NoError(t, err)
	history, err = h.invoices.History(ctx, h.u1.Actor(), pending.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	resubmitted, err := h.invoices.Submit(ctx, h.u1.Actor(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusPendingV1), resubmitted.Status)
}

func TestInvoiceService_RejectV2(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.advance(t, "2025-06-01", domain.StatusPendingV2)
	rejected, err := h.invoices.RejectV2(ctx, h.v2.Actor(), pending.ID, &DecisionInput{Comment: "Bon de commande absent"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusRejected), rejected.Status)

	history, err := h.invoices.History(ctx, h.admin.Actor(), pending.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, string(domain.ActionRejectV2), history[2].Action)
	assert.Equal(t, "Bon de commande absent", history[2].Comment)
}

func TestInvoiceService_TreasurerAssignedAtCreate(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	t1b := h.seed(t, "gaelle@example.com", "Roux", domain.RoleT1)

	t.Run("rejects a non treasurer", func(t *testing.T) {
		in := h.input("2025-06-01")
		in.TreasurerID = &h.v1.ID
		_, err := h.invoices.Create(ctx, h.u1.Actor(), in)
		var verrs domain.ValidationErrors
		require.ErrorAs(t, err, &verrs)
		assert.Contains(t, verrs, "treasurer_id")
	})

	in := h.input("2025-06-01")
	in.TreasurerID = &h.t1.ID
	draft, err := h.invoices.Create(ctx, h.u1.Actor(), in)
	require.NoError(t, err)
	require.NotNil(t, draft.TreasurerID)
	assert.Equal(t, h.t1.ID, *draft.TreasurerID)

	_, err = h.invoices.Submit(ctx, h.u1.Actor(), draft.ID)
	require.NoError(t, err)
	_, err = h.invoices.ApproveV1(ctx, h.v1.Actor(), draft.ID, &DecisionInput{})
	require.NoError(t, err)
	approved, err := h.invoices.ApproveV2(ctx, h.v2.Actor(), draft.ID, &DecisionInput{})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusPendingTreasury), approved.Status)
	require.NotNil(t, approved.TreasurerID)
	assert.Equal(t, h.t1.ID, *approved.TreasurerID, "assignment made at creation is kept")

	_, err = h.invoices.Pay(ctx, t1b.Actor(), draft.ID, &PayInput{PaymentReference: "VIR-0002"})
	assert.ErrorIs(t, err, domain.ErrNotAssigned)

	paid, err := h.invoices.Pay(ctx, h.t1.Actor(), draft.ID, &PayInput{PaymentReference: "VIR-0002"})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusPaid), paid.Status)
}

func TestInvoiceService_Guards(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.advance(t, "2025-06-01", domain.StatusPendingV1)

	tests := []struct {
		name  string
		run   func() error
		is    error
		state string
	}{
		{
			name: "level 2 before level 1",
			run: func() error {
				_, err := h.invoices.ApproveV2(ctx, h.v2.Actor(), pending.ID, &DecisionInput{})
				return err
			},
			is: domain.ErrWrongState,
		},
		{
			name: "another V1",
			run: func() error {
				_, err := h.invoices.ApproveV1(ctx, h.v1b.Actor(), pending.ID, &DecisionInput{})
				return err
			},
			is: domain.ErrNotAssigned,
		},
		{
			name: "creator approves",
			run: func() error {
				_, err := h.invoices.ApproveV1(ctx, h.u1.Actor(), pending.ID, &DecisionInput{})
				return err
			},
			is: domain.ErrWrongRole,
		},
		{
			name: "edit once submitted",
			run: func() error {
				_, err := h.invoices.Update(ctx, h.u1.Actor(), pending.ID, h.input("2025-06-01"))
				return err
			},
			is: domain.ErrWrongState,
		},
		{
			name: "short approval note",
			run: func() error {
				_, err := h.invoices.ApproveV1(ctx, h.v1.Actor(), pending.ID, &DecisionInput{Comment: "ok"})
				return err
			},
			is: domain.ErrInvalidInput,
		},
		{
			name: "missing invoice",
			run: func() error {
				_, err := h.invoices.Submit(ctx, h.u1.Actor(), 9999)
				return err
			},
			is: ErrInvoiceNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
		})
	}

	var terr *domain.TransitionError
	_, err := h.invoices.Pay(ctx, h.t1.Actor(), pending.ID, &PayInput{PaymentReference: "X"})
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, domain.ActionPay, terr.Action)

	still, err := h.invoices.Get(ctx, h.v1.Actor(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusPendingV1), still.Status, "refused actions leave the invoice untouched")
}

func TestInvoiceService_SubmitNeedsValidators(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	in := h.input("2025-06-01")
	in.Validator1ID = nil
	in.Validator2ID = nil
	draft, err := h.invoices.Create(ctx, h.u1.Actor(), in)
	require.NoError(t, err)

	_, err = h.invoices.Submit(ctx, h.u1.Actor(), draft.ID)
	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "validator1_id")
	assert.Contains(t, verrs, "validator2_id")

	got, err := h.invoices.Get(ctx, h.u1.Actor(), draft.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusDraft), got.Status)
}

func TestInvoiceService_CancelAndDelete(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.draft(t, "2025-06-01")
	cancelled, err := h.invoices.Cancel(ctx, h.u1.Actor(), first.ID, &DecisionInput{})
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusCancelled), cancelled.Status)
	assert.Empty(t, cancelled.Actions)

	second := h.draft(t, "2025-06-01")
	assert.ErrorIs(t, h.invoices.Delete(ctx, h.u1b.Actor(), second.ID), domain.ErrNotAssigned)
	require.NoError(t, h.invoices.Delete(ctx, h.u1.Actor(), second.ID))

	_, err = h.invoices.Get(ctx, h.u1.Actor(), second.ID)
	assert.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestInvoiceService_Visibility(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	draft := h.draft(t, "2025-06-01")

	_, err := h.invoices.Get(ctx, h.u1b.Actor(), draft.ID)
	assert.ErrorIs(t, err, ErrInvoiceAccessDenied)

	_, err = h.invoices.History(ctx, h.v1b.Actor(), draft.ID)
	assert.ErrorIs(t, err, ErrInvoiceAccessDenied)

	asAdmin, err := h.invoices.Get(ctx, h.admin.Actor(), draft.ID)
	require.NoError(t, err)
	assert.Empty(t, asAdmin.Actions, "admins are read-only")
}

func TestInvoiceService_ListScopes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// due June 19th, four days out
	urgent := h.advance(t, "2025-05-20", domain.StatusPendingV1)
	// due May 31st
	overdue := h.advance(t, "2025-05-01", domain.StatusPendingV1)
	h.draft(t, "2025-06-01")

	ids := func(list *InvoiceList) []uint {
		out := make([]uint, 0, len(list.Items))
		for _, it := range list.Items {
			out = append(out, it.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		actor domain.Actor
		input ListInvoicesInput
		want  []uint
	}{
		{"V1 default scope", h.v1.Actor(), ListInvoicesInput{}, []uint{overdue.ID, urgent.ID}},
		{"urgent", h.v1.Actor(), ListInvoicesInput{Scope: ScopeUrgent}, []uint{urgent.ID}},
		{"overdue", h.v1.Actor(), ListInvoicesInput{Scope: ScopeOverdue}, []uint{overdue.ID}},
		{"other V1", h.v1b.Actor(), ListInvoicesInput{}, []uint{}},
		{"V2 sees nothing yet", h.v2.Actor(), ListInvoicesInput{}, []uint{}},
		{"creator drafts by legacy name", h.u1.Actor(), ListInvoicesInput{Scope: ScopeMine, Status: "SAISIE"}, nil},
		{"search", h.admin.Actor(), ListInvoicesInput{Scope: ScopeAll, Search: "acme"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := h.invoices.List(ctx, tt.actor, &tt.input)
			require.NoError(t, err)
			if tt.want != nil {
				assert.ElementsMatch(t, tt.want, ids(list))
				assert.Equal(t, len(tt.want), list.Summary.Count)
			} else {
				assert.NotEmpty(t, list.Items)
			}
		})
	}

	list, err := h.invoices.List(ctx, h.u1.Actor(), &ListInvoicesInput{Scope: ScopeMine})
	require.NoError(t, err)
	assert.Equal(t, 3, list.Summary.Count)
	assert.Equal(t, 1, list.Summary.ByUrgency[domain.UrgencyUrgent])
	assert.Equal(t, 1, list.Summary.ByUrgency[domain.UrgencyOverdue])
	assert.Equal(t, 3600.0, list.Summary.Total)

	_, err = h.invoices.List(ctx, h.u1.Actor(), &ListInvoicesInput{Scope: "everything"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.invoices.List(ctx, h.u1.Actor(), &ListInvoicesInput{Status: "LOST"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInvoiceService_ListSearchCriteria(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	june := h.draft(t, "2025-06-01")
	in := h.input("2025-05-20")
	in.SupplierName = "Beta SAS"
	in.LegalForm = string(domain.LegalFormSAS)
	in.Modality = "60"
	in.AmountHT = 5000
	may, err := h.invoices.Create(ctx, h.u1.Actor(), in)
	require.NoError(t, err)

	ids := func(list *InvoiceList) []uint {
		out := make([]uint, 0, len(list.Items))
		for _, item := range list.Items {
			out = append(out, item.ID)
		}
		return out
	}

	tests := []struct {
		name  string
		input ListInvoicesInput
		want  []uint
	}{
		{"legal form", ListInvoicesInput{LegalForm: "sas"}, []uint{may.ID}},
		{"modality", ListInvoicesInput{Modality: "DELAI_30"}, []uint{june.ID}},
		{"number", ListInvoicesInput{Number: june.Number}, []uint{june.ID}},
		{"issued in June", ListInvoicesInput{IssueFrom: "2025-06-01", IssueTo: "30/06/2025"}, []uint{june.ID}},
		{"due by July 1st", ListInvoicesInput{DueTo: "2025-07-01"}, []uint{june.ID}},
		{"due after July 1st", ListInvoicesInput{DueFrom: "2025-07-02"}, []uint{may.ID}},
		{"amount ascending", ListInvoicesInput{Sort: "amount_ttc", Order: "asc"}, []uint{june.ID, may.ID}},
		{"issue date descending", ListInvoicesInput{Sort: "issue_date"}, []uint{june.ID, may.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := tt.input
			input.Scope = ScopeMine
			list, err := h.invoices.List(ctx, h.u1.Actor(), &input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(list))
		})
	}

	_, err = h.invoices.List(ctx, h.u1.Actor(), &ListInvoicesInput{
		LegalForm: "GMBH",
		Modality:  "45",
		DueFrom:   "demain",
		Sort:      "password",
		Order:     "sideways",
	})
	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	for _, field := range []string{"legal_form", "modality", "due_from", "sort", "order"} {
		assert.Contains(t, verrs, field)
	}
}

func TestInvoiceService_ReadsAfterWrites(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	pending := h.advance(t, "2025-06-01", domain.StatusPendingV1)

	before, err := h.invoices.List(ctx, h.v1.Actor(), &ListInvoicesInput{})
	require.NoError(t, err)
	require.Len(t, before.Items, 1)
	assert.NotEmpty(t, h.redis.Keys(), "list is cached")

	_, err = h.invoices.ApproveV1(ctx, h.v1.Actor(), pending.ID, &DecisionInput{})
	require.NoError(t, err)

	after, err := h.invoices.List(ctx, h.v1.Actor(), &ListInvoicesInput{})
	require.NoError(t, err)
	assert.Empty(t, after.Items, "cached list dropped by the transition")

	got, err := h.invoices.Get(ctx, h.v1.Actor(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.StatusPendingV2), got.Status)
}

func TestInvoiceService_BatchPay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.advance(t, "2025-06-01", domain.StatusPendingTreasury)
	b := h.advance(t, "2025-06-01", domain.StatusPendingTreasury)
	draft := h.draft(t, "2025-06-01")

	out, err := h.invoices.BatchPay(ctx, h.t1.Actor(), &BatchPayInput{
		IDs: []uint{a.ID, b.ID, a.ID, draft.ID, 9999},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Paid)
	assert.Equal(t, 2, out.Failed)
	require.Len(t, out.Results, 4, "duplicates are paid once")

	byID := map[uint]BatchPayResult{}
	for _, r := range out.Results {
		byID[r.ID] = r
	}
	require.True(t, byID[a.ID].Success)
	assert.Equal(t, domain.PaymentReference(fixedNow, a.ID), byID[a.ID].Invoice.PaymentRef)
	assert.Equal(t, domain.PaymentReference(fixedNow, b.ID), byID[b.ID].Invoice.PaymentRef)
	assert.False(t, byID[draft.ID].Success)
	assert.NotEmpty(t, byID[draft.ID].Error)
	assert.False(t, byID[9999].Success)

	_, err = h.invoices.BatchPay(ctx, h.t1.Actor(), &BatchPayInput{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestInvoiceService_PayValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	ready := h.advance(t, "2025-06-01", domain.StatusPendingTreasury)

	_, err := h.invoices.Pay(ctx, h.t1.Actor(), ready.ID, &PayInput{})
	var verrs domain.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "payment_reference")

	_, err = h.invoices.Pay(ctx, h.t1.Actor(), ready.ID, &PayInput{PaymentReference: "VIR-1", PaymentDate: "2025-07-30"})
	require.ErrorAs(t, err, &verrs)
	assert.Contains(t, verrs, "payment_date")
}

func TestInvoiceService_Attachment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	draft := h.draft(t, "2025-06-01")
	content := []byte("%PDF-1.4 scan")

	_, err := h.invoices.AttachFile(ctx, h.u1.Actor(), draft.ID, "scan.txt", "text/plain", 4, bytes.NewReader([]byte("text")))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = h.invoices.Attachment(ctx, h.u1.Actor(), draft.ID)
	assert.ErrorIs(t, err, ErrAttachmentNotFound)

	resp, err := h.invoices.AttachFile(ctx, h.u1.Actor(), draft.ID, "../../scan.pdf", "application/pdf; charset=binary", int64(len(content)), bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "scan.pdf", resp.AttachmentName)
	assert.Equal(t, "application/pdf", resp.AttachmentMIME)
	assert.Equal(t, int64(len(content)), resp.AttachmentSize)

	_, err = h.invoices.Submit(ctx, h.u1.Actor(), draft.ID)
	require.NoError(t, err)

	file, err := h.invoices.Attachment(ctx, h.v1.Actor(), draft.ID)
	require.NoError(t, err)
	defer file.File.Close()

	got, err := io.ReadAll(file.File)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	_, err = h.invoices.Attachment(ctx, h.u1b.Actor(), draft.ID)
	assert.True(t, errors.Is(err, ErrInvoiceAccessDenied))
}
