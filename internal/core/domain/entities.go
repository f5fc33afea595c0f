package domain

import (
	"strings"
	"time"
)

// Role represents user role in the system
type Role string

const (
	RoleU1    Role = "U1"    // invoice creator
	RoleV1    Role = "V1"    // first-level validator
	RoleV2    Role = "V2"    // second-level validator
	RoleT1    Role = "T1"    // treasury
	RoleAdmin Role = "ADMIN" // user administration, read-only on invoices
)

// Roles lists every role in workflow order.
var Roles = []Role{RoleU1, RoleV1, RoleV2, RoleT1, RoleAdmin}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// ParseRole normalises s and returns the matching role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.IsValid()
}

// Status is the lifecycle state of an invoice
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingV1       Status = "PENDING_V1"
	StatusPendingV2       Status = "PENDING_V2"
	StatusPendingTreasury Status = "PENDING_TREASURY"
	StatusPaid            Status = "PAID"
	StatusRejected        Status = "REJECTED"
	StatusCancelled       Status = "CANCELLED"
)

// Statuses lists every state in lifecycle order.
var Statuses = []Status{
	StatusDraft,
	StatusPendingV1,
	StatusPendingV2,
	StatusPendingTreasury,
	StatusPaid,
	StatusRejected,
	StatusCancelled,
}

// PendingStatuses are the states in which some actor still has to act.
var PendingStatuses = []Status{StatusPendingV1, StatusPendingV2, StatusPendingTreasury}

// legacyStatuses maps the French labels still sent by older clients.
// SAISIE and BROUILLON both name the initial state.
var legacyStatuses = map[string]Status{
	"SAISIE":           StatusDraft,
	"BROUILLON":        StatusDraft,
	"EN_VALIDATION_V1": StatusPendingV1,
	"EN_VALIDATION_V2": StatusPendingV2,
	"EN_TRESORERIE":    StatusPendingTreasury,
	"PAYEE":            StatusPaid,
	"REJETEE":          StatusRejected,
	"ANNULEE":          StatusCancelled,
}

// IsValid reports whether s is a canonical status.
func (s Status) IsValid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// ParseStatus accepts canonical and legacy names.
func ParseStatus(s string) (Status, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if st := Status(key); st.IsValid() {
		return st, true
	}
	st, ok := legacyStatuses[key]
	return st, ok
}

// LegalForm is the supplier's legal form
type LegalForm string

const (
	LegalFormSARL        LegalForm = "SARL"
	LegalFormSAS         LegalForm = "SAS"
	LegalFormSA          LegalForm = "SA"
	LegalFormEURL        LegalForm = "EURL"
	LegalFormSNC         LegalForm = "SNC"
	LegalFormSoleTrader  LegalForm = "ENTREPRISE_INDIVIDUELLE"
	LegalFormMicro       LegalForm = "MICRO_ENTREPRISE"
	LegalFormAssociation LegalForm = "ASSOCIATION"
	LegalFormOther       LegalForm = "AUTRE"
)

// LegalForms lists the accepted legal forms.
var LegalForms = []LegalForm{
	LegalFormSARL, LegalFormSAS, LegalFormSA, LegalFormEURL, LegalFormSNC,
	LegalFormSoleTrader, LegalFormMicro, LegalFormAssociation, LegalFormOther,
}

func (f LegalForm) IsValid() bool {
	for _, known := range LegalForms {
		if f == known {
			return true
		}
	}
	return false
}

// Modality is the payment term of an invoice
type Modality string

const (
	Modality30  Modality = "DELAI_30"
	Modality60  Modality = "DELAI_60"
	Modality90  Modality = "DELAI_90"
	Modality120 Modality = "DELAI_120"
)

var modalityDays = map[Modality]int{
	Modality30:  30,
	Modality60:  60,
	Modality90:  90,
	Modality120: 120,
}

// Days returns the term length, or 0 when the modality is unset or unknown.
func (m Modality) Days() int {
	return modalityDays[m]
}

func (m Modality) IsValid() bool {
	return m.Days() > 0
}

// ParseModality accepts "DELAI_30" as well as a bare "30".
func ParseModality(s string) (Modality, bool) {
	key := strings.ToUpper(strings.TrimSpace(s))
	if key == "" {
		return "", false
	}
	if !strings.HasPrefix(key, "DELAI_") {
		key = "DELAI_" + key
	}
	m := Modality(key)
	return m, m.IsValid()
}

// Actor is the authenticated user attempting an action
type Actor struct {
	ID   uint
	Role Role
}

// Subject is the lifecycle view of an invoice: the fields guards and
// reducers need, independent of how the invoice is stored.
type Subject struct {
	ID           uint
	Status       Status
	CreatorID    uint
	Validator1ID *uint
	Validator2ID *uint
	TreasurerID  *uint
	AmountHT     float64
	AmountTTC    *float64
	DueDate      *time.Time
}
