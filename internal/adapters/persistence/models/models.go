package models

import (
	"time"

	"facture-workflow/internal/core/domain"

	"gorm.io/gorm"
)

// ============================================================
// Auth & Users
// ============================================================

// User represents users table
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Email       string         `gorm:"uniqueIndex;size:191;not null" json:"email"`
	Password    string         `gorm:"size:255;not null" json:"-"`
	Nom         string         `gorm:"size:100;not null" json:"nom"`
	Prenom      string         `gorm:"size:100" json:"prenom"`
	Role        string         `gorm:"size:10;not null;index" json:"role"`
	IsActive    bool           `gorm:"not null;default:true" json:"is_active"`
	LastLoginAt *time.Time     `json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// FullName returns "Prenom Nom", or Nom alone.
func (u *User) FullName() string {
	if u.Prenom == "" {
		return u.Nom
	}
	return u.Prenom + " " + u.Nom
}

// Actor returns the lifecycle identity of the user.
func (u *User) Actor() domain.Actor {
	return domain.Actor{ID: u.ID, Role: domain.Role(u.Role)}
}

// UserResponse DTO
type UserResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	Nom         string     `json:"nom"`
	Prenom      string     `json:"prenom"`
	FullName    string     `json:"full_name"`
	Role        string     `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:          u.ID,
		Email:       u.Email,
		Nom:         u.Nom,
		Prenom:      u.Prenom,
		FullName:    u.FullName(),
		Role:        u.Role,
		IsActive:    u.IsActive,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

// UserRef is the short form used inside invoice payloads
type UserRef struct {
	ID       uint   `json:"id"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (u *User) ToRef() *UserRef {
	if u == nil || u.ID == 0 {
		return nil
	}
	return &UserRef{ID: u.ID, FullName: u.FullName(), Role: u.Role}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:255;not null;index" json:"-"`
	ExpiresAt time.Time  `gorm:"not null" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired() bool {
	return time.Now().After(rt.ExpiresAt)
}

// ============================================================
// Invoices
// ============================================================

// Invoice represents factures table
type Invoice struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Number       string  `gorm:"size:20;uniqueIndex;not null" json:"number"`
	SupplierName string  `gorm:"size:200;not null;index" json:"supplier_name"`
	LegalForm    string  `gorm:"size:30" json:"legal_form"`
	Status       string  `gorm:"size:20;not null;index" json:"status"`
	AmountHT     float64 `gorm:"column:amount_ht;type:decimal(15,2);not null" json:"amount_ht"`
	VATRate      float64 `gorm:"column:vat_rate;type:decimal(5,2);not null" json:"vat_rate"`
	VATAmount    float64 `gorm:"column:vat_amount;type:decimal(15,2);not null" json:"vat_amount"`
	WithheldVAT  float64 `gorm:"column:withheld_vat;type:decimal(15,2);not null;default:0" json:"withheld_vat"`
	AmountTTC    float64 `gorm:"column:amount_ttc;type:decimal(15,2);not null" json:"amount_ttc"`
	Modality     string  `gorm:"size:10" json:"modality"`
	Rebillable   bool    `gorm:"not null;default:false" json:"rebillable"`

	IssueDate     *time.Time `gorm:"index" json:"issue_date"`
	ReceptionDate *time.Time `json:"reception_date"`
	DeliveryDate  *time.Time `json:"delivery_date"`
	DueDate       *time.Time `gorm:"index" json:"due_date"`

	Designation string `gorm:"size:500" json:"designation"`
	OrderRef    string `gorm:"size:100" json:"order_ref"`
	Period      string `gorm:"size:50" json:"period"`
	Comments    string `gorm:"size:1000" json:"comments"`

	CreatorID    uint  `gorm:"not null;index" json:"creator_id"`
	Validator1ID *uint `gorm:"column:validator1_id;index" json:"validator1_id"`
	Validator2ID *uint `gorm:"column:validator2_id;index" json:"validator2_id"`
	TreasurerID  *uint `gorm:"index" json:"treasurer_id"`

	SubmittedAt     *time.Time `json:"submitted_at"`
	ValidatedV1At   *time.Time `gorm:"column:validated_v1_at" json:"validated_v1_at"`
	ValidatedV2At   *time.Time `gorm:"column:validated_v2_at" json:"validated_v2_at"`
	RejectionReason string     `gorm:"size:600" json:"rejection_reason,omitempty"`

	PaymentRef     string     `gorm:"size:200" json:"payment_reference,omitempty"`
	PaymentDate    *time.Time `json:"payment_date,omitempty"`
	PaymentComment string     `gorm:"size:500" json:"payment_comment,omitempty"`

	AttachmentName string `gorm:"size:255" json:"attachment_name,omitempty"`
	AttachmentPath string `gorm:"size:500" json:"-"`
	AttachmentSize int64  `json:"attachment_size,omitempty"`
	AttachmentMIME string `gorm:"column:attachment_mime;size:100" json:"attachment_mime,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Creator    *User `gorm:"foreignKey:CreatorID" json:"-"`
	Validator1 *User `gorm:"foreignKey:Validator1ID" json:"-"`
	Validator2 *User `gorm:"foreignKey:Validator2ID" json:"-"`
	Treasurer  *User `gorm:"foreignKey:TreasurerID" json:"-"`
}

func (Invoice) TableName() string {
	return "factures"
}

// Subject returns the lifecycle view of the invoice.
func (i *Invoice) Subject() domain.Subject {
	ttc := i.AmountTTC
	return domain.Subject{
		ID:           i.ID,
		Status:       domain.Status(i.Status),
		CreatorID:    i.CreatorID,
		Validator1ID: i.Validator1ID,
		Validator2ID: i.Validator2ID,
		TreasurerID:  i.TreasurerID,
		AmountHT:     i.AmountHT,
		AmountTTC:    &ttc,
		DueDate:      i.DueDate,
	}
}

// Fields returns the rule-bearing values of the invoice.
func (i *Invoice) Fields() domain.Fields {
	return domain.Fields{
		AmountHT:     i.AmountHT,
		VATRate:      i.VATRate,
		WithheldVAT:  i.WithheldVAT,
		IssueDate:    i.IssueDate,
		Designation:  i.Designation,
		Comments:     i.Comments,
		Validator1ID: i.Validator1ID,
		Validator2ID: i.Validator2ID,
	}
}

// Recompute derives VAT, TTC and due date from the stored inputs.
func (i *Invoice) Recompute() {
	i.VATAmount = domain.ComputeVAT(i.AmountHT, i.VATRate)
	i.AmountTTC = domain.ComputeTTC(i.AmountHT, i.VATAmount, i.WithheldVAT)
	if due, ok := domain.ComputeDueDate(i.IssueDate, domain.Modality(i.Modality)); ok {
		i.DueDate = &due
	} else {
		i.DueDate = nil
	}
}

// HasAttachment reports whether a file is stored for the invoice.
func (i *Invoice) HasAttachment() bool {
	return i.AttachmentPath != ""
}

// InvoiceResponse DTO; adds the values computed at read time
type InvoiceResponse struct {
	*Invoice
	DaysUntilDue *int            `json:"days_until_due"`
	Urgency      domain.Urgency  `json:"urgency"`
	Actions      []domain.Action `json:"actions"`
	Creator      *UserRef        `json:"creator,omitempty"`
	Validator1   *UserRef        `json:"validator1,omitempty"`
	Validator2   *UserRef        `json:"validator2,omitempty"`
	Treasurer    *UserRef        `json:"treasurer,omitempty"`
}

// ToResponse evaluates due-date metrics and the actions open to actor.
func (i *Invoice) ToResponse(actor domain.Actor, now time.Time, threshold int) *InvoiceResponse {
	resp := &InvoiceResponse{
		Invoice:    i,
		Urgency:    domain.UrgencyUndetermined,
		Actions:    domain.PermittedActions(i.Subject(), actor),
		Creator:    i.Creator.ToRef(),
		Validator1: i.Validator1.ToRef(),
		Validator2: i.Validator2.ToRef(),
		Treasurer:  i.Treasurer.ToRef(),
	}
	if days, ok := domain.DaysUntilDue(i.DueDate, now); ok {
		resp.DaysUntilDue = &days
		resp.Urgency = domain.ClassifyUrgency(days, ok, threshold)
	}
	return resp
}

// ValidationTrace represents validation_traces table: one row per
// transition, never updated
type ValidationTrace struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	InvoiceID      uint      `gorm:"not null;index" json:"invoice_id"`
	UserID         uint      `gorm:"not null;index" json:"user_id"`
	Action         string    `gorm:"size:20;not null" json:"action"`
	Level          string    `gorm:"size:5;not null" json:"level"`
	PreviousStatus string    `gorm:"size:20;not null" json:"previous_status"`
	NewStatus      string    `gorm:"size:20;not null" json:"new_status"`
	Approved       bool      `gorm:"not null" json:"approved"`
	Comment        string    `gorm:"size:500" json:"comment"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"created_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (ValidationTrace) TableName() string {
	return "validation_traces"
}

// ============================================================
// Notifications
// ============================================================

// Notification types
const (
	NotifValidationV1 = "VALIDATION_V1"
	NotifValidationV2 = "VALIDATION_V2"
	NotifTreasury     = "TRESORERIE"
	NotifRejection    = "REJET"
	NotifPayment      = "PAIEMENT"
	NotifDueSoon      = "ECHEANCE_PROCHE"
)

// Notification represents notifications table
type Notification struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	RecipientID uint       `gorm:"not null;index" json:"recipient_id"`
	InvoiceID   *uint      `gorm:"index" json:"invoice_id"`
	Type        string     `gorm:"size:20;not null;index" json:"type"`
	Title       string     `gorm:"size:200;not null" json:"title"`
	Message     string     `gorm:"size:1000;not null" json:"message"`
	Urgent      bool       `gorm:"not null;default:false" json:"urgent"`
	IsRead      bool       `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

// AutoMigrate runs auto migration for all tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Invoice{},
		&ValidationTrace{},
		&Notification{},
	)
}
