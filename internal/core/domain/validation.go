package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Field limits
const (
	MaxDesignationLength   = 500
	MaxCommentsLength      = 1000
	MinDecisionComment     = 10
	MaxDecisionComment     = 500
	MaxPaymentRefLength    = 200
	MaxAttachmentSize      = 10 << 20
	PaymentDateGracePeriod = 24 * time.Hour
)

// MIMETypeDOCX is the Office Open XML word-processing type.
const MIMETypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// AllowedAttachmentTypes is the MIME allow-list for invoice scans.
var AllowedAttachmentTypes = map[string]string{
	"application/pdf":    ".pdf",
	"image/jpeg":         ".jpg",
	"image/png":          ".png",
	"application/msword": ".doc",
	MIMETypeDOCX:         ".docx",
}

// Fields are the user-editable invoice values that carry rules.
type Fields struct {
	AmountHT     float64
	VATRate      float64
	WithheldVAT  float64
	IssueDate    *time.Time
	Designation  string
	Comments     string
	Validator1ID *uint
	Validator2ID *uint
}

func sameValidator(v1, v2 *uint) bool {
	return v1 != nil && v2 != nil && *v1 != 0 && *v1 == *v2
}

// ValidateFields checks the rules that hold in every state.
func ValidateFields(f Fields) error {
	errs := ValidationErrors{}
	if f.AmountHT <= 0 {
		errs["amount_ht"] = "must be greater than 0"
	}
	if f.VATRate < 0 || f.VATRate > 100 {
		errs["vat_rate"] = "must be between 0 and 100"
	}
	if f.WithheldVAT < 0 {
		errs["withheld_vat"] = "must not be negative"
	}
	if utf8.RuneCountInString(f.Designation) > MaxDesignationLength {
		errs["designation"] = fmt.Sprintf("must be at most %d characters", MaxDesignationLength)
	}
	if utf8.RuneCountInString(f.Comments) > MaxCommentsLength {
		errs["comments"] = fmt.Sprintf("must be at most %d characters", MaxCommentsLength)
	}
	if sameValidator(f.Validator1ID, f.Validator2ID) {
		errs["validator2_id"] = "must differ from the level-1 validator"
	}
	return errs.Err()
}

// ValidateForSubmission checks what a draft needs before it can enter
// validation. Each violation is reported under its own field.
func ValidateForSubmission(f Fields) error {
	errs := ValidationErrors{}
	if f.AmountHT <= 0 {
		errs["amount_ht"] = "must be greater than 0"
	}
	if f.IssueDate == nil || f.IssueDate.IsZero() {
		errs["issue_date"] = "is required"
	}
	if f.Validator1ID == nil || *f.Validator1ID == 0 {
		errs["validator1_id"] = "is required"
	}
	if f.Validator2ID == nil || *f.Validator2ID == 0 {
		errs["validator2_id"] = "is required"
	} else if sameValidator(f.Validator1ID, f.Validator2ID) {
		errs["validator2_id"] = "must differ from the level-1 validator"
	}
	return errs.Err()
}

// ValidateDecisionComment applies the comment rule for approve and reject.
// A rejection reason is mandatory; an approval note is optional but held
// to the same minimum when present.
func ValidateDecisionComment(a Action, comment string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(comment))
	required := a == ActionRejectV1 || a == ActionRejectV2

	switch {
	case n == 0 && required:
		return ValidationErrors{"comment": "a rejection reason is required"}
	case n == 0:
		return nil
	case n < MinDecisionComment:
		return ValidationErrors{"comment": fmt.Sprintf("must be at least %d characters", MinDecisionComment)}
	case n > MaxDecisionComment:
		return ValidationErrors{"comment": fmt.Sprintf("must be at most %d characters", MaxDecisionComment)}
	}
	return nil
}

// Payment is what a treasurer records when settling an invoice.
type Payment struct {
	Reference string
	Date      time.Time
	Comment   string
}

// ValidatePayment requires a reference and a date no more than one day
// ahead of now.
func ValidatePayment(p Payment, now time.Time) error {
	errs := ValidationErrors{}
	ref := strings.TrimSpace(p.Reference)
	switch {
	case ref == "":
		errs["payment_reference"] = "is required"
	case utf8.RuneCountInString(ref) > MaxPaymentRefLength:
		errs["payment_reference"] = fmt.Sprintf("must be at most %d characters", MaxPaymentRefLength)
	}
	if p.Date.IsZero() {
		errs["payment_date"] = "is required"
	} else if p.Date.After(now.Add(PaymentDateGracePeriod)) {
		errs["payment_date"] = "cannot be in the future"
	}
	if utf8.RuneCountInString(p.Comment) > MaxDecisionComment {
		errs["comment"] = fmt.Sprintf("must be at most %d characters", MaxDecisionComment)
	}
	return errs.Err()
}

// ValidateAttachment checks size and type of an uploaded file.
func ValidateAttachment(size int64, mimeType string) error {
	errs := ValidationErrors{}
	if size <= 0 {
		errs["file"] = "is empty"
	} else if size > MaxAttachmentSize {
		errs["file"] = "must not exceed 10MB"
	}
	if _, ok := AllowedAttachmentTypes[NormaliseMIME(mimeType)]; !ok {
		errs["content_type"] = "must be PDF, JPEG, PNG, DOC or DOCX"
	}
	return errs.Err()
}

// NormaliseMIME strips parameters and case from a Content-Type value.
func NormaliseMIME(m string) string {
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = m[:i]
	}
	return strings.ToLower(strings.TrimSpace(m))
}

// AttachmentExt returns the storage extension for a MIME type.
func AttachmentExt(mimeType string) string {
	return AllowedAttachmentTypes[NormaliseMIME(mimeType)]
}
