package validator

import (
	"testing"

	"facture-workflow/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Email    string  `json:"email" validate:"required,email"`
	Nom      string  `json:"nom" validate:"required,max=10"`
	Role     string  `json:"role" validate:"required,role"`
	Amount   float64 `json:"amount_ht" validate:"gt=0"`
	Form     string  `json:"legal_form" validate:"legal_form"`
	Modality string  `json:"modality" validate:"modality"`
}

func TestStructValid(t *testing.T) {
	err := Struct(sample{Email: "a@b.fr", Nom: "Durand", Role: "V1", Amount: 10, Form: "SARL", Modality: "60"})
	assert.NoError(t, err)
}

func TestStructReportsJSONNames(t *testing.T) {
	err := Struct(sample{Email: "nope", Nom: "a very long name", Role: "BOSS", Form: "LLC", Modality: "DELAI_45"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	verrs, ok := err.(domain.ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", verrs["email"])
	assert.Equal(t, "must be at most 10 characters", verrs["nom"])
	assert.Contains(t, verrs, "role")
	assert.Equal(t, "must be greater than 0", verrs["amount_ht"])
	assert.Contains(t, verrs, "legal_form")
	assert.Contains(t, verrs, "modality")
}
