package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-inventory-offline/internal/apperr"
)

type sample struct {
	Name     string `validate:"notblank"`
	Quantity int    `validate:"gt=0"`
}

func TestValidatePasses(t *testing.T) {
	assert.NoError(t, Validate(&sample{Name: "T-Shirt", Quantity: 1}))
}

func TestValidateBlankName(t *testing.T) {
	err := Validate(&sample{Name: "   ", Quantity: 1})
	var ve *apperr.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "sample.Name", ve.Field)
}

func TestValidateQuantity(t *testing.T) {
	errs := ValidateStruct(&sample{Name: "Belt", Quantity: 0})
	require.Len(t, errs, 1)
	assert.Equal(t, "gt", errs[0].Tag)
	assert.Equal(t, "0", errs[0].Value)
}
