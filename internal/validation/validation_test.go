package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeOwnerName(t *testing.T) {
	assert.Equal(t, "Maria Souza", NormalizeOwnerName("  Maria   Souza "))
	assert.Equal(t, "", NormalizeOwnerName("   "))
}

func TestNormalizeUnitNumber(t *testing.T) {
	assert.Equal(t, "101A", NormalizeUnitNumber(" 101a "))
}

func TestNormalizeTaxID(t *testing.T) {
	assert.Equal(t, "52998224725", NormalizeTaxID("529.982.247-25"))
}

func TestValidateTaxID(t *testing.T) {
	assert.NoError(t, ValidateTaxID("52998224725"))
	assert.NoError(t, ValidateTaxID("11.222.333/0001-81"))
	assert.Error(t, ValidateTaxID("123"))
	assert.Error(t, ValidateTaxID(""))
}
