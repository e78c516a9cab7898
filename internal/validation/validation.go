// Package validation holds input normalization and format checks shared
// by the roster import and check-in paths.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ValidateRequired checks that a field is not blank
func ValidateRequired(value, fieldName string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(fieldName + " is required")
	}
	return nil
}

// ValidateMaxLength checks the maximum length of a string
func ValidateMaxLength(value string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(value) > maxLength {
		return fmt.Errorf("%s must be at most %d characters long", fieldName, maxLength)
	}
	return nil
}

// NormalizeOwnerName collapses whitespace for stable owner matching
func NormalizeOwnerName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// NormalizeUnitNumber trims and uppercases a unit number so "12a" and
// "12A " refer to the same unit
func NormalizeUnitNumber(unitNumber string) string {
	return strings.ToUpper(strings.TrimSpace(unitNumber))
}

// NormalizeTaxID strips formatting punctuation from a tax identifier
func NormalizeTaxID(taxID string) string {
	var b strings.Builder
	for _, r := range taxID {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateTaxID checks a normalized tax identifier. Individual IDs carry
// 11 digits and corporate IDs 14.
func ValidateTaxID(taxID string) error {
	digits := NormalizeTaxID(taxID)
	if len(digits) != 11 && len(digits) != 14 {
		return errors.New("tax_id must have 11 or 14 digits")
	}
	return nil
}
