// File: internal/codec/identity_test.go
package codec

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateNationalID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id    string
		valid bool
	}{
		{"A123456789", true},
		{"a123456789", true}, // case-insensitive letter
		{"F131104093", true},
		{"A123456788", false}, // checksum off by one
		{"B123456789", false}, // different letter, same digits
		{"A12345678", false},  // too short
		{"A1234567890", false},
		{"AA23456789", false}, // non-digit body
		{"1123456789", false}, // missing letter
		{"I123456789", false}, // reserved letter
		{"", false},
	}
	for _, tc := range tests {
		t.Run(tc.id, func(t *testing.T) {
			assert.Equal(t, tc.valid, ValidateNationalID(tc.id))
		})
	}
}

// The last digit carries weight one, so shifting it by d shifts the checksum
// by d mod 10: exactly one value of the last digit validates any prefix.
func TestValidateNationalIDLastDigitWeight(t *testing.T) {
	t.Parallel()

	valid := 0
	for d := 0; d <= 9; d++ {
		if ValidateNationalID(fmt.Sprintf("A12345678%d", d)) {
			valid++
		}
	}
	assert.Equal(t, 1, valid)
}

func TestValidateTaxID(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidateTaxID("0012345678"))
	assert.False(t, ValidateTaxID("001234567"))
	assert.False(t, ValidateTaxID("00123456789"))
	assert.False(t, ValidateTaxID("00123A5678"))
	assert.False(t, ValidateTaxID(""))
}
