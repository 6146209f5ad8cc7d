// File: internal/codec/identity.go
package codec

import "errors"

// Sentinel errors for request validation ahead of any network call.
var (
	ErrTooManyTickets  = errors.New("too many tickets")
	ErrBadTicketCounts = errors.New("invalid ticket counts")
)

// letterCodes maps the leading letter of a national ID to its two-digit
// location code: A through H start at 10, the sequence then continues from J
// (the alphabet reserves I).
var letterCodes = func() map[byte]int {
	m := make(map[byte]int, 23)
	code := 10
	for c := byte('A'); c <= 'Z' && code < 33; c++ {
		if c == 'I' {
			continue
		}
		m[c] = code
		code++
	}
	return m
}()

// ValidateNationalID reports whether id passes the ROC national ID checksum.
// The server runs the equivalent check, so the arithmetic here must match it
// exactly: the letter expands to its two-digit location code, and the digit
// string d0..d10 is weighted 1,9,8,7,6,5,4,3,2,1,1; the ID is valid when the
// weighted sum is divisible by 10.
func ValidateNationalID(id string) bool {
	if len(id) != 10 {
		return false
	}
	first := id[0]
	if first >= 'a' && first <= 'z' {
		first -= 'a' - 'A'
	}
	loc, ok := letterCodes[first]
	if !ok {
		return false
	}
	for i := 1; i < 10; i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}

	sum := loc / 10
	weight := 9
	add := func(d int) {
		if weight == 0 {
			weight = 1
		}
		sum += d * weight
		weight--
	}
	add(loc % 10)
	for i := 1; i < 10; i++ {
		add(int(id[i] - '0'))
	}
	return sum%10 == 0
}

// ValidateTaxID is the shallow structural check for a company tax ID: ten
// numeric characters.
func ValidateTaxID(id string) bool {
	if len(id) != 10 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
