// File: internal/codec/tickets.go
package codec

import (
	"fmt"
	"strconv"
	"strings"
)

// EncodeTickets renders the per-class ticket-amount tokens in the fixed slot
// order the form expects. A slot holds "{count}{code}" when its class was
// requested, otherwise the empty placeholder. When every count is zero the
// request defaults to a single adult ticket.
//
// The slot count comes from the schema, not from the request: some
// deployments render four rows, others five.
func EncodeTickets(counts map[string]int, schema *FormSchema) ([]string, error) {
	known := make(map[string]int, len(schema.FareClasses))
	for i, fc := range schema.FareClasses {
		known[fc.Name] = i
	}
	total := 0
	for name, n := range counts {
		slot, ok := known[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown fare class %q", ErrBadTicketCounts, name)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: negative count for %q", ErrBadTicketCounts, name)
		}
		if n > 0 && slot >= schema.TicketSlots {
			return nil, fmt.Errorf("%w: fare class %q has no slot in schema %s", ErrBadTicketCounts, name, schema.Version)
		}
		total += n
	}
	if total > schema.MaxTickets {
		return nil, fmt.Errorf("%w: %d requested, at most %d per booking", ErrTooManyTickets, total, schema.MaxTickets)
	}

	slots := make([]string, schema.TicketSlots)
	if total == 0 {
		slots[0] = "1" + schema.AdultCode()
		return slots, nil
	}
	for i, fc := range schema.FareClasses {
		if i >= schema.TicketSlots {
			break
		}
		if n := counts[fc.Name]; n > 0 {
			slots[i] = strconv.Itoa(n) + fc.Code
		}
	}
	return slots, nil
}

// TotalCount sums the passenger count out of encoded ticket tokens.
func TotalCount(tokens []string) int {
	total := 0
	for _, tok := range tokens {
		if tok == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimRight(tok, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"))
		if err == nil {
			total += n
		}
	}
	return total
}
