// File: internal/booking/types.go
package booking

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/wabisuke-dev/thsrbot/internal/codec"
)

// TripRequest is the immutable input of one booking run.
type TripRequest struct {
	From string
	To   string
	Date string // 2006/01/02
	Time string // HH:MM departure wish, ignored when TrainNo is set

	// TrainNo, when set, books that exact train and skips the listing step.
	TrainNo string
	// ArriveBy is an optional latest-acceptable-arrival clock time (HH:MM).
	ArriveBy string

	Tickets  map[string]int
	CarClass string
	SeatPref string

	NationalID string
	Phone      string
	Email      string

	// Membership: populated fields pick the mode, TGo over tax over guest.
	TGoID string
	TaxID string

	// IDs consumed in order by the discounted-fare sub-rows of the passenger
	// form. Missing entries fall back to NationalID.
	DisabledIDs []string
	ElderIDs    []string
}

// Validate rejects a request before any network call: stations must resolve,
// date and time must parse, the ticket composition must encode, and the
// passenger ID must pass the checksum the server itself runs.
func (t *TripRequest) Validate(schema *codec.FormSchema) error {
	if _, err := schema.StationCode(t.From); err != nil {
		return Wrap(KindValidation, "origin station", err)
	}
	if _, err := schema.StationCode(t.To); err != nil {
		return Wrap(KindValidation, "destination station", err)
	}
	if _, err := time.Parse("2006/01/02", t.Date); err != nil {
		return Wrap(KindValidation, fmt.Sprintf("travel date %q", t.Date), err)
	}
	if t.TrainNo == "" {
		if _, err := codec.EncodeTimeSlot(t.Time); err != nil {
			return Wrap(KindValidation, "departure time", err)
		}
	}
	if t.ArriveBy != "" {
		if _, err := parseClock(t.ArriveBy); err != nil {
			return Wrap(KindValidation, "arrival deadline", err)
		}
	}
	if _, err := codec.EncodeTickets(t.Tickets, schema); err != nil {
		return Wrap(KindValidation, "ticket composition", err)
	}
	if t.NationalID == "" {
		return E(KindValidation, "passenger ID is required")
	}
	if !codec.ValidateNationalID(t.NationalID) && !codec.ValidateTaxID(t.NationalID) {
		return E(KindValidation, "passenger ID fails the checksum")
	}
	if t.TaxID != "" && !codec.ValidateTaxID(t.TaxID) {
		return E(KindValidation, "tax ID must be ten digits")
	}
	return nil
}

// SessionState is the server-side conversation handle: the session cookie
// value, the current captcha image URL, and the Wicket interface counter the
// success checks key on. Owned by exactly one orchestrator run.
type SessionState struct {
	JSessionID string
	CaptchaURL string
	Interface  int
}

// TrainOption is one row of the listing step. Value is the opaque selection
// token echoed back on confirmation; it is only valid against the listing
// response it came from.
type TrainOption struct {
	No        string
	Departure string // HH:MM
	Arrival   string // HH:MM
	Duration  string // H:MM travel time
	Discount  string // empty when the row carries no promotion
	Value     string
}

func (o TrainOption) String() string {
	s := fmt.Sprintf("%s -> %s (%s) | %s", o.Departure, o.Arrival, o.Duration, o.No)
	if o.Discount != "" {
		s += "\t" + o.Discount
	}
	return s
}

// BookingResult is the terminal artifact of a successful run.
type BookingResult struct {
	ReservationNo string
	PaymentStatus string
	CarType       string
	TicketType    string
	Price         string

	Date             string
	TrainNo          string
	Duration         string
	DepartureTime    string
	DepartureStation string
	ArrivalTime      string
	ArrivalStation   string
	Seats            []string
}

// Page is one parsed workflow response: the markup tree plus the URL the
// redirect chain landed on, which is what the success checks compare.
type Page struct {
	URL string
	Doc *html.Node
}

// parseClock reads an HH:MM string into minutes after midnight.
func parseClock(hhmm string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(hhmm))
	if err != nil {
		return 0, fmt.Errorf("malformed clock time %q", hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}
