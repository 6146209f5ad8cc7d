// File: internal/codec/schema.go
package codec

import (
	"fmt"
	"regexp"
	"strings"
)

// FareClass pairs a canonical fare-class name with the single-letter type code
// the reservation form expects inside a ticket-amount token.
type FareClass struct {
	Name string
	Code string
}

// PhraseRule maps a substring of an error-panel message to an abstract
// category. The booking layer translates categories into error kinds; keeping
// the table here means a site revision only touches the schema.
type PhraseRule struct {
	Contains string
	Category string
}

// Phrase categories understood by the booking layer.
const (
	CategoryUnavailable = "unavailable"
	CategoryCaptcha     = "captcha"
	CategoryValidation  = "validation"
)

// FieldNames is the Wicket field-name table for one revision of the booking
// forms. The state machine never spells a form field literally; it goes
// through this table so a remote revision change is a schema edit.
type FieldNames struct {
	SearchHidden    string
	TripType        string
	CarClassGroup   string
	SeatPrefGroup   string
	BookingMethod   string
	StartStation    string
	DestStation     string
	OutboundDate    string
	InboundDate     string
	OutboundTime    string
	OutboundTrainNo string
	InboundTime     string
	InboundTrainNo  string
	TicketSlot      string // printf pattern, slot index is the argument
	SecurityCode    string
	SubmitButton    string

	ConfirmHidden string
	TrainGroup    string

	PassengerHidden  string
	IDInputRadio     string
	PassengerID      string
	PassengerPhone   string
	PassengerEmail   string
	PassengerCount   string
	MemberRadioGroup string
	MemberTGoNumber  string
	MemberTaxNumber  string
	Agree            string

	// Substrings for the per-passenger discounted-fare sub-rows: the row's
	// type-name field renames to its ID-number twin.
	FareTypeMarker string
	FareIDMarker   string
}

// FormSchema is a versioned descriptor of the remote form contract: station
// codes, fare classes and slot layout, radio values, field names, and the
// error-phrase table. One schema is selected per run; nothing else in the
// codebase hard-codes protocol literals.
type FormSchema struct {
	Version     string
	TicketSlots int
	MaxTickets  int

	Stations    map[string]int
	FareClasses []FareClass
	CarClasses  map[string]string
	SeatPrefs   map[string]string

	// Booking-method radio values: search by time window vs. explicit train.
	MethodByTime    string
	MethodByTrainNo string

	Fields       FieldNames
	ErrorPhrases []PhraseRule

	// Hidden constants the forms expect verbatim, posted as-is.
	SearchExtras    map[string]string
	PassengerExtras map[string]string

	// Markup anchors for the mandatory-ID sub-rows of discounted fares.
	DisabledFareLabel string
	ElderFareLabel    string
}

// chinese station names as they appear in user configs; the form wants the
// numeric code.
var stationTranslation = map[string]string{
	"南港": "Nangang",
	"台北": "Taipei",
	"板橋": "Banqiao",
	"桃園": "Taoyuan",
	"新竹": "Hsinchu",
	"苗栗": "Miaoli",
	"台中": "Taichung",
	"彰化": "Changhua",
	"雲林": "Yunlin",
	"嘉義": "Chiayi",
	"台南": "Tainan",
	"左營": "Zuouing",
}

var latinRe = regexp.MustCompile(`[a-zA-Z]`)

// StationCode resolves a station name (English or Chinese, any casing) to its
// form code.
func (s *FormSchema) StationCode(name string) (int, error) {
	n := strings.TrimSpace(name)
	if n == "" {
		return 0, fmt.Errorf("empty station name")
	}
	if !latinRe.MatchString(n) {
		// Normalize the traditional variant before the lookup.
		n = stationTranslation[strings.ReplaceAll(n, "臺", "台")]
	} else {
		n = strings.ToUpper(n[:1]) + strings.ToLower(n[1:])
	}
	code, ok := s.Stations[n]
	if !ok {
		return 0, fmt.Errorf("unknown station %q", name)
	}
	return code, nil
}

// CarClassCode resolves a car-class name, defaulting to standard.
func (s *FormSchema) CarClassCode(name string) string {
	if v, ok := s.CarClasses[strings.ToLower(strings.TrimSpace(name))]; ok {
		return v
	}
	return "0"
}

// SeatPrefCode resolves a seat-preference name, defaulting to no preference.
func (s *FormSchema) SeatPrefCode(name string) string {
	if v, ok := s.SeatPrefs[strings.ToLower(strings.TrimSpace(name))]; ok {
		return v
	}
	return "0"
}

// AdultCode returns the type code of the first (adult) fare class.
func (s *FormSchema) AdultCode() string {
	return s.FareClasses[0].Code
}

// LoadSchema returns the form schema for a deployment revision. "irs-v5" is
// the current five-slot layout; "irs-v4" is the legacy four-slot one.
func LoadSchema(version string) (*FormSchema, error) {
	switch version {
	case "", "irs-v5":
		s := newIRSSchema("irs-v5", 5)
		return s, nil
	case "irs-v4":
		s := newIRSSchema("irs-v4", 4)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown form schema version %q", version)
	}
}

func newIRSSchema(version string, slots int) *FormSchema {
	return &FormSchema{
		Version:     version,
		TicketSlots: slots,
		MaxTickets:  10,
		Stations: map[string]int{
			"Nangang":  1,
			"Taipei":   2,
			"Banqiao":  3,
			"Taoyuan":  4,
			"Hsinchu":  5,
			"Miaoli":   6,
			"Taichung": 7,
			"Changhua": 8,
			"Yunlin":   9,
			"Chiayi":   10,
			"Tainan":   11,
			"Zuouing":  12,
		},
		FareClasses: []FareClass{
			{Name: "adult", Code: "F"},
			{Name: "child", Code: "H"},
			{Name: "disabled", Code: "W"},
			{Name: "elder", Code: "E"},
			{Name: "college", Code: "P"},
		},
		CarClasses: map[string]string{"standard": "0", "business": "1"},
		SeatPrefs:  map[string]string{"any": "0", "window": "1", "aisle": "2"},

		MethodByTime:    "radio31",
		MethodByTrainNo: "radio33",

		Fields: FieldNames{
			SearchHidden:    "BookingS1Form:hf:0",
			TripType:        "tripCon:typesoftrip",
			CarClassGroup:   "trainCon:trainRadioGroup",
			SeatPrefGroup:   "seatCon:seatRadioGroup",
			BookingMethod:   "bookingMethod",
			StartStation:    "selectStartStation",
			DestStation:     "selectDestinationStation",
			OutboundDate:    "toTimeInputField",
			InboundDate:     "backTimeInputField",
			OutboundTime:    "toTimeTable",
			OutboundTrainNo: "toTrainIDInputField",
			InboundTime:     "backTimeTable",
			InboundTrainNo:  "backTrainIDInputField",
			TicketSlot:      "ticketPanel:rows:%d:ticketAmount",
			SecurityCode:    "homeCaptcha:securityCode",
			SubmitButton:    "SubmitButton",

			ConfirmHidden: "BookingS2Form:hf:0",
			TrainGroup:    "TrainQueryDataViewPanel:TrainGroup",

			PassengerHidden:  "BookingS3FormSP:hf:0",
			IDInputRadio:     "idInputRadio",
			PassengerID:      "dummyId",
			PassengerPhone:   "dummyPhone",
			PassengerEmail:   "email",
			PassengerCount:   "passengerCount",
			MemberRadioGroup: "TicketMemberSystemInputPanel:TakerMemberSystemDataView:memberSystemRadioGroup",
			MemberTGoNumber:  "TicketMemberSystemInputPanel:TakerMemberSystemDataView:memberSystemRadioGroup:memberShipNumber",
			MemberTaxNumber:  "TicketMemberSystemInputPanel:TakerMemberSystemDataView:memberSystemRadioGroup:GUINumber:",
			Agree:            "agree",

			FareTypeMarker: "passengerDataTypeName",
			FareIDMarker:   "passengerDataIdNumber",
		},

		SearchExtras: map[string]string{
			"portalTag":            "false",
			"startTimeForTeenager": "2023/07/01",
			"endTimeForTeenager":   "2023/08/31",
			"isShowTeenager":       "0",
		},

		PassengerExtras: map[string]string{
			"diffOver":     "1",
			"isSPromotion": "1",
			"isGoBackM":    "",
			"backHome":     "",
			"TgoError":     "1",
		},

		ErrorPhrases: []PhraseRule{
			{Contains: "售完", Category: CategoryUnavailable},
			{Contains: "選擇的日期超過目前開放預訂之日期", Category: CategoryUnavailable},
			{Contains: "請選擇", Category: CategoryUnavailable},
			{Contains: "檢測碼輸入錯誤", Category: CategoryCaptcha},
		},

		DisabledFareLabel: "愛心票",
		ElderFareLabel:    "敬老票",
	}
}
