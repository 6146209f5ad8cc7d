// File: internal/booking/client.go
package booking

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/wabisuke-dev/thsrbot/internal/codec"
	"github.com/wabisuke-dev/thsrbot/internal/config"
)

// maxPageBytes caps how much of a workflow response is read into memory.
const maxPageBytes = 4 << 20

var captchaSrcRe = regexp.MustCompile(`src="(.+?)"`)

// Client drives the four-step Wicket form workflow over one cookie-bearing
// HTTP session. It owns no retry policy; it reports kinded errors and lets
// the orchestrator decide.
type Client struct {
	http      *http.Client
	endpoints config.EndpointsConfig
	schema    *codec.FormSchema
	log       *zap.Logger
}

// NewClient builds a workflow client on top of a session-scoped http.Client.
// The http.Client must carry a cookie jar and follow redirects; the workflow
// keys its success checks on the URL the redirect chain lands on.
func NewClient(httpClient *http.Client, endpoints config.EndpointsConfig, schema *codec.FormSchema, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{http: httpClient, endpoints: endpoints, schema: schema, log: log}
}

// Schema exposes the form contract the client was built with.
func (c *Client) Schema() *codec.FormSchema { return c.schema }

// expand substitutes the {placeholder} slots of an endpoint template.
func expand(template string, vars map[string]string) string {
	for k, v := range vars {
		template = strings.ReplaceAll(template, "{"+k+"}", v)
	}
	return template
}

// interfaceURL is the page URL a successful form submission redirects to; the
// counter advances by one per accepted step.
func (c *Client) interfaceURL(n int) string {
	return expand(c.endpoints.InterfacePage, map[string]string{"interface": strconv.Itoa(n)})
}

// StartSession fetches the landing page and returns the fresh session state.
// Both the session cookie and the captcha image reference must be present.
func (c *Client) StartSession(ctx context.Context) (*SessionState, error) {
	page, err := c.getPage(ctx, c.endpoints.Reservation, "")
	if err != nil {
		return nil, err
	}

	img := findFirst(page.Doc, func(n *html.Node) bool {
		return isElement(n, "img") && hasClass(n, "captcha-img")
	})
	if img == nil || attr(img, "src") == "" {
		return nil, E(KindSession, "landing page has no captcha image")
	}

	jsessionid := c.sessionCookie()
	if jsessionid == "" {
		return nil, E(KindSession, "landing page set no session cookie")
	}

	state := &SessionState{
		JSessionID: jsessionid,
		CaptchaURL: c.endpoints.Base + attr(img, "src"),
	}
	c.log.Info("Session established", zap.String("captcha_url", state.CaptchaURL))
	return state, nil
}

// sessionCookie reads the JSESSIONID the site set for its base URL.
func (c *Client) sessionCookie() string {
	if c.http.Jar == nil {
		return ""
	}
	base, err := url.Parse(c.endpoints.Base)
	if err != nil {
		return ""
	}
	for _, ck := range c.http.Jar.Cookies(base) {
		if ck.Name == "JSESSIONID" {
			return ck.Value
		}
	}
	return ""
}

// RefreshCaptcha swaps the challenge without restarting the session, used
// after the server rejects a security code.
func (c *Client) RefreshCaptcha(ctx context.Context, s *SessionState) error {
	u := expand(c.endpoints.RefreshCaptcha, map[string]string{
		"jsessionid": s.JSessionID,
		"random":     strconv.FormatFloat(rand.Float64(), 'f', -1, 64),
	})
	body, err := c.getBytes(ctx, u)
	if err != nil {
		return err
	}
	m := captchaSrcRe.FindSubmatch(body)
	if m == nil {
		return E(KindParse, "captcha refresh response has no image reference")
	}
	s.CaptchaURL = c.endpoints.Base + string(m[1])
	c.log.Info("Captcha refreshed", zap.String("captcha_url", s.CaptchaURL))
	return nil
}

// FetchCaptchaImage downloads the current challenge image.
func (c *Client) FetchCaptchaImage(ctx context.Context, s *SessionState) ([]byte, error) {
	return c.getBytes(ctx, s.CaptchaURL)
}

// SubmitBookingForm posts the encoded trip fields with the resolved security
// code. On success the session advances to interface 1 and the returned page
// is either the train listing or, for a direct train number, the passenger
// form.
func (c *Client) SubmitBookingForm(ctx context.Context, s *SessionState, trip *TripRequest, code string) (*Page, error) {
	f := c.schema.Fields

	from, err := c.schema.StationCode(trip.From)
	if err != nil {
		return nil, Wrap(KindValidation, "origin station", err)
	}
	to, err := c.schema.StationCode(trip.To)
	if err != nil {
		return nil, Wrap(KindValidation, "destination station", err)
	}
	tokens, err := codec.EncodeTickets(trip.Tickets, c.schema)
	if err != nil {
		return nil, Wrap(KindValidation, "ticket composition", err)
	}

	vals := url.Values{}
	vals.Set(f.SearchHidden, "")
	vals.Set(f.TripType, "0")
	vals.Set(f.CarClassGroup, c.schema.CarClassCode(trip.CarClass))
	vals.Set(f.SeatPrefGroup, c.schema.SeatPrefCode(trip.SeatPref))
	vals.Set(f.StartStation, strconv.Itoa(from))
	vals.Set(f.DestStation, strconv.Itoa(to))
	vals.Set(f.OutboundDate, trip.Date)
	vals.Set(f.InboundDate, trip.Date)
	vals.Set(f.InboundTime, "")
	vals.Set(f.InboundTrainNo, "")

	if trip.TrainNo != "" {
		vals.Set(f.BookingMethod, c.schema.MethodByTrainNo)
		vals.Set(f.OutboundTime, "")
		vals.Set(f.OutboundTrainNo, strings.TrimSpace(trip.TrainNo))
	} else {
		slot, err := codec.EncodeTimeSlot(trip.Time)
		if err != nil {
			return nil, Wrap(KindValidation, "departure time", err)
		}
		vals.Set(f.BookingMethod, c.schema.MethodByTime)
		vals.Set(f.OutboundTime, string(slot))
		vals.Set(f.OutboundTrainNo, "")
	}

	for i, tok := range tokens {
		vals.Set(fmt.Sprintf(f.TicketSlot, i), tok)
	}
	vals.Set(f.SecurityCode, code)
	vals.Set(f.SubmitButton, "Search")
	for k, v := range c.schema.SearchExtras {
		vals.Set(k, v)
	}

	u := expand(c.endpoints.SubmitForm, map[string]string{"jsessionid": s.JSessionID})
	page, err := c.postForm(ctx, u, c.endpoints.Base+"/IMINT/", vals)
	if err != nil {
		return nil, err
	}
	if page.URL != c.interfaceURL(1) {
		return nil, classify(page, c.schema)
	}
	s.Interface = 1
	c.log.Info("Booking form accepted", zap.String("page", page.URL))
	return page, nil
}

// ListTrains extracts every row of the listing page. An empty listing is a
// terminal no-availability outcome, not a retryable failure.
func (c *Client) ListTrains(p *Page) ([]TrainOption, error) {
	trains, err := extractTrains(p, c.schema.Fields.TrainGroup)
	if err != nil {
		return nil, err
	}
	if len(trains) == 0 {
		return nil, E(KindUnavailable, "no trains available for the requested slot")
	}
	return trains, nil
}

// ConfirmTrain echoes the selection token of one listed train.
func (c *Client) ConfirmTrain(ctx context.Context, s *SessionState, opt TrainOption) (*Page, error) {
	f := c.schema.Fields
	vals := url.Values{}
	vals.Set(f.ConfirmHidden, "")
	vals.Set(f.TrainGroup, opt.Value)
	vals.Set(f.SubmitButton, "Confirm")

	page, err := c.postForm(ctx, c.endpoints.ConfirmTrain, c.interfaceURL(1), vals)
	if err != nil {
		return nil, err
	}
	if page.URL != c.interfaceURL(2) {
		return nil, classify(page, c.schema)
	}
	s.Interface = 2
	c.log.Info("Train confirmed", zap.String("train_no", opt.No))
	return page, nil
}

// ConfirmPassenger fills identity, contact, membership and any discounted
// fare sub-rows the passenger page dynamically rendered, then submits.
func (c *Client) ConfirmPassenger(ctx context.Context, s *SessionState, trip *TripRequest, p *Page) (*Page, error) {
	f := c.schema.Fields

	tokens, err := codec.EncodeTickets(trip.Tickets, c.schema)
	if err != nil {
		return nil, Wrap(KindValidation, "ticket composition", err)
	}

	member, err := c.membershipValue(trip, p)
	if err != nil {
		return nil, err
	}

	vals := url.Values{}
	vals.Set(f.PassengerHidden, "")
	for k, v := range c.schema.PassengerExtras {
		vals.Set(k, v)
	}
	vals.Set(f.PassengerCount, strconv.Itoa(codec.TotalCount(tokens)))
	if codec.ValidateNationalID(trip.NationalID) {
		vals.Set(f.IDInputRadio, "0")
	} else {
		vals.Set(f.IDInputRadio, "1")
	}
	vals.Set(f.PassengerID, trip.NationalID)
	vals.Set(f.PassengerPhone, trip.Phone)
	vals.Set(f.PassengerEmail, trip.Email)
	vals.Set(f.MemberRadioGroup, member)
	vals.Set(f.MemberTGoNumber, trip.TGoID)
	vals.Set(f.MemberTaxNumber, trip.TaxID)
	vals.Set(f.Agree, "on")

	c.fillFareRows(vals, p, c.schema.DisabledFareLabel, trip.DisabledIDs, trip.NationalID)
	c.fillFareRows(vals, p, c.schema.ElderFareLabel, trip.ElderIDs, trip.NationalID)

	iface := s.Interface
	u := expand(c.endpoints.ConfirmPassenger, map[string]string{"interface": strconv.Itoa(iface)})
	page, err := c.postForm(ctx, u, c.interfaceURL(iface), vals)
	if err != nil {
		return nil, err
	}
	if page.URL != c.interfaceURL(iface+1) {
		return nil, classify(page, c.schema)
	}
	s.Interface = iface + 1
	c.log.Info("Passenger details accepted")
	return page, nil
}

// membershipValue picks the radio value for the membership mode implied by
// the populated request fields: TGo account over tax ID over guest.
func (c *Client) membershipValue(trip *TripRequest, p *Page) (string, error) {
	group := c.schema.Fields.MemberRadioGroup
	candidates := findAll(p.Doc, func(n *html.Node) bool {
		return isElement(n, "input") && attr(n, "name") == group
	})

	idx := 0
	switch {
	case trip.TGoID != "":
		idx = 1
	case trip.TaxID != "":
		idx = 2
	}
	if idx >= len(candidates) {
		return "", E(KindParse, fmt.Sprintf("passenger page renders %d membership options, need %d", len(candidates), idx+1))
	}
	return attr(candidates[idx], "value"), nil
}

// fillFareRows answers the per-passenger ID sub-rows the server renders for a
// discounted fare label. IDs are consumed in order; missing ones fall back to
// the primary passenger ID.
func (c *Client) fillFareRows(vals url.Values, p *Page, label string, ids []string, fallback string) {
	f := c.schema.Fields
	rows := findAll(p.Doc, func(n *html.Node) bool {
		return isElement(n, "input") && attr(n, "value") == label
	})
	for i, row := range rows {
		name := attr(row, "name")
		if name == "" {
			continue
		}
		vals.Set(name, label)
		id := fallback
		if i < len(ids) && ids[i] != "" {
			id = ids[i]
		}
		vals.Set(strings.Replace(name, f.FareTypeMarker, f.FareIDMarker, 1), id)
	}
}

// ExtractResult reads the confirmation page into a BookingResult.
func (c *Client) ExtractResult(p *Page) (*BookingResult, error) {
	return extractResult(p)
}

func (c *Client) getPage(ctx context.Context, u, referer string) (*Page, error) {
	resp, err := c.do(ctx, http.MethodGet, u, referer, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return ParsePage(io.LimitReader(resp.Body, maxPageBytes), resp.Request.URL.String())
}

func (c *Client) getBytes(ctx context.Context, u string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, u, "", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, Wrap(KindTransport, "reading response body", err)
	}
	return body, nil
}

func (c *Client) postForm(ctx context.Context, u, referer string, vals url.Values) (*Page, error) {
	resp, err := c.do(ctx, http.MethodPost, u, referer, strings.NewReader(vals.Encode()))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return ParsePage(io.LimitReader(resp.Body, maxPageBytes), resp.Request.URL.String())
}

// do issues one workflow request. Transport failures and non-success status
// codes both come back as KindTransport so the orchestrator's transport
// budget covers them uniformly.
func (c *Client) do(ctx context.Context, method, u, referer string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, Wrap(KindTransport, "building request", err)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, Wrap(KindTransport, method+" "+u, err)
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return nil, E(KindTransport, fmt.Sprintf("%s %s: status %d", method, u, resp.StatusCode))
	}
	return resp, nil
}
