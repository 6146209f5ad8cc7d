// File: internal/booking/parse.go
package booking

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ParsePage reads a workflow response body into a Page.
func ParsePage(r io.Reader, finalURL string) (*Page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, Wrap(KindParse, "parsing response markup", err)
	}
	return &Page{URL: finalURL, Doc: doc}, nil
}

// flatten lists every node of the tree in document order. The listing and
// result extractors need "nearest following element" lookups, which are index
// scans over this slice.
func flatten(root *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		out = append(out, n)
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if root != nil {
		walk(root)
	}
	return out
}

func isElement(n *html.Node, tag string) bool {
	return n != nil && n.Type == html.ElementNode && n.Data == tag
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

// nodeText concatenates the text content of a subtree, trimmed.
func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

func findAll(root *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	for _, n := range flatten(root) {
		if n.Type == html.ElementNode && pred(n) {
			out = append(out, n)
		}
	}
	return out
}

func findFirst(root *html.Node, pred func(*html.Node) bool) *html.Node {
	for _, n := range flatten(root) {
		if n.Type == html.ElementNode && pred(n) {
			return n
		}
	}
	return nil
}

func byClass(root *html.Node, tag, class string) *html.Node {
	return findFirst(root, func(n *html.Node) bool {
		return isElement(n, tag) && hasClass(n, class)
	})
}

func byID(root *html.Node, id string) *html.Node {
	return findFirst(root, func(n *html.Node) bool {
		return attr(n, "id") == id
	})
}

// errorPanels collects the text of every feedbackPanelERROR element on the
// page. The Wicket forms report every remote-side rejection through these.
func errorPanels(p *Page) []string {
	var out []string
	for _, n := range findAll(p.Doc, func(n *html.Node) bool {
		return hasClass(n, "feedbackPanelERROR")
	}) {
		if msg := nodeText(n); msg != "" {
			out = append(out, msg)
		}
	}
	return out
}

// extractTrains pulls every listing row. Each row is a radio input carrying
// the selection token and the query times as attributes; the travel duration
// and train number live in the nearest following duration div, rendered as
// "H:MM｜NNNN" once the icon ligature names are stripped.
func extractTrains(p *Page, groupField string) ([]TrainOption, error) {
	nodes := flatten(p.Doc)
	var out []TrainOption
	for i, n := range nodes {
		if !isElement(n, "input") || attr(n, "name") != groupField {
			continue
		}
		opt := TrainOption{
			Departure: attr(n, "querydeparture"),
			Arrival:   attr(n, "queryarrival"),
			Value:     attr(n, "value"),
		}
		if opt.Value == "" {
			return nil, E(KindParse, "listing row without selection token")
		}

		// Scope the cell lookup to this row: stop at the next listing radio.
		end := len(nodes)
		for j, m := range nodes[i+1:] {
			if isElement(m, "input") && attr(m, "name") == groupField {
				end = i + 1 + j
				break
			}
		}

		var duration, discount *html.Node
		for _, m := range nodes[i+1 : end] {
			if m.Type != html.ElementNode {
				continue
			}
			if duration == nil && hasClass(m, "duration") {
				duration = m
			}
			if discount == nil && hasClass(m, "discount") {
				discount = m
			}
			if duration != nil && discount != nil {
				break
			}
		}
		if duration == nil {
			return nil, E(KindParse, "listing row without duration cell")
		}

		text := strings.NewReplacer(
			"\n", "", "schedule", "", "directions_railway", "",
		).Replace(nodeText(duration))
		parts := strings.SplitN(text, "｜", 2)
		if len(parts) != 2 {
			return nil, E(KindParse, fmt.Sprintf("malformed duration cell %q", text))
		}
		opt.Duration = strings.TrimSpace(parts[0])
		opt.No = strings.TrimSpace(parts[1])
		if discount != nil {
			opt.Discount = strings.TrimSpace(strings.ReplaceAll(nodeText(discount), "\n", ""))
		}
		out = append(out, opt)
	}
	return out, nil
}

// extractResult reads the confirmation page into a BookingResult. Every
// anchor is mandatory; a missing one means the remote markup changed.
func extractResult(p *Page) (*BookingResult, error) {
	res := &BookingResult{}

	for _, field := range []struct {
		name string
		node *html.Node
		dst  *string
	}{
		{"pnr-code", byClass(p.Doc, "p", "pnr-code"), &res.ReservationNo},
		{"payment-status", byClass(p.Doc, "p", "payment-status"), &res.PaymentStatus},
		{"setTrainTotalPriceValue", byID(p.Doc, "setTrainTotalPriceValue"), &res.Price},
	} {
		if field.node == nil {
			return nil, E(KindParse, "result page missing "+field.name)
		}
		*field.dst = nodeText(field.node)
	}

	carType := byClass(p.Doc, "div", "car-type")
	if carType == nil {
		return nil, E(KindParse, "result page missing car-type")
	}
	if n := byClass(carType, "p", "info-data"); n != nil {
		res.CarType = nodeText(n)
	}
	if n := byClass(p.Doc, "div", "ticket-type"); n != nil {
		if d := findFirst(n, func(m *html.Node) bool { return isElement(m, "div") && m != n }); d != nil {
			res.TicketType = nodeText(d)
		}
	}

	card := byClass(p.Doc, "div", "ticket-card")
	if card == nil {
		return nil, E(KindParse, "result page missing ticket-card")
	}
	for _, field := range []struct {
		name string
		node *html.Node
		dst  *string
	}{
		{"date", byClass(card, "span", "date"), &res.Date},
		{"setTrainCode0", byID(card, "setTrainCode0"), &res.TrainNo},
		{"departure-time", byClass(card, "p", "departure-time"), &res.DepartureTime},
		{"departure-stn", byClass(card, "p", "departure-stn"), &res.DepartureStation},
		{"arrival-time", byClass(card, "p", "arrival-time"), &res.ArrivalTime},
		{"arrival-stn", byClass(card, "p", "arrival-stn"), &res.ArrivalStation},
		{"InfoEstimatedTime0", byID(card, "InfoEstimatedTime0"), &res.Duration},
	} {
		if field.node == nil {
			return nil, E(KindParse, "ticket card missing "+field.name)
		}
		*field.dst = nodeText(field.node)
	}

	if detail := byClass(p.Doc, "div", "detail"); detail != nil {
		for _, seat := range findAll(detail, func(n *html.Node) bool {
			return hasClass(n, "seat-label")
		}) {
			res.Seats = append(res.Seats, nodeText(seat))
		}
	}
	return res, nil
}
