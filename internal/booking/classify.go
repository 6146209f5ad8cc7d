// File: internal/booking/classify.go
package booking

import (
	"strings"

	"github.com/wabisuke-dev/thsrbot/internal/codec"
)

// classify turns the error panels of a rejected workflow page into a kinded
// error. The phrase table lives in the schema so a remote wording change is a
// schema edit, not a state-machine edit. A page with no panels at all still
// counts as a validation failure: the caller only classifies pages that did
// not land on the expected interface URL.
func classify(p *Page, schema *codec.FormSchema) error {
	msgs := errorPanels(p)
	if len(msgs) == 0 {
		return E(KindValidation, "unexpected response page")
	}

	kind := KindValidation
	for _, msg := range msgs {
		for _, rule := range schema.ErrorPhrases {
			if !strings.Contains(msg, rule.Contains) {
				continue
			}
			switch rule.Category {
			case codec.CategoryUnavailable:
				// Terminal conditions win over anything else on the page.
				return E(KindUnavailable, msg)
			case codec.CategoryCaptcha:
				kind = KindCaptchaMismatch
			}
		}
	}
	return E(kind, strings.Join(msgs, "; "))
}
