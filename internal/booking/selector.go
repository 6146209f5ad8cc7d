// File: internal/booking/selector.go
package booking

// Preferences steers the train pick. Manual mode uses the 1-based Index,
// falling back to the first option when it is absent or out of range.
// Automatic mode prefers discounted rows, then rows arriving comfortably
// before the deadline, then the shortest travel time.
type Preferences struct {
	Auto     bool
	Index    int
	ArriveBy string // HH:MM, empty for no deadline
}

// arrivalBuffer is the slack, in minutes, auto mode keeps between a train's
// arrival and the deadline.
const arrivalBuffer = 20

// Select picks exactly one option. It is a pure function of its inputs: no
// network, no session.
func Select(options []TrainOption, prefs Preferences) (TrainOption, error) {
	if len(options) == 0 {
		return TrainOption{}, E(KindUnavailable, "no trains to select from")
	}

	if !prefs.Auto {
		idx := prefs.Index
		if idx < 1 || idx > len(options) {
			idx = 1
		}
		return options[idx-1], nil
	}

	candidates := options

	// Restriction passes never empty the candidate set; an over-restrictive
	// preference degrades to the unfiltered pick instead of failing.
	if anyDiscount(candidates) {
		candidates = keep(candidates, func(o TrainOption) bool {
			return o.Discount != ""
		})
	}
	if prefs.ArriveBy != "" {
		if deadline, err := parseClock(prefs.ArriveBy); err == nil {
			candidates = keep(candidates, func(o TrainOption) bool {
				arr, err := parseClock(o.Arrival)
				return err == nil && arr+arrivalBuffer < deadline
			})
		}
	}

	best := candidates[0]
	bestDur, err := parseClock(best.Duration)
	if err != nil {
		return TrainOption{}, Wrap(KindParse, "malformed travel duration", err)
	}
	for _, o := range candidates[1:] {
		dur, err := parseClock(o.Duration)
		if err != nil {
			return TrainOption{}, Wrap(KindParse, "malformed travel duration", err)
		}
		// Strict less-than: ties go to the earlier row.
		if dur < bestDur {
			best, bestDur = o, dur
		}
	}
	return best, nil
}

func anyDiscount(options []TrainOption) bool {
	for _, o := range options {
		if o.Discount != "" {
			return true
		}
	}
	return false
}

// keep filters without ever returning an empty set.
func keep(options []TrainOption, pred func(TrainOption) bool) []TrainOption {
	var out []TrainOption
	for _, o := range options {
		if pred(o) {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return options
	}
	return out
}
