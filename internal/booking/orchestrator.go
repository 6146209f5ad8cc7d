// File: internal/booking/orchestrator.go
package booking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/wabisuke-dev/thsrbot/internal/captcha"
	"github.com/wabisuke-dev/thsrbot/internal/config"
)

// State names one position of the booking state machine, used for logging
// and for the tests that assert transition order.
type State string

const (
	StateInit               State = "INIT"
	StateAwaitCaptcha       State = "AWAIT_CAPTCHA"
	StateFormSubmitted      State = "FORM_SUBMITTED"
	StateTrainListed        State = "TRAIN_LISTED"
	StateTrainConfirmed     State = "TRAIN_CONFIRMED"
	StatePassengerConfirmed State = "PASSENGER_CONFIRMED"
	StateDone               State = "DONE"
	StateFailed             State = "FAILED"
)

// Status discriminates the terminal outcome of one run.
type Status string

const (
	StatusSuccess   Status = "SUCCESS"
	StatusFailed    Status = "FAILED"
	StatusCancelled Status = "CANCELLED"
)

// Outcome is what a run hands back to the caller. Result is set only on a
// successful booking; Trains is set when the run stopped after listing.
type Outcome struct {
	Status Status
	Result *BookingResult
	Trains []TrainOption
	Err    error
}

// Orchestrator drives one booking attempt through the workflow client. Each
// run owns its session exclusively; run independent attempts on independent
// orchestrators.
type Orchestrator struct {
	client   *Client
	resolver captcha.Resolver
	prefs    Preferences
	retry    config.RetryConfig
	limiter  *rate.Limiter

	// ListOnly stops the run after the listing step and surfaces the rows.
	ListOnly bool

	log *zap.Logger
}

// NewOrchestrator wires a run. The limiter paces attempts so a retry storm
// never hammers the reservation host.
func NewOrchestrator(client *Client, resolver captcha.Resolver, prefs Preferences, retry config.RetryConfig, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		client:   client,
		resolver: resolver,
		prefs:    prefs,
		retry:    retry,
		limiter:  rate.NewLimiter(rate.Limit(retry.AttemptsPerSecond), 1),
		log:      log,
	}
}

// budgets tracks the remaining attempts per failure kind for one run.
// Recognition failures draw from the captcha budget; they gate the same
// resolve-and-submit step.
type budgets struct {
	captcha    int
	validation int
	transport  int
}

func (b *budgets) consume(kind Kind) bool {
	var left *int
	switch kind {
	case KindCaptchaMismatch, KindRecognition:
		left = &b.captcha
	case KindValidation:
		left = &b.validation
	case KindTransport:
		left = &b.transport
	default:
		return false
	}
	*left--
	return *left > 0
}

// Run executes the state machine to a terminal outcome. Cancellation is
// honored between any two HTTP calls and yields a Cancelled outcome distinct
// from Failed.
func (o *Orchestrator) Run(ctx context.Context, trip *TripRequest) Outcome {
	log := o.log.With(zap.String("run_id", uuid.NewString()))
	state := StateInit
	log.Info("Booking run started",
		zap.String("from", trip.From), zap.String("to", trip.To),
		zap.String("date", trip.Date), zap.String("train_no", trip.TrainNo))

	if err := trip.Validate(o.client.Schema()); err != nil {
		return o.terminal(ctx, log, state, err)
	}

	b := &budgets{
		captcha:    o.retry.CaptchaAttempts,
		validation: o.retry.ValidationAttempts,
		transport:  o.retry.TransportAttempts,
	}

	// INIT -> AWAIT_CAPTCHA. One retry on a broken landing page, then fatal.
	sess, err := o.startSession(ctx, log)
	if err != nil {
		return o.terminal(ctx, log, state, err)
	}
	state = o.advance(log, state, StateAwaitCaptcha)

	// AWAIT_CAPTCHA -> FORM_SUBMITTED, looping within the budgets.
	page, err := o.submitForm(ctx, log, sess, trip, b)
	if err != nil {
		return o.terminal(ctx, log, state, err)
	}
	state = o.advance(log, state, StateFormSubmitted)

	// A direct train number bypasses listing: the accepted form lands on the
	// passenger page already.
	if trip.TrainNo == "" {
		trains, err := o.client.ListTrains(page)
		if err != nil {
			return o.terminal(ctx, log, state, err)
		}
		state = o.advance(log, state, StateTrainListed)
		for i, tr := range trains {
			log.Info(fmt.Sprintf("%2d. %s", i+1, tr))
		}
		if o.ListOnly {
			log.Info("Listing-only run complete", zap.Int("trains", len(trains)))
			return Outcome{Status: StatusSuccess, Trains: trains}
		}

		page, err = o.confirmTrain(ctx, log, sess, trains, b)
		if err != nil {
			return o.terminal(ctx, log, state, err)
		}
	}
	state = o.advance(log, state, StateTrainConfirmed)

	page, err = o.confirmPassenger(ctx, log, sess, trip, page, b)
	if err != nil {
		return o.terminal(ctx, log, state, err)
	}
	state = o.advance(log, state, StatePassengerConfirmed)

	result, err := o.client.ExtractResult(page)
	if err != nil {
		return o.terminal(ctx, log, state, err)
	}
	o.advance(log, state, StateDone)
	log.Info("Booking complete", zap.String("reservation_no", result.ReservationNo))
	return Outcome{Status: StatusSuccess, Result: result}
}

func (o *Orchestrator) advance(log *zap.Logger, from, to State) State {
	log.Debug("State transition", zap.String("from", string(from)), zap.String("to", string(to)))
	return to
}

// pace blocks until the limiter grants the next attempt.
func (o *Orchestrator) pace(ctx context.Context) error {
	if err := o.limiter.Wait(ctx); err != nil {
		return Wrap(KindTransport, "attempt pacing interrupted", err)
	}
	return nil
}

// terminal folds an error into the run's outcome: a dead context is a
// cancellation, anything else is a failure.
func (o *Orchestrator) terminal(ctx context.Context, log *zap.Logger, state State, err error) Outcome {
	if ctx.Err() != nil {
		log.Warn("Booking run cancelled", zap.String("state", string(state)))
		return Outcome{Status: StatusCancelled, Err: ctx.Err()}
	}
	log.Error("Booking run failed",
		zap.String("state", string(state)),
		zap.String("kind", string(KindOf(err))),
		zap.Error(err))
	return Outcome{Status: StatusFailed, Err: err}
}

func (o *Orchestrator) startSession(ctx context.Context, log *zap.Logger) (*SessionState, error) {
	if err := o.pace(ctx); err != nil {
		return nil, err
	}
	sess, err := o.client.StartSession(ctx)
	if err == nil || ctx.Err() != nil {
		return sess, err
	}
	log.Warn("Session start failed, retrying once", zap.Error(err))
	if perr := o.pace(ctx); perr != nil {
		return nil, perr
	}
	return o.client.StartSession(ctx)
}

// submitForm runs the resolve-captcha-and-submit loop until the form is
// accepted or a budget runs dry.
func (o *Orchestrator) submitForm(ctx context.Context, log *zap.Logger, sess *SessionState, trip *TripRequest, b *budgets) (*Page, error) {
	for {
		if err := o.pace(ctx); err != nil {
			return nil, err
		}

		page, err := o.attemptSubmit(ctx, sess, trip)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}

		kind := KindOf(err)
		if !Retryable(kind) {
			return nil, err
		}
		if !b.consume(kind) {
			return nil, Wrap(kind, "retry budget exhausted", err)
		}
		log.Warn("Form submission rejected, retrying",
			zap.String("kind", string(kind)), zap.Error(err))

		if kind == KindCaptchaMismatch {
			if rerr := o.client.RefreshCaptcha(ctx, sess); rerr != nil {
				return nil, rerr
			}
		}
	}
}

func (o *Orchestrator) attemptSubmit(ctx context.Context, sess *SessionState, trip *TripRequest) (*Page, error) {
	img, err := o.client.FetchCaptchaImage(ctx, sess)
	if err != nil {
		return nil, err
	}
	code, err := o.resolver.Resolve(ctx, img)
	if err != nil {
		return nil, err
	}
	return o.client.SubmitBookingForm(ctx, sess, trip, code)
}

// confirmTrain posts the chosen row until it is accepted or a budget runs
// dry. Selection re-runs on every attempt over the listed rows; the upstream
// workflow offers no way to refetch the listing without restarting the form.
func (o *Orchestrator) confirmTrain(ctx context.Context, log *zap.Logger, sess *SessionState, trains []TrainOption, b *budgets) (*Page, error) {
	for {
		if err := o.pace(ctx); err != nil {
			return nil, err
		}
		selected, err := Select(trains, o.prefs)
		if err != nil {
			return nil, err
		}
		log.Info("Train selected", zap.String("train", selected.String()))
		page, err := o.client.ConfirmTrain(ctx, sess, selected)
		if err == nil {
			return page, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		kind := KindOf(err)
		if !Retryable(kind) || !b.consume(kind) {
			return nil, err
		}
		log.Warn("Train confirmation rejected, retrying", zap.Error(err))
	}
}

func (o *Orchestrator) confirmPassenger(ctx context.Context, log *zap.Logger, sess *SessionState, trip *TripRequest, page *Page, b *budgets) (*Page, error) {
	for {
		if err := o.pace(ctx); err != nil {
			return nil, err
		}
		next, err := o.client.ConfirmPassenger(ctx, sess, trip, page)
		if err == nil {
			return next, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		kind := KindOf(err)
		if !Retryable(kind) || !b.consume(kind) {
			return nil, err
		}
		log.Warn("Passenger confirmation rejected, retrying", zap.Error(err))
	}
}
