// File: internal/booking/orchestrator_test.go
package booking

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/wabisuke-dev/thsrbot/internal/codec"
	"github.com/wabisuke-dev/thsrbot/internal/config"
	"github.com/wabisuke-dev/thsrbot/internal/network"
)

// resolverFunc adapts a function to the captcha.Resolver interface.
type resolverFunc func(ctx context.Context, image []byte) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

func okResolver() resolverFunc {
	return func(ctx context.Context, image []byte) (string, error) { return "H7K2", nil }
}

// fakeIRS emulates the four-step Wicket workflow: every accepted POST
// redirects to the next interface page, rejections re-render the form with an
// error panel.
type fakeIRS struct {
	mu sync.Mutex

	// Direct switches the flow to the train-number variant: the accepted
	// booking form lands on the passenger page at interface 1.
	direct        bool
	soldOut       bool
	rejectCaptcha bool

	// rejectConfirms makes the next N train confirmations re-render the
	// listing with a validation panel instead of advancing.
	rejectConfirms int

	captchaGets       int
	refreshes         int
	submits           int
	confirmTrains     int
	confirmPassengers int
}

func (f *fakeIRS) counts() (submits, refreshes, confirmTrains, confirmPassengers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submits, f.refreshes, f.confirmTrains, f.confirmPassengers
}

func (f *fakeIRS) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		q := r.URL.Query()
		switch {
		case strings.HasPrefix(r.URL.Path, "/IMINT/captcha"):
			f.captchaGets++
			_, _ = w.Write([]byte("\x89PNG-not-really"))

		case q.Has("locale"):
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "sess1", Path: "/"})
			_, _ = w.Write([]byte(landingFixture))

		case q.Has("refresh"):
			f.refreshes++
			_, _ = w.Write([]byte(`<img src="/IMINT/captcha?id=next">`))

		case q.Has("submit"):
			f.submits++
			switch {
			case f.soldOut:
				_, _ = w.Write([]byte(`<span class="feedbackPanelERROR">座位已售完</span>`))
			case f.rejectCaptcha:
				_, _ = w.Write([]byte(`<span class="feedbackPanelERROR">檢測碼輸入錯誤</span>`))
			default:
				http.Redirect(w, r, "/IMINT/?page=1", http.StatusFound)
			}

		case q.Has("confirm-train"):
			f.confirmTrains++
			if f.rejectConfirms > 0 {
				f.rejectConfirms--
				_, _ = w.Write([]byte(`<span class="feedbackPanelERROR">欄位資料錯誤</span>`))
				return
			}
			http.Redirect(w, r, "/IMINT/?page=2", http.StatusFound)

		case q.Has("confirm-passenger"):
			f.confirmPassengers++
			if q.Get("confirm-passenger") == "1" {
				http.Redirect(w, r, "/IMINT/?page=2", http.StatusFound)
			} else {
				http.Redirect(w, r, "/IMINT/?page=3", http.StatusFound)
			}

		case q.Has("page"):
			switch {
			case q.Get("page") == "1" && !f.direct:
				_, _ = w.Write([]byte(listingFixture))
			case q.Get("page") == "1" && f.direct:
				_, _ = w.Write([]byte(passengerFixture))
			case q.Get("page") == "2" && !f.direct:
				_, _ = w.Write([]byte(passengerFixture))
			default:
				_, _ = w.Write([]byte(resultFixture))
			}

		default:
			http.NotFound(w, r)
		}
	})
}

func testRetry() config.RetryConfig {
	return config.RetryConfig{
		CaptchaAttempts:    5,
		ValidationAttempts: 3,
		TransportAttempts:  3,
		AttemptsPerSecond:  1000, // tests should not sleep
	}
}

func newTestOrchestrator(t *testing.T, srv *httptest.Server, prefs Preferences) (*Orchestrator, *http.Client) {
	t.Helper()
	schema, err := codec.LoadSchema("irs-v5")
	require.NoError(t, err)

	httpClient := network.NewClient(network.NewSessionConfig())
	client := NewClient(httpClient, testEndpoints(srv.URL), schema, zaptest.NewLogger(t))
	return NewOrchestrator(client, okResolver(), prefs, testRetry(), zaptest.NewLogger(t)), httpClient
}

func TestOrchestratorHappyPath(t *testing.T) {
	t.Parallel()

	fake := &fakeIRS{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	orch, _ := newTestOrchestrator(t, srv, Preferences{Auto: true})
	outcome := orch.Run(context.Background(), testTrip())

	require.NoError(t, outcome.Err)
	require.Equal(t, StatusSuccess, outcome.Status)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, "07154597", outcome.Result.ReservationNo)
	assert.Equal(t, "0823", outcome.Result.TrainNo)

	submits, refreshes, confirmTrains, confirmPassengers := fake.counts()
	assert.Equal(t, 1, submits)
	assert.Equal(t, 0, refreshes)
	assert.Equal(t, 1, confirmTrains)
	assert.Equal(t, 1, confirmPassengers)
}

func TestOrchestratorDirectTrainSkipsListing(t *testing.T) {
	t.Parallel()

	fake := &fakeIRS{direct: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	trip := testTrip()
	trip.TrainNo = "0823"

	orch, _ := newTestOrchestrator(t, srv, Preferences{})
	outcome := orch.Run(context.Background(), trip)

	require.Equal(t, StatusSuccess, outcome.Status)
	_, _, confirmTrains, confirmPassengers := fake.counts()
	assert.Equal(t, 0, confirmTrains, "direct train number must bypass the listing step")
	assert.Equal(t, 1, confirmPassengers)
	assert.Empty(t, outcome.Trains)
}

func TestOrchestratorSoldOutIsTerminal(t *testing.T) {
	t.Parallel()

	fake := &fakeIRS{soldOut: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	orch, _ := newTestOrchestrator(t, srv, Preferences{Auto: true})
	outcome := orch.Run(context.Background(), testTrip())

	require.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, KindUnavailable, KindOf(outcome.Err))

	submits, refreshes, confirmTrains, confirmPassengers := fake.counts()
	assert.Equal(t, 1, submits, "terminal failures must not be retried")
	assert.Equal(t, 0, refreshes)
	assert.Equal(t, 0, confirmTrains)
	assert.Equal(t, 0, confirmPassengers)
}

func TestOrchestratorCaptchaRetryBound(t *testing.T) {
	t.Parallel()

	fake := &fakeIRS{rejectCaptcha: true}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	orch, _ := newTestOrchestrator(t, srv, Preferences{Auto: true})
	outcome := orch.Run(context.Background(), testTrip())

	require.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, KindCaptchaMismatch, KindOf(outcome.Err))

	submits, refreshes, _, _ := fake.counts()
	assert.Equal(t, testRetry().CaptchaAttempts, submits, "one submission per budgeted attempt")
	assert.Equal(t, testRetry().CaptchaAttempts-1, refreshes, "every retry refreshes the challenge once")
}

func TestOrchestratorConfirmRetryReselects(t *testing.T) {
	t.Parallel()

	fake := &fakeIRS{rejectConfirms: 1}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	orch, _ := newTestOrchestrator(t, srv, Preferences{Auto: true})
	outcome := orch.Run(context.Background(), testTrip())

	require.NoError(t, outcome.Err)
	require.Equal(t, StatusSuccess, outcome.Status)

	_, _, confirmTrains, confirmPassengers := fake.counts()
	assert.Equal(t, 2, confirmTrains, "a rejected confirmation retries with a fresh selection")
	assert.Equal(t, 1, confirmPassengers)
}

func TestOrchestratorListOnly(t *testing.T) {
	t.Parallel()

	fake := &fakeIRS{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	orch, _ := newTestOrchestrator(t, srv, Preferences{Auto: true})
	orch.ListOnly = true
	outcome := orch.Run(context.Background(), testTrip())

	require.Equal(t, StatusSuccess, outcome.Status)
	assert.Nil(t, outcome.Result)
	require.Len(t, outcome.Trains, 2)
	assert.Equal(t, "0823", outcome.Trains[0].No)

	_, _, confirmTrains, confirmPassengers := fake.counts()
	assert.Equal(t, 0, confirmTrains)
	assert.Equal(t, 0, confirmPassengers)
}

func TestOrchestratorCancelled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	fake := &fakeIRS{}
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()

	orch, httpClient := newTestOrchestrator(t, srv, Preferences{Auto: true})
	defer httpClient.CloseIdleConnections()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := orch.Run(ctx, testTrip())
	assert.Equal(t, StatusCancelled, outcome.Status)
	assert.ErrorIs(t, outcome.Err, context.Canceled)

	submits, _, _, _ := fake.counts()
	assert.Zero(t, submits, "cancellation must prevent the next step")
}

func TestOrchestratorRejectsInvalidTripBeforeNetwork(t *testing.T) {
	t.Parallel()

	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	trip := testTrip()
	trip.NationalID = "A123456780" // checksum off by one

	orch, _ := newTestOrchestrator(t, srv, Preferences{Auto: true})
	outcome := orch.Run(context.Background(), trip)

	require.Equal(t, StatusFailed, outcome.Status)
	assert.Equal(t, KindValidation, KindOf(outcome.Err))
	assert.Zero(t, requests)
}

func TestBudgetsConsume(t *testing.T) {
	t.Parallel()

	b := &budgets{captcha: 2, validation: 1, transport: 1}

	assert.True(t, b.consume(KindCaptchaMismatch), "first failure leaves one attempt")
	assert.False(t, b.consume(KindRecognition), "recognition draws from the captcha budget")
	assert.False(t, b.consume(KindValidation))
	assert.False(t, b.consume(KindUnavailable), "terminal kinds never retry")
}
