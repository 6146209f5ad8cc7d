// File: cmd/book.go
package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/wabisuke-dev/thsrbot/internal/booking"
	"github.com/wabisuke-dev/thsrbot/internal/captcha"
	"github.com/wabisuke-dev/thsrbot/internal/codec"
	"github.com/wabisuke-dev/thsrbot/internal/config"
	"github.com/wabisuke-dev/thsrbot/internal/network"
	"github.com/wabisuke-dev/thsrbot/internal/observability"
)

// newBookCmd creates and configures the `book` command.
func newBookCmd() *cobra.Command {
	bookCmd := &cobra.Command{
		Use:   "book",
		Short: "Runs the full booking workflow and prints the reservation",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("booking.auto", cmd.Flags().Lookup("auto")); err != nil {
				return err
			}
			if err := viper.BindPFlag("booking.train_index", cmd.Flags().Lookup("train")); err != nil {
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}

			orch, err := buildOrchestrator(cfg, logger)
			if err != nil {
				return err
			}

			outcome := orch.Run(cmd.Context(), tripFromConfig(cfg.Booking))
			switch outcome.Status {
			case booking.StatusCancelled:
				logger.Warn("Booking aborted gracefully")
				return errors.New("booking aborted by user signal")
			case booking.StatusFailed:
				return outcome.Err
			}

			renderResult(outcome.Result, cfg.Endpoints.History)
			return nil
		},
	}

	bookCmd.Flags().Bool("auto", false, "pick the train automatically (Overrides config/env)")
	bookCmd.Flags().Int("train", 0, "1-based index of the listed train to book (Overrides config/env)")
	return bookCmd
}

// buildOrchestrator wires the session, the form schema, the captcha backend
// and the workflow client into one booking run.
func buildOrchestrator(cfg *config.Config, logger *zap.Logger) (*booking.Orchestrator, error) {
	schema, err := codec.LoadSchema(cfg.Schema.Version)
	if err != nil {
		return nil, err
	}

	proxyURL, err := network.ParseProxyURL(cfg.Network.Proxy)
	if err != nil {
		return nil, err
	}

	sessionCfg := network.NewSessionConfig()
	sessionCfg.RequestTimeout = cfg.Network.Timeout
	sessionCfg.UserAgent = cfg.Network.UserAgent
	sessionCfg.ProxyURL = proxyURL
	sessionCfg.InsecureSkipVerify = cfg.Network.InsecureSkipVerify

	client := booking.NewClient(network.NewClient(sessionCfg), cfg.Endpoints, schema, logger)
	resolver := captcha.NewOCRResolver(
		cfg.Captcha.Endpoint,
		&http.Client{Timeout: cfg.Captcha.Timeout},
		logger,
	)
	prefs := booking.Preferences{
		Auto:     cfg.Booking.Auto,
		Index:    cfg.Booking.TrainIndex,
		ArriveBy: cfg.Booking.ArriveBy,
	}
	return booking.NewOrchestrator(client, resolver, prefs, cfg.Retry, logger), nil
}

// tripFromConfig lifts the booking section into a TripRequest, defaulting the
// date to today and accepting dash-separated dates.
func tripFromConfig(b config.BookingConfig) *booking.TripRequest {
	date := strings.ReplaceAll(strings.TrimSpace(b.Date), "-", "/")
	if date == "" {
		date = time.Now().Format("2006/01/02")
	}
	departure := strings.TrimSpace(b.Time)
	if departure == "" {
		departure = "10:00"
	}

	return &booking.TripRequest{
		From:        b.From,
		To:          b.To,
		Date:        date,
		Time:        departure,
		TrainNo:     strings.TrimSpace(b.TrainNo),
		ArriveBy:    strings.TrimSpace(b.ArriveBy),
		Tickets:     b.Tickets,
		CarClass:    b.CarClass,
		SeatPref:    b.SeatPref,
		NationalID:  strings.TrimSpace(b.NationalID),
		Phone:       strings.TrimSpace(b.Phone),
		Email:       strings.TrimSpace(b.Email),
		TGoID:       strings.TrimSpace(b.TGoID),
		TaxID:       strings.TrimSpace(b.TaxID),
		DisabledIDs: b.DisabledIDs,
		ElderIDs:    b.ElderIDs,
	}
}

// renderResult prints the ticket card to the terminal.
func renderResult(r *booking.BookingResult, historyURL string) {
	fmt.Println("\nBooking success!")
	fmt.Println("---------------------- Ticket ----------------------")
	fmt.Printf("Reservation No: %s\n", r.ReservationNo)
	fmt.Printf("Payment Status: %s\n", r.PaymentStatus)
	fmt.Printf("Car Type:       %s\n", r.CarType)
	fmt.Printf("Ticket Type:    %s\n", r.TicketType)
	fmt.Printf("Price:          %s\n", r.Price)
	fmt.Println("----------------------------------------------------")
	fmt.Printf("Date:     %s\n", r.Date)
	fmt.Printf("Train No: %s\n", r.TrainNo)
	fmt.Printf("Duration: %s\n", r.Duration)
	fmt.Printf("%s (%s) -> %s (%s)\n", r.DepartureTime, r.DepartureStation, r.ArrivalTime, r.ArrivalStation)
	fmt.Println("----------------------------------------------------")
	fmt.Printf("Seats: %s\n", strings.Join(r.Seats, ", "))
	fmt.Printf("\nGo to the reservation record to confirm the ticket and pay!\n(%s)\n", historyURL)
}
