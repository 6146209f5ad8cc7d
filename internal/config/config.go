// File: internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration for one booking run.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Network   NetworkConfig   `mapstructure:"network" yaml:"network"`
	Captcha   CaptchaConfig   `mapstructure:"captcha" yaml:"captcha"`
	Endpoints EndpointsConfig `mapstructure:"endpoints" yaml:"endpoints"`
	Schema    SchemaConfig    `mapstructure:"schema" yaml:"schema"`
	Retry     RetryConfig     `mapstructure:"retry" yaml:"retry"`
	Booking   BookingConfig   `mapstructure:"booking" yaml:"booking"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// NetworkConfig tunes the HTTP session shared by all workflow steps.
type NetworkConfig struct {
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgent          string        `mapstructure:"user_agent" yaml:"user_agent"`
	Proxy              string        `mapstructure:"proxy" yaml:"proxy"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

// CaptchaConfig points at the OCR backend that turns challenge images into
// text.
type CaptchaConfig struct {
	Endpoint string        `mapstructure:"endpoint" yaml:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// EndpointsConfig is the URL table of the reservation site. {jsessionid},
// {interface} and {random} placeholders are substituted per request.
type EndpointsConfig struct {
	Base             string `mapstructure:"base" yaml:"base"`
	Reservation      string `mapstructure:"reservation" yaml:"reservation"`
	RefreshCaptcha   string `mapstructure:"refresh_captcha" yaml:"refresh_captcha"`
	SubmitForm       string `mapstructure:"submit_form" yaml:"submit_form"`
	ConfirmTrain     string `mapstructure:"confirm_train" yaml:"confirm_train"`
	ConfirmPassenger string `mapstructure:"confirm_passenger" yaml:"confirm_passenger"`
	InterfacePage    string `mapstructure:"interface_page" yaml:"interface_page"`
	History          string `mapstructure:"history" yaml:"history"`
}

// SchemaConfig selects the form-contract revision.
type SchemaConfig struct {
	Version string `mapstructure:"version" yaml:"version"`
}

// RetryConfig bounds every recoverable failure kind. The workflow never
// retries without a budget.
type RetryConfig struct {
	CaptchaAttempts    int     `mapstructure:"captcha_attempts" yaml:"captcha_attempts"`
	ValidationAttempts int     `mapstructure:"validation_attempts" yaml:"validation_attempts"`
	TransportAttempts  int     `mapstructure:"transport_attempts" yaml:"transport_attempts"`
	AttemptsPerSecond  float64 `mapstructure:"attempts_per_second" yaml:"attempts_per_second"`
}

// BookingConfig carries the trip parameters, normally from the config file.
type BookingConfig struct {
	From        string         `mapstructure:"from" yaml:"from"`
	To          string         `mapstructure:"to" yaml:"to"`
	Date        string         `mapstructure:"date" yaml:"date"`
	Time        string         `mapstructure:"time" yaml:"time"`
	TrainNo     string         `mapstructure:"train_no" yaml:"train_no"`
	ArriveBy    string         `mapstructure:"arrive_by" yaml:"arrive_by"`
	Tickets     map[string]int `mapstructure:"tickets" yaml:"tickets"`
	CarClass    string         `mapstructure:"car_class" yaml:"car_class"`
	SeatPref    string         `mapstructure:"seat_pref" yaml:"seat_pref"`
	NationalID  string         `mapstructure:"national_id" yaml:"national_id"`
	Phone       string         `mapstructure:"phone" yaml:"phone"`
	Email       string         `mapstructure:"email" yaml:"email"`
	TGoID       string         `mapstructure:"tgo_id" yaml:"tgo_id"`
	TaxID       string         `mapstructure:"tax_id" yaml:"tax_id"`
	DisabledIDs []string       `mapstructure:"disabled_ids" yaml:"disabled_ids"`
	ElderIDs    []string       `mapstructure:"elder_ids" yaml:"elder_ids"`
	Auto        bool           `mapstructure:"auto" yaml:"auto"`
	TrainIndex  int            `mapstructure:"train_index" yaml:"train_index"`
}

const defaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "thsrbot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 20)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Network --
	v.SetDefault("network.timeout", "200s")
	v.SetDefault("network.user_agent", defaultUserAgent)
	v.SetDefault("network.insecure_skip_verify", false)

	// -- Captcha --
	v.SetDefault("captcha.endpoint", "https://ocr.holey.cc/thsrc")
	v.SetDefault("captcha.timeout", "200s")

	// -- Endpoints (current IRS Wicket revision) --
	v.SetDefault("endpoints.base", "https://irs.thsrc.com.tw")
	v.SetDefault("endpoints.reservation", "https://irs.thsrc.com.tw/IMINT/?locale=tw")
	v.SetDefault("endpoints.refresh_captcha",
		"https://irs.thsrc.com.tw/IMINT/;jsessionid={jsessionid}?wicket:interface=:0:BookingS1Form:homeCaptcha:refreshCaptcha::IBehaviorListener:0:-1&random={random}")
	v.SetDefault("endpoints.submit_form",
		"https://irs.thsrc.com.tw/IMINT/;jsessionid={jsessionid}?wicket:interface=:0:BookingS1Form::IFormSubmitListener:")
	v.SetDefault("endpoints.confirm_train",
		"https://irs.thsrc.com.tw/IMINT/?wicket:interface=:1:BookingS2Form::IFormSubmitListener:")
	v.SetDefault("endpoints.confirm_passenger",
		"https://irs.thsrc.com.tw/IMINT/?wicket:interface=:{interface}:BookingS3FormSP::IFormSubmitListener:")
	v.SetDefault("endpoints.interface_page",
		"https://irs.thsrc.com.tw/IMINT/?wicket:interface=:{interface}:::")
	v.SetDefault("endpoints.history",
		"https://irs.thsrc.com.tw/IMINT/?wicket:bookmarkablePage=:tw.com.mitac.webapp.thsr.viewer.History")

	// -- Schema --
	v.SetDefault("schema.version", "irs-v5")

	// -- Retry --
	v.SetDefault("retry.captcha_attempts", 5)
	v.SetDefault("retry.validation_attempts", 3)
	v.SetDefault("retry.transport_attempts", 3)
	v.SetDefault("retry.attempts_per_second", 1.0)

	// -- Booking --
	v.SetDefault("booking.car_class", "standard")
	v.SetDefault("booking.seat_pref", "any")
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be a positive duration")
	}
	if c.Captcha.Endpoint == "" {
		return fmt.Errorf("captcha.endpoint is a required configuration field")
	}
	if c.Retry.CaptchaAttempts <= 0 || c.Retry.ValidationAttempts <= 0 || c.Retry.TransportAttempts <= 0 {
		return fmt.Errorf("retry attempt budgets must be positive integers")
	}
	if c.Retry.AttemptsPerSecond <= 0 {
		return fmt.Errorf("retry.attempts_per_second must be positive")
	}
	for _, ep := range []struct{ name, value string }{
		{"endpoints.base", c.Endpoints.Base},
		{"endpoints.reservation", c.Endpoints.Reservation},
		{"endpoints.refresh_captcha", c.Endpoints.RefreshCaptcha},
		{"endpoints.submit_form", c.Endpoints.SubmitForm},
		{"endpoints.confirm_train", c.Endpoints.ConfirmTrain},
		{"endpoints.confirm_passenger", c.Endpoints.ConfirmPassenger},
		{"endpoints.interface_page", c.Endpoints.InterfacePage},
	} {
		if !strings.HasPrefix(ep.value, "http") {
			return fmt.Errorf("%s must be an absolute URL", ep.name)
		}
	}
	return nil
}
