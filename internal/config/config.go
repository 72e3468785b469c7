package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/go-playground/validator/v10"
)

// Imputation policies accepted by IMPUTE_POLICY.
const (
	ImputeForwardFill = "ffill"
	ImputeMean        = "mean"
)

// Config holds all pipeline settings, populated from environment variables.
// The env tag names the variable and is used in validation messages.
type Config struct {
	InputPath string `env:"INPUT_PATH" validate:"required"`
	OutputDir string `env:"OUTPUT_DIR" validate:"required"`
	LogLevel  string `env:"LOG_LEVEL" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" validate:"oneof=json text"`

	// Processing and interpretation.
	TargetPollutant string  `env:"TARGET_POLLUTANT" validate:"oneof=pm2_5 pm10 co no no2 o3 so2 nh3"`
	RollingWindow   int     `env:"ROLLING_WINDOW" validate:"min=1,max=8760"`
	TopN            int     `env:"TOP_N" validate:"min=1,max=1000"`
	ImputePolicy    string  `env:"IMPUTE_POLICY" validate:"oneof=ffill mean"`
	OutlierFactor   float64 `env:"OUTLIER_FACTOR" validate:"gte=0"`
	ExportXLSX      bool    `env:"EXPORT_XLSX"`

	// Optional Kafka publishing of classified observations.
	KafkaBrokers   []string      `env:"KAFKA_BROKERS"`
	KafkaTopic     string        `env:"KAFKA_TOPIC" validate:"required"`
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" validate:"gt=0"`

	// Observability.
	PushgatewayURL string `env:"PUSHGATEWAY_URL" validate:"omitempty,url"`
	TraceStdout    bool   `env:"TRACE_STDOUT"`
}

// PublishEnabled reports whether classified observations go to Kafka.
func (c *Config) PublishEnabled() bool { return len(c.KafkaBrokers) > 0 }

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	rollingWindow, err := parseInt("ROLLING_WINDOW", "24")
	if err != nil {
		return nil, err
	}
	topN, err := parseInt("TOP_N", "10")
	if err != nil {
		return nil, err
	}
	outlierFactor, err := parseFloat("OUTLIER_FACTOR", "0")
	if err != nil {
		return nil, err
	}
	exportXLSX, err := parseBool("EXPORT_XLSX", "true")
	if err != nil {
		return nil, err
	}
	traceStdout, err := parseBool("TRACE_STDOUT", "false")
	if err != nil {
		return nil, err
	}
	publishTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("PUBLISH_TIMEOUT", "10s"))
	if err != nil {
		return nil, errors.New("invalid PUBLISH_TIMEOUT")
	}

	var brokers []string
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		brokers = sharedcfg.ParseBrokers(v)
	}

	cfg := &Config{
		InputPath: sharedcfg.EnvOrDefault("INPUT_PATH", "data/air_quality.csv"),
		OutputDir: sharedcfg.EnvOrDefault("OUTPUT_DIR", "output"),
		LogLevel:  strings.ToLower(sharedcfg.EnvOrDefault("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(sharedcfg.EnvOrDefault("LOG_FORMAT", "json")),

		TargetPollutant: strings.ToLower(sharedcfg.EnvOrDefault("TARGET_POLLUTANT", "pm2_5")),
		RollingWindow:   rollingWindow,
		TopN:            topN,
		ImputePolicy:    strings.ToLower(sharedcfg.EnvOrDefault("IMPUTE_POLICY", ImputeForwardFill)),
		OutlierFactor:   outlierFactor,
		ExportXLSX:      exportXLSX,

		KafkaBrokers:   brokers,
		KafkaTopic:     sharedcfg.EnvOrDefault("KAFKA_TOPIC", "air-quality-classified"),
		PublishTimeout: publishTimeout,

		PushgatewayURL: os.Getenv("PUSHGATEWAY_URL"),
		TraceStdout:    traceStdout,
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cfg against its validation tags and reports failures by
// environment variable name.
func Validate(cfg *Config) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})

	err := v.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s: %q fails %s", fe.Field(), fmt.Sprint(fe.Value()), describeTag(fe)))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func describeTag(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}

func parseInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func parseFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func parseBool(key, def string) (bool, error) {
	b, err := strconv.ParseBool(sharedcfg.EnvOrDefault(key, def))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
