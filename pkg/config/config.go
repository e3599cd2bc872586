package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/transcriptops/redactor/pkg/logger"
)

// Config holds the configuration for the redaction runner
type Config struct {
	Endpoint            string
	APIKey              string
	InputDir            string
	OutputDir           string
	MaxConcurrency      int
	MaxHTTPRetries      int
	HTTPBackoffFactor   float64
	HTTPTimeout         time.Duration
	MaxFileRetries      int
	InitialPollInterval time.Duration
	MaxPollInterval     time.Duration
	PollTimeout         time.Duration
	CSVDelimiter        rune
	JSONMapping         JSONMappingConfig
	MetricsPort         string
	LoggerConfig        LoggerConfig
}

// JSONMappingConfig describes how to locate conversation turns inside
// arbitrarily shaped JSON inputs
type JSONMappingConfig struct {
	// ConversationPath is a dot-delimited path to the array holding the
	// conversation items, e.g. "phrases" or "payload.items". Empty means
	// fall back to well-known keys.
	ConversationPath string
	ParticipantField string
	TextField        string
	TimestampField   string
	// MultiDoc treats a top-level JSON array as one document per element
	MultiDoc bool
}

// LoggerConfig holds the configuration for logging
type LoggerConfig struct {
	Level    logger.Level
	Coloring bool
}

// LoadConfig loads the configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	inputDir, err := GetEnvInputDir()
	if err != nil {
		return nil, err
	}

	outputDir, err := GetEnvOutputDir()
	if err != nil {
		return nil, err
	}

	maxConcurrency, err := GetEnvMaxConcurrency()
	if err != nil {
		return nil, err
	}

	maxHTTPRetries, err := GetEnvMaxHTTPRetries()
	if err != nil {
		return nil, err
	}

	backoffFactor, err := GetEnvHTTPBackoffFactor()
	if err != nil {
		return nil, err
	}

	httpTimeout, err := GetEnvHTTPTimeout()
	if err != nil {
		return nil, err
	}

	maxFileRetries, err := GetEnvMaxFileRetries()
	if err != nil {
		return nil, err
	}

	initialPoll, err := GetEnvInitialPollInterval()
	if err != nil {
		return nil, err
	}

	maxPoll, err := GetEnvMaxPollInterval()
	if err != nil {
		return nil, err
	}

	pollTimeout, err := GetEnvPollTimeout()
	if err != nil {
		return nil, err
	}

	delimiter, err := GetEnvCSVDelimiter()
	if err != nil {
		return nil, err
	}

	multiDoc, err := GetEnvJSONMultiDoc()
	if err != nil {
		return nil, err
	}

	metricsPort, err := GetEnvMetricsPort()
	if err != nil {
		return nil, err
	}

	logLevel, err := GetEnvLogLevel()
	if err != nil {
		return nil, err
	}

	logColoring, err := GetEnvLogColoring()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Endpoint:            normalizeEndpoint(os.Getenv("LANGUAGE_SERVICE_ENDPOINT")),
		APIKey:              os.Getenv("LANGUAGE_API_KEY"),
		InputDir:            inputDir,
		OutputDir:           outputDir,
		MaxConcurrency:      maxConcurrency,
		MaxHTTPRetries:      maxHTTPRetries,
		HTTPBackoffFactor:   backoffFactor,
		HTTPTimeout:         httpTimeout,
		MaxFileRetries:      maxFileRetries,
		InitialPollInterval: initialPoll,
		MaxPollInterval:     maxPoll,
		PollTimeout:         pollTimeout,
		CSVDelimiter:        delimiter,
		JSONMapping: JSONMappingConfig{
			ConversationPath: os.Getenv("JSON_CONVERSATION_PATH"),
			ParticipantField: GetEnvJSONParticipantField(),
			TextField:        GetEnvJSONTextField(),
			TimestampField:   os.Getenv("JSON_TIMESTAMP_FIELD"),
			MultiDoc:         multiDoc,
		},
		MetricsPort: metricsPort,
		LoggerConfig: LoggerConfig{
			Level:    logLevel,
			Coloring: logColoring,
		},
	}

	// Validate required environment variables
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Endpoint == "" {
		return fmt.Errorf("LANGUAGE_SERVICE_ENDPOINT environment variable is required")
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("LANGUAGE_API_KEY environment variable is required")
	}
	if cfg.MaxPollInterval < cfg.InitialPollInterval {
		return fmt.Errorf("MAX_POLL_INTERVAL_SECONDS must not be smaller than INITIAL_POLL_INTERVAL_SECONDS")
	}
	return nil
}

// normalizeEndpoint ensures the service endpoint carries a trailing slash so
// request paths can be appended directly.
func normalizeEndpoint(endpoint string) string {
	if endpoint != "" && !strings.HasSuffix(endpoint, "/") {
		return endpoint + "/"
	}
	return endpoint
}
