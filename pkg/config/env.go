package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/transcriptops/redactor/pkg/logger"
)

const (
	// DefaultInputDir is the directory scanned for transcripts to redact
	DefaultInputDir = "input"

	// DefaultOutputDir is the directory redacted artifacts are written to
	DefaultOutputDir = "output"

	// DefaultMaxConcurrency defines the maximum number of in-flight redaction jobs
	DefaultMaxConcurrency = 50

	// DefaultMaxHTTPRetries defines the attempt cap for a single service request
	DefaultMaxHTTPRetries = 5

	// DefaultHTTPBackoffFactor defines the exponential backoff multiplier
	DefaultHTTPBackoffFactor = 1.5

	// DefaultHTTPTimeoutSeconds defines the per-request timeout
	DefaultHTTPTimeoutSeconds = 30

	// DefaultMaxFileRetries defines how often a whole file is reprocessed from scratch
	DefaultMaxFileRetries = 3

	// DefaultInitialPollIntervalSeconds defines the floor for the poll cadence
	DefaultInitialPollIntervalSeconds = 2

	// DefaultMaxPollIntervalSeconds caps the poll cadence and retry delays
	DefaultMaxPollIntervalSeconds = 15

	// DefaultPollTimeoutSeconds bounds how long a single operation is polled
	DefaultPollTimeoutSeconds = 1200

	// DefaultCSVDelimiter separates CSV transcript columns
	DefaultCSVDelimiter = '|'

	// DefaultJSONParticipantField names the speaker field inside a JSON turn
	DefaultJSONParticipantField = "participant"

	// DefaultJSONTextField names the utterance field inside a JSON turn
	DefaultJSONTextField = "text"

	// DefaultMetricsPort defines the default port for the metrics server
	DefaultMetricsPort = "8080"
)

// GetEnvInputDir returns the input directory from environment variables
func GetEnvInputDir() (string, error) {
	inputDir := os.Getenv("INPUT_DIR")
	if inputDir == "" {
		return DefaultInputDir, nil
	}
	return inputDir, nil
}

// GetEnvOutputDir returns the output directory from environment variables
func GetEnvOutputDir() (string, error) {
	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		return DefaultOutputDir, nil
	}
	return outputDir, nil
}

// GetEnvMaxConcurrency returns the in-flight job cap from environment variables
func GetEnvMaxConcurrency() (int, error) {
	maxConcurrency := os.Getenv("MAX_CONCURRENCY")
	if maxConcurrency == "" {
		return DefaultMaxConcurrency, nil
	}

	count, err := strconv.Atoi(maxConcurrency)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_CONCURRENCY value: %s, must be an integer", maxConcurrency)
	}
	if count <= 0 {
		return 0, fmt.Errorf("MAX_CONCURRENCY must be greater than 0")
	}
	return count, nil
}

// GetEnvMaxHTTPRetries returns the request-level retry cap from environment variables
func GetEnvMaxHTTPRetries() (int, error) {
	maxRetries := os.Getenv("MAX_HTTP_RETRIES")
	if maxRetries == "" {
		return DefaultMaxHTTPRetries, nil
	}

	retries, err := strconv.Atoi(maxRetries)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_HTTP_RETRIES value: %s, must be an integer", maxRetries)
	}
	if retries <= 0 {
		return 0, fmt.Errorf("MAX_HTTP_RETRIES must be greater than 0")
	}
	return retries, nil
}

// GetEnvHTTPBackoffFactor returns the backoff multiplier from environment variables
func GetEnvHTTPBackoffFactor() (float64, error) {
	factor := os.Getenv("HTTP_BACKOFF_FACTOR")
	if factor == "" {
		return DefaultHTTPBackoffFactor, nil
	}

	parsed, err := strconv.ParseFloat(factor, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid HTTP_BACKOFF_FACTOR value: %s, must be a number", factor)
	}
	if parsed < 1 {
		return 0, fmt.Errorf("HTTP_BACKOFF_FACTOR must be at least 1")
	}
	return parsed, nil
}

// GetEnvHTTPTimeout returns the per-request timeout from environment variables
func GetEnvHTTPTimeout() (time.Duration, error) {
	return getEnvSeconds("HTTP_TIMEOUT_SECONDS", DefaultHTTPTimeoutSeconds)
}

// GetEnvMaxFileRetries returns the file-level retry cap from environment variables
func GetEnvMaxFileRetries() (int, error) {
	maxRetries := os.Getenv("MAX_FILE_RETRIES")
	if maxRetries == "" {
		return DefaultMaxFileRetries, nil
	}

	retries, err := strconv.Atoi(maxRetries)
	if err != nil {
		return 0, fmt.Errorf("invalid MAX_FILE_RETRIES value: %s, must be an integer", maxRetries)
	}
	if retries <= 0 {
		return 0, fmt.Errorf("MAX_FILE_RETRIES must be greater than 0")
	}
	return retries, nil
}

// GetEnvInitialPollInterval returns the starting poll cadence from environment variables
func GetEnvInitialPollInterval() (time.Duration, error) {
	return getEnvSeconds("INITIAL_POLL_INTERVAL_SECONDS", DefaultInitialPollIntervalSeconds)
}

// GetEnvMaxPollInterval returns the poll cadence ceiling from environment variables
func GetEnvMaxPollInterval() (time.Duration, error) {
	return getEnvSeconds("MAX_POLL_INTERVAL_SECONDS", DefaultMaxPollIntervalSeconds)
}

// GetEnvPollTimeout returns the per-operation poll deadline from environment variables
func GetEnvPollTimeout() (time.Duration, error) {
	return getEnvSeconds("POLL_TIMEOUT_SECONDS", DefaultPollTimeoutSeconds)
}

// GetEnvCSVDelimiter returns the CSV column delimiter from environment variables
func GetEnvCSVDelimiter() (rune, error) {
	delimiter := os.Getenv("CSV_DELIMITER")
	if delimiter == "" {
		return DefaultCSVDelimiter, nil
	}

	runes := []rune(delimiter)
	if len(runes) != 1 {
		return 0, fmt.Errorf("invalid CSV_DELIMITER value: %q, must be a single character", delimiter)
	}
	return runes[0], nil
}

// GetEnvJSONParticipantField returns the configured participant field name
func GetEnvJSONParticipantField() string {
	if field := os.Getenv("JSON_PARTICIPANT_FIELD"); field != "" {
		return field
	}
	return DefaultJSONParticipantField
}

// GetEnvJSONTextField returns the configured text field name
func GetEnvJSONTextField() string {
	if field := os.Getenv("JSON_TEXT_FIELD"); field != "" {
		return field
	}
	return DefaultJSONTextField
}

// GetEnvJSONMultiDoc returns whether top-level JSON arrays split into multiple documents
func GetEnvJSONMultiDoc() (bool, error) {
	multiDoc := os.Getenv("JSON_MULTI_DOC")
	switch multiDoc {
	case "", "false", "no", "0":
		return false, nil
	case "true", "yes", "1":
		return true, nil
	}
	return false, fmt.Errorf("invalid JSON_MULTI_DOC value: %s, must be 'true' or 'false'", multiDoc)
}

// GetEnvMetricsPort returns the metrics server port from environment variables
func GetEnvMetricsPort() (string, error) {
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		return DefaultMetricsPort, nil
	}

	// Validate port format
	if _, err := strconv.Atoi(metricsPort); err != nil {
		return "", fmt.Errorf("invalid METRICS_PORT value: %s, must be a valid integer", metricsPort)
	}
	return metricsPort, nil
}

// GetEnvLogLevel returns the log level from environment variables
func GetEnvLogLevel() (logger.Level, error) {
	level := os.Getenv("LOG_LEVEL")
	switch level {
	case "", "info":
		return logger.InfoLevel, nil
	case "debug":
		return logger.DebugLevel, nil
	case "notice":
		return logger.NoticeLevel, nil
	case "error":
		return logger.ErrorLevel, nil
	}
	return 0, fmt.Errorf("invalid LOG_LEVEL value: %s, must be 'debug', 'info', 'notice' or 'error'", level)
}

// GetEnvLogColoring returns whether log coloring is enabled from environment variables
func GetEnvLogColoring() (bool, error) {
	coloring := os.Getenv("LOG_COLORING")
	if coloring == "" {
		return false, nil
	}

	if coloring == "true" {
		return true, nil
	} else if coloring == "false" {
		return false, nil
	}

	return false, fmt.Errorf("invalid LOG_COLORING value: %s, must be 'true' or 'false'", coloring)
}

func getEnvSeconds(name string, defaultSeconds int) (time.Duration, error) {
	value := os.Getenv(name)
	if value == "" {
		return time.Duration(defaultSeconds) * time.Second, nil
	}

	seconds, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s, must be a number of seconds", name, value)
	}
	if seconds <= 0 {
		return 0, fmt.Errorf("%s must be greater than 0", name)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
