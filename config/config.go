// Package config provides YAML configuration parsing for fetchstore.
//
// This package enables running a store from the fetchstore binary with a
// configuration file, as an alternative to the programmatic API.
//
// Example configuration:
//
//	url: https://api.example.com/posts
//	method: GET
//	headers:
//	  Authorization: "Bearer ${API_TOKEN}"
//	retries: 2
//	retry_delay: 500ms
//	timeout: 10s
//	transform:
//	  path: data.items
//	  limit: 3
//	port: 8080
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	defaultPort   = 8080
	minRetryDelay = 10 * time.Millisecond
	minTimeout    = 100 * time.Millisecond
)

// Config is the configuration of one store and the server that exposes it.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// URL is the address to fetch.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	URL string `yaml:"url" validate:"required,http_url"`

	// Method is the HTTP method. Defaults to GET.
	Method string `yaml:"method" validate:"omitempty,oneof=GET POST PUT PATCH DELETE OPTIONS"`

	// Headers are custom HTTP headers sent with each attempt.
	// Values support environment variable substitution.
	Headers map[string]string `yaml:"headers"`

	// Body is the raw request body. Supports environment variable substitution.
	Body string `yaml:"body"`

	// Retries is how many times a failed attempt is retried. Defaults to 0.
	Retries int `yaml:"retries" validate:"gte=0,lte=100"`

	// RetryDelay is the fixed delay between attempts. Defaults to 1s.
	RetryDelay Duration `yaml:"retry_delay"`

	// Timeout bounds each attempt. Defaults to 30s.
	Timeout Duration `yaml:"timeout"`

	// Transform reshapes the decoded response.
	Transform TransformConfig `yaml:"transform"`

	// Port is the HTTP server port used by `serve`. Defaults to 8080.
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}

// TransformConfig selects part of a decoded response.
//
// It supports two formats in YAML:
//
// Shorthand string (path only):
//
//	transform: data.items
//
// Structured object:
//
//	transform:
//	  path: data.items
//	  limit: 3
type TransformConfig struct {
	// Path is a dot-notation path into the decoded body. Numeric segments
	// index arrays.
	Path string `yaml:"path"`

	// Limit keeps at most this many array elements. Zero means no limit.
	Limit int `yaml:"limit" validate:"gte=0"`
}

// Empty reports whether the transform is the identity.
func (t TransformConfig) Empty() bool {
	return t.Path == "" && t.Limit == 0
}

// UnmarshalYAML implements yaml.Unmarshaler for TransformConfig.
func (t *TransformConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		t.Path = strings.TrimSpace(s)
		return nil

	case yaml.MappingNode:
		// temporary struct to avoid infinite recursion
		var raw struct {
			Path  string `yaml:"path"`
			Limit int    `yaml:"limit"`
		}
		if err := node.Decode(&raw); err != nil {
			return err
		}
		t.Path = raw.Path
		t.Limit = raw.Limit
		return nil
	}

	return fmt.Errorf("transform must be a string or object, got %v", node.Kind)
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars resolves every env reference in s. A reference without a
// fallback to an unset variable is an error; a set but empty variable is
// used as is.
func expandEnvVars(s string) (string, error) {
	var b strings.Builder
	last := 0
	for _, m := range envRef.FindAllStringSubmatchIndex(s, -1) {
		b.WriteString(s[last:m[0]])
		last = m[1]

		name := s[m[2]:m[3]]
		if v, ok := os.LookupEnv(name); ok {
			b.WriteString(v)
			continue
		}
		if m[4] < 0 {
			return "", fmt.Errorf("environment variable %q is not set", name)
		}
		b.WriteString(s[m[6]:m[7]])
	}
	b.WriteString(s[last:])
	return b.String(), nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before validation.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in URL, Body and Header values.
// Defaults are applied for Method (GET) and Port (8080); RetryDelay and
// Timeout are left zero so the library defaults apply.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Method == "" {
		cfg.Method = "GET"
	}
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}

	if err := cfg.expand(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FromURL returns the configuration used for an ad-hoc `get <url>`.
func FromURL(rawURL string) (*Config, error) {
	cfg := &Config{
		URL:    rawURL,
		Method: "GET",
		Port:   defaultPort,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expand substitutes environment variables.
func (c *Config) expand() error {
	expanded, err := expandEnvVars(c.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	c.URL = expanded

	for k, v := range c.Headers {
		expanded, err := expandEnvVars(v)
		if err != nil {
			return fmt.Errorf("headers[%s]: %w", k, err)
		}
		c.Headers[k] = expanded
	}

	expanded, err = expandEnvVars(c.Body)
	if err != nil {
		return fmt.Errorf("body: %w", err)
	}
	c.Body = expanded

	return nil
}

// Validate checks the configuration's field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewValidationError(validationErrors)
		}
		return err
	}

	if c.RetryDelay != 0 && c.RetryDelay.Duration() < minRetryDelay {
		return fmt.Errorf("retry_delay must be at least %s if specified, got %s",
			minRetryDelay, c.RetryDelay.Duration())
	}
	if c.Timeout != 0 && c.Timeout.Duration() < minTimeout {
		return fmt.Errorf("timeout must be at least %s if specified, got %s",
			minTimeout, c.Timeout.Duration())
	}
	return nil
}

// validate reports field names by their YAML keys.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

// ValidationError collects the field errors of an invalid [Config].
type ValidationError struct {
	Errors []FieldError
}

// FieldError is a validation failure of one configuration field.
type FieldError struct {
	Field   string
	Message string
	Value   string
}

// NewValidationError converts validator errors into a [ValidationError].
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	fieldErrors := make([]FieldError, 0, len(errs))

	for _, err := range errs {
		fieldErrors = append(fieldErrors, FieldError{
			Field:   fieldPath(err),
			Message: errorMessage(err),
			Value:   fmt.Sprintf("%v", err.Value()),
		})
	}

	return &ValidationError{Errors: fieldErrors}
}

func (ve *ValidationError) Error() string {
	if len(ve.Errors) == 0 {
		return "invalid config"
	}

	msgs := make([]string, len(ve.Errors))
	for i, fe := range ve.Errors {
		msgs[i] = fe.Message
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// fieldPath renders the namespace without the root type, e.g. "transform.limit".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func errorMessage(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "http_url":
		return fmt.Sprintf("%s must be an http or https URL, got %q", field, fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s, got %q", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
