package config

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pingcap/errors"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/studiowebux/checkoutload/internal/catalog"
	"github.com/studiowebux/checkoutload/internal/checkout"
	"github.com/studiowebux/checkoutload/internal/stresstest"
)

// ErrInvalidConfig is the cause of every validation failure
var ErrInvalidConfig = errors.New("invalid config")

// Environment variables read by ApplyEnv
const (
	EnvBaseURL  = "BASE_URL"
	EnvShape    = "CHECKOUTLOAD_SHAPE"
	EnvVUs      = "CHECKOUTLOAD_VUS"
	EnvDuration = "CHECKOUTLOAD_DURATION"
)

// Defaults
const (
	DefaultName     = "checkout"
	DefaultBaseURL  = "http://localhost:8080"
	DefaultVUs      = 10
	DefaultDuration = 30 * time.Second
)

// Duration is a time.Duration written as "30s" or "1m30s" in scenario files
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler (TOML and JSON)
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return errors.Annotatef(err, "invalid duration %q", text)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.UnmarshalText([]byte(node.Value))
}

// Extract holds optional JMESPath overrides for the REST shape
type Extract struct {
	CartItem    string `yaml:"cart_item" toml:"cart_item" json:"cart_item"`
	OrderNumber string `yaml:"order_number" toml:"order_number" json:"order_number"`
}

// Thresholds fail the run when not met
type Thresholds struct {
	// ChecksPassRate is a percentage in [0, 100]; nil disables the threshold
	ChecksPassRate *float64 `yaml:"checks_pass_rate" toml:"checks_pass_rate" json:"checks_pass_rate"`
}

// Scenario is the complete description of a load test
type Scenario struct {
	Name           string                    `yaml:"name" toml:"name" json:"name"`
	BaseURL        string                    `yaml:"base_url" toml:"base_url" json:"base_url"`
	Shape          string                    `yaml:"shape" toml:"shape" json:"shape"`
	VUs            int                       `yaml:"vus" toml:"vus" json:"vus"`
	Duration       Duration                  `yaml:"duration" toml:"duration" json:"duration"`
	Iterations     int                       `yaml:"iterations" toml:"iterations" json:"iterations"`
	RampUp         Duration                  `yaml:"ramp_up" toml:"ramp_up" json:"ramp_up"`
	RequestTimeout Duration                  `yaml:"request_timeout" toml:"request_timeout" json:"request_timeout"`
	ThinkTime      Duration                  `yaml:"think_time" toml:"think_time" json:"think_time"`
	Products       []string                  `yaml:"products" toml:"products" json:"products"`
	Quantity       int                       `yaml:"quantity" toml:"quantity" json:"quantity"`
	Seed           uint64                    `yaml:"seed" toml:"seed" json:"seed"`
	Customer       checkout.CustomerTemplate `yaml:"customer" toml:"customer" json:"customer"`
	Extract        Extract                   `yaml:"extract" toml:"extract" json:"extract"`
	TLS            *stresstest.TLSConfig     `yaml:"tls" toml:"tls" json:"tls"`
	Thresholds     Thresholds                `yaml:"thresholds" toml:"thresholds" json:"thresholds"`
	LogIterations  bool                      `yaml:"log_iterations" toml:"log_iterations" json:"log_iterations"`
}

// Default returns the scenario used when nothing else is configured
func Default() *Scenario {
	return &Scenario{
		Name:           DefaultName,
		BaseURL:        DefaultBaseURL,
		Shape:          checkout.ShapeForm,
		VUs:            DefaultVUs,
		Duration:       Duration{DefaultDuration},
		RequestTimeout: Duration{checkout.DefaultRequestTimeout},
		ThinkTime:      Duration{checkout.DefaultThinkTime},
		Products:       append([]string(nil), catalog.DefaultCodes...),
		Quantity:       1,
		Customer:       checkout.DefaultCustomerTemplate(),
		LogIterations:  true,
	}
}

// Load reads a scenario file over the defaults. The format follows the
// file extension. Unknown keys are rejected.
func Load(path string) (*Scenario, error) {
	if path == "" {
		return nil, errors.New("scenario path is empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "failed to read scenario file")
	}

	s := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = decodeYAML(data, s)
	case ".toml":
		err = decodeTOML(data, s)
	case ".json", ".jsonc":
		err = decodeJSON(data, s)
	default:
		return nil, errors.Errorf("unsupported scenario format %q: %s", ext, path)
	}
	if err != nil {
		return nil, errors.Annotatef(err, "decode scenario %s failed", path)
	}
	return s, nil
}

func decodeYAML(data []byte, s *Scenario) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && err != io.EOF {
		return errors.Trace(err)
	}
	return nil
}

func decodeTOML(data []byte, s *Scenario) error {
	meta, err := toml.Decode(string(data), s)
	if err != nil {
		return errors.Trace(err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown keys in scenario: %v", undecoded)
	}
	return nil
}

func decodeJSON(data []byte, s *Scenario) error {
	dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	dec.DisallowUnknownFields()
	return errors.Trace(dec.Decode(s))
}

// ApplyEnv overrides fields from the process environment
func (s *Scenario) ApplyEnv() error {
	return s.ApplyLookup(os.LookupEnv)
}

// ApplyLookup overrides fields from lookup, which has the os.LookupEnv signature
func (s *Scenario) ApplyLookup(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		s.BaseURL = v
	}
	if v, ok := lookup(EnvShape); ok && v != "" {
		s.Shape = v
	}
	if v, ok := lookup(EnvVUs); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Annotatef(ErrInvalidConfig, "%s=%q is not a number", EnvVUs, v)
		}
		s.VUs = n
	}
	if v, ok := lookup(EnvDuration); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Annotatef(ErrInvalidConfig, "%s=%q is not a duration", EnvDuration, v)
		}
		s.Duration = Duration{d}
	}
	return nil
}

// Validate checks the scenario and normalizes the shape name
func (s *Scenario) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.Annotate(ErrInvalidConfig, "name is required")
	}

	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Annotatef(ErrInvalidConfig, "base_url must be an http(s) URL: %q", s.BaseURL)
	}
	s.BaseURL = strings.TrimRight(s.BaseURL, "/")

	s.Shape = strings.ToLower(strings.TrimSpace(s.Shape))
	if s.Shape != checkout.ShapeForm && s.Shape != checkout.ShapeREST {
		return errors.Annotatef(ErrInvalidConfig, "unknown shape %q (want %s or %s)",
			s.Shape, checkout.ShapeForm, checkout.ShapeREST)
	}

	if s.ThinkTime.Duration < 0 {
		return errors.Annotate(ErrInvalidConfig, "think_time cannot be negative")
	}
	if s.Quantity < 1 {
		return errors.Annotatef(ErrInvalidConfig, "quantity must be at least 1, got %d", s.Quantity)
	}
	if _, err := catalog.New(s.Products); err != nil {
		return errors.Annotatef(ErrInvalidConfig, "products: %v", err)
	}
	if err := s.Customer.Validate(); err != nil {
		return errors.Annotatef(ErrInvalidConfig, "customer: %v", err)
	}
	if r := s.Thresholds.ChecksPassRate; r != nil && (*r < 0 || *r > 100) {
		return errors.Annotatef(ErrInvalidConfig, "thresholds.checks_pass_rate must be within [0, 100], got %v", *r)
	}
	if err := s.LoadConfig().Validate(); err != nil {
		return errors.Annotatef(ErrInvalidConfig, "%v", err)
	}
	return nil
}

// LoadConfig returns the executor limits
func (s *Scenario) LoadConfig() *stresstest.Config {
	return &stresstest.Config{
		Name:           s.Name,
		VUs:            s.VUs,
		Duration:       s.Duration.Duration,
		Iterations:     s.Iterations,
		RampUp:         s.RampUp.Duration,
		RequestTimeout: s.RequestTimeout.Duration,
		Seed:           s.Seed,
	}
}

// ShapeOptions returns the protocol shape options
func (s *Scenario) ShapeOptions() checkout.ShapeOptions {
	return checkout.ShapeOptions{
		Quantity:        s.Quantity,
		CartItemExpr:    s.Extract.CartItem,
		OrderNumberExpr: s.Extract.OrderNumber,
	}
}

// RunnerThinkTime maps think_time to the runner convention, where a zero
// think time in the scenario turns the pause off
func (s *Scenario) RunnerThinkTime() time.Duration {
	if s.ThinkTime.Duration == 0 {
		return -1
	}
	return s.ThinkTime.Duration
}

// ThresholdMet reports whether passRate satisfies the configured threshold
func (s *Scenario) ThresholdMet(passRate float64) bool {
	if s.Thresholds.ChecksPassRate == nil {
		return true
	}
	return passRate >= *s.Thresholds.ChecksPassRate
}
