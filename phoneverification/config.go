package phoneverification

import (
	"errors"
	"fmt"
	"os"
	"regexp"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

const (
	defaultCodeLength  = 4
	defaultWaitSeconds = 10
)

// ErrInvalidConfig is returned when a Config cannot be used to build a state.
var ErrInvalidConfig = errors.New("invalid phone verification config")

// Texts are the user-visible strings the machine puts into effects and queries.
type Texts struct {
	SmsFailed    string `env:"SMS_FAILED"    yaml:"smsFailed"`
	CodeRejected string `env:"CODE_REJECTED" yaml:"codeRejected"`
	Resend       string `env:"RESEND"        yaml:"resend"`
}

// Config tunes the phone verification flow. The zero value is not valid; start from
// DefaultConfig or LoadConfig.
type Config struct {
	// CodeLength is the number of digits in a verification code.
	CodeLength int `env:"PHONE_VERIFICATION_CODE_LENGTH" yaml:"codeLength"`
	// WaitSeconds is the countdown before resending is allowed.
	WaitSeconds int `env:"PHONE_VERIFICATION_WAIT_SECONDS" yaml:"waitSeconds"`
	// Language is a BCP 47 tag used to format numbers in labels.
	Language string `env:"PHONE_VERIFICATION_LANGUAGE" yaml:"language"`
	Texts    Texts  `envPrefix:"PHONE_VERIFICATION_TEXT_" yaml:"texts"`
}

// DefaultConfig returns a four digit code, a ten second resend countdown and English texts.
func DefaultConfig() Config {
	return Config{
		CodeLength:  defaultCodeLength,
		WaitSeconds: defaultWaitSeconds,
		Language:    "en",
		Texts: Texts{
			SmsFailed:    "Could not send SMS",
			CodeRejected: "Code rejected",
			Resend:       "Resend text",
		},
	}
}

// LoadConfig starts from DefaultConfig, overlays the YAML file at path (if path is
// not empty) and then any PHONE_VERIFICATION_* environment variables. Each dotenv
// file is loaded into the environment first; variables already set win.
func LoadConfig(path string, dotenv ...string) (Config, error) {
	cfg := DefaultConfig()

	if len(dotenv) > 0 {
		if err := godotenv.Load(dotenv...); err != nil {
			return Config{}, fmt.Errorf("loading dotenv files: %w", err)
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate reports the first problem that would stop the config from being used.
func (c Config) Validate() error {
	_, err := c.compile()

	return err
}

// rules is the compiled, immutable form of a Config shared by every state derived from
// the same initial state.
type rules struct {
	codeLength  int
	waitSeconds int
	codePattern *regexp.Regexp
	texts       Texts
	printer     *message.Printer
}

func (c Config) compile() (*rules, error) {
	if c.CodeLength <= 0 {
		return nil, fmt.Errorf("%w: code length must be positive, got %d", ErrInvalidConfig, c.CodeLength)
	}

	if c.WaitSeconds < 0 {
		return nil, fmt.Errorf("%w: wait seconds must not be negative, got %d", ErrInvalidConfig, c.WaitSeconds)
	}

	tag, err := language.Parse(c.Language)
	if err != nil {
		return nil, fmt.Errorf("%w: language %q: %w", ErrInvalidConfig, c.Language, err)
	}

	return &rules{
		codeLength:  c.CodeLength,
		waitSeconds: c.WaitSeconds,
		codePattern: regexp.MustCompile(fmt.Sprintf(`\d{%d}`, c.CodeLength)),
		texts:       c.Texts,
		printer:     message.NewPrinter(tag),
	}, nil
}

var defaultRules = mustCompile(DefaultConfig()) //nolint:gochecknoglobals

func mustCompile(c Config) *rules {
	r, err := c.compile()
	if err != nil {
		panic(err)
	}

	return r
}
