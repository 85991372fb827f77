package model

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const (
	StrategyInherit  = "inherit"
	StrategyIsolated = "isolated"

	LogStderr  = "stderr"
	LogStdout  = "stdout"
	LogDiscard = "discard"

	FormatJSON = "json"
	FormatText = "text"
)

//go:embed config.schema.json
var schemaSource []byte

const schemaURL = "config.schema.json"

var schema *jsonschema.Schema

func init() {
	if len(schemaSource) == 0 {
		panic("variable schemaSource is empty")
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaSource)); err != nil {
		panic(err)
	}
	var err error
	schema, err = compiler.Compile(schemaURL)
	if err != nil {
		panic(err)
	}
}

type Config struct {
	Version   int       `json:"version"` // fixed 0 for now
	Runner    Runner    `json:"runner"`
	Pool      Pool      `json:"pool"`
	Reports   Reports   `json:"reports"`
	Discovery Discovery `json:"discovery"`
	Service   Service   `json:"service"`
}

// Runner is the external test engine.
type Runner struct {
	Binary   string            `json:"binary,omitempty"`
	Args     []string          `json:"args,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Strategy string            `json:"strategy,omitempty"` // "inherit" | "isolated"
}

// Pool configures the bounded pool. Tag jobs are never limited.
type Pool struct {
	Concurrency  int    `json:"concurrency,omitempty"` // 0 => logical CPUs
	Timeout      string `json:"timeout,omitempty"`     // Go duration, empty => none
	CaptureLimit int    `json:"capture_limit,omitempty"`
}

type Reports struct {
	Dir string `json:"dir,omitempty"` // root of tag job outputs
}

type Discovery struct {
	Extension string `json:"extension,omitempty"`
}

type Service struct {
	Verbose bool   `json:"verbose,omitempty"`
	Log     string `json:"log,omitempty"`    // "stderr"|"stdout"|"discard"|path
	Format  string `json:"format,omitempty"` // "json"|"text"
}

func DefaultConfig() Config {
	return Config{
		Version: 0,
		Runner: Runner{
			Binary:   "robot",
			Strategy: StrategyInherit,
		},
		Reports: Reports{
			Dir: "reports",
		},
		Discovery: Discovery{
			Extension: ".robot",
		},
		Service: Service{
			Log:    LogStderr,
			Format: FormatJSON,
		},
	}
}

// TimeoutDuration parses Pool.Timeout, the empty string means no timeout.
func (p Pool) TimeoutDuration() (time.Duration, error) {
	if p.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing pool.timeout: %w", err)
	}
	if d < 0 {
		return 0, fmt.Errorf("pool.timeout %s is negative", p.Timeout)
	}
	return d, nil
}

// Environ returns Env as sorted KEY=value pairs. Values starting with $ are
// expanded from the parabot environment.
func (r Runner) Environ() []string {
	env := make([]string, 0, len(r.Env))
	for k, v := range r.Env {
		if strings.HasPrefix(v, "$") {
			v = os.ExpandEnv(v)
		}
		env = append(env, k+"="+v)
	}
	slices.Sort(env)
	return env
}

type Format int

const (
	YAML Format = iota
	TOML
)

// FormatOf guesses the format from a file extension, YAML is the default.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return TOML
	default:
		return YAML
	}
}

// LoadConfig parses r, validates it against the embedded JSON schema and
// decodes it on top of DefaultConfig.
func LoadConfig(r io.Reader, format Format) (Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var doc map[string]any
	switch format {
	case TOML:
		if _, err := toml.Decode(string(raw), &doc); err != nil {
			return Config{}, fmt.Errorf("parsing toml: %w", err)
		}
	default:
		if err := yaml.Unmarshal(raw, &doc); err != nil {
			return Config{}, fmt.Errorf("parsing yaml: %w", err)
		}
	}
	if doc == nil {
		doc = map[string]any{}
	}

	// the validator understands encoding/json values only
	normalized, err := json.Marshal(doc)
	if err != nil {
		return Config{}, fmt.Errorf("normalizing config: %w", err)
	}
	var value any
	if err := json.Unmarshal(normalized, &value); err != nil {
		return Config{}, fmt.Errorf("normalizing config: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(normalized, &cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if _, err := cfg.Pool.TimeoutDuration(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile opens path and calls LoadConfig with the format guessed from
// its extension.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("opening config file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()
	return LoadConfig(f, FormatOf(path))
}
