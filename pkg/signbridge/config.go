package signbridge

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/harunnryd/signbridge/pkg/protocol"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Endpoints     EndpointsConfig     `mapstructure:"endpoints"`
	Video         VideoConfig         `mapstructure:"video"`
	Audio         AudioConfig         `mapstructure:"audio"`
	Render        RenderConfig        `mapstructure:"render"`
	Devices       DevicesConfig       `mapstructure:"devices"`
	Transport     TransportConfig     `mapstructure:"transport"`
	LogLevel      string              `mapstructure:"log_level"`
	LogFormat     string              `mapstructure:"log_format"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Privacy       PrivacyConfig       `mapstructure:"privacy"`
}

type EndpointsConfig struct {
	Video string `mapstructure:"video"`
	Audio string `mapstructure:"audio"`
}

type VideoConfig struct {
	IntervalMS    int     `mapstructure:"interval_ms"`
	Quality       float64 `mapstructure:"quality"`
	DefaultWidth  int     `mapstructure:"default_width"`
	DefaultHeight int     `mapstructure:"default_height"`
}

type AudioConfig struct {
	FlushIntervalMS int `mapstructure:"flush_interval_ms"`
	SampleRate      int `mapstructure:"sample_rate"`
}

type RenderConfig struct {
	HistoryCap    int    `mapstructure:"history_cap"`
	DisplayWidth  int    `mapstructure:"display_width"`
	DisplayHeight int    `mapstructure:"display_height"`
	OutputDir     string `mapstructure:"output_dir"`
}

// DeviceConfig selects a registered provider and carries its free-form settings.
type DeviceConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type DevicesConfig struct {
	Camera     DeviceConfig `mapstructure:"camera"`
	Microphone DeviceConfig `mapstructure:"microphone"`
	Speaker    DeviceConfig `mapstructure:"speaker"`
}

type TransportConfig struct {
	HandshakeTimeoutMS int `mapstructure:"handshake_timeout_ms"`
	WriteBuffer        int `mapstructure:"write_buffer"`
	WriteTimeoutMS     int `mapstructure:"write_timeout_ms"`
}

type ObservabilityConfig struct {
	ArtifactsDir  string  `mapstructure:"artifacts_dir"`
	RetentionDays int     `mapstructure:"retention_days"`
	MetricsAddr   string  `mapstructure:"metrics_addr"`
	LogSampleRate float64 `mapstructure:"log_sample_rate"`
	// EventsPath receives every session event as a JSON line; "-" is stderr.
	EventsPath string `mapstructure:"events_path"`
}

type PrivacyConfig struct {
	RedactPII bool `mapstructure:"redact_pii"`
}

const envPrefix = "SIGNBRIDGE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoints.video", "ws://localhost:8000/ws/deaf")
	v.SetDefault("endpoints.audio", "ws://localhost:8000/ws/normal")
	v.SetDefault("video.interval_ms", 150)
	v.SetDefault("video.quality", 0.6)
	v.SetDefault("video.default_width", 640)
	v.SetDefault("video.default_height", 480)
	v.SetDefault("audio.flush_interval_ms", 2000)
	v.SetDefault("audio.sample_rate", 44100)
	v.SetDefault("render.history_cap", 20)
	v.SetDefault("render.display_width", 640)
	v.SetDefault("render.display_height", 480)
	v.SetDefault("render.output_dir", "")
	v.SetDefault("devices.camera.provider", "mock")
	v.SetDefault("devices.microphone.provider", "mock")
	v.SetDefault("devices.speaker.provider", "mock")
	v.SetDefault("transport.handshake_timeout_ms", 5000)
	v.SetDefault("transport.write_buffer", 64)
	v.SetDefault("transport.write_timeout_ms", 10000)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("observability.artifacts_dir", "")
	v.SetDefault("observability.retention_days", 0)
	v.SetDefault("observability.metrics_addr", "")
	v.SetDefault("observability.log_sample_rate", 1.0)
	v.SetDefault("observability.events_path", "")
	v.SetDefault("privacy.redact_pii", true)
}

// DefaultConfig is the configuration used when no file is given.
func DefaultConfig() Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads path (YAML, TOML or JSON by extension) over the defaults.
// A .env file next to it, or in the working directory when path is empty, is
// loaded first so ${VAR} references and SIGNBRIDGE_* overrides can use it.
func LoadConfig(path string) (Config, error) {
	loadDotEnv(path)

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	cfg, err := decode(v)
	if err != nil {
		return Config{}, err
	}
	expandEnvStrings(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func decode(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	return cfg, nil
}

func loadDotEnv(path string) {
	candidate := ".env"
	if path != "" {
		candidate = filepath.Join(filepath.Dir(path), ".env")
	}
	if _, err := os.Stat(candidate); err == nil {
		// Existing environment variables win over the file.
		_ = godotenv.Load(candidate)
	}
}

func (c *Config) Validate() error {
	var errs []error
	if err := validateEndpoint("endpoints.video", c.Endpoints.Video); err != nil {
		errs = append(errs, err)
	}
	if err := validateEndpoint("endpoints.audio", c.Endpoints.Audio); err != nil {
		errs = append(errs, err)
	}
	if c.Video.IntervalMS <= 0 {
		errs = append(errs, errors.New("video.interval_ms must be positive"))
	}
	if c.Video.Quality <= 0 || c.Video.Quality > 1 {
		errs = append(errs, errors.New("video.quality must be in (0, 1]"))
	}
	if c.Audio.FlushIntervalMS <= 0 {
		errs = append(errs, errors.New("audio.flush_interval_ms must be positive"))
	}
	if c.Audio.SampleRate <= 0 {
		errs = append(errs, errors.New("audio.sample_rate must be positive"))
	}
	if c.Render.HistoryCap <= 0 {
		errs = append(errs, errors.New("render.history_cap must be positive"))
	}
	for name, dev := range map[string]DeviceConfig{
		"devices.camera":     c.Devices.Camera,
		"devices.microphone": c.Devices.Microphone,
		"devices.speaker":    c.Devices.Speaker,
	} {
		if strings.TrimSpace(dev.Provider) == "" {
			errs = append(errs, fmt.Errorf("%s.provider is required", name))
		}
	}
	if r := c.Observability.LogSampleRate; r < 0 || r > 1 {
		errs = append(errs, errors.New("observability.log_sample_rate must be in [0, 1]"))
	}
	if c.Observability.RetentionDays < 0 {
		errs = append(errs, errors.New("observability.retention_days must not be negative"))
	}
	return errors.Join(errs...)
}

func validateEndpoint(key, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", key)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%s: scheme must be ws or wss, got %q", key, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s: missing host", key)
	}
	return nil
}

// Endpoint returns the service URL for mode.
func (c Config) Endpoint(mode protocol.Mode) string {
	if mode == protocol.ModeAudio {
		return c.Endpoints.Audio
	}
	return c.Endpoints.Video
}

func (c Config) FrameInterval() time.Duration {
	return time.Duration(c.Video.IntervalMS) * time.Millisecond
}

func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.Audio.FlushIntervalMS) * time.Millisecond
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
	cfg.Devices.Camera.Settings = expandSettings(cfg.Devices.Camera.Settings)
	cfg.Devices.Microphone.Settings = expandSettings(cfg.Devices.Microphone.Settings)
	cfg.Devices.Speaker.Settings = expandSettings(cfg.Devices.Speaker.Settings)
}

func expandSettings(settings map[string]any) map[string]any {
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		return expandSettings(val)
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	switch v.Kind() {
	case reflect.Pointer:
		if !v.IsNil() {
			expandValue(v.Elem())
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
