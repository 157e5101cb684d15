package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	httpctrl "github.com/kelvinlab/vaporcurve/internal/controllers/http"
	modbusctrl "github.com/kelvinlab/vaporcurve/internal/controllers/modbus"
	mqttctrl "github.com/kelvinlab/vaporcurve/internal/controllers/mqtt"
)

const envPrefix = "VAPORCURVE_"

type Config struct {
	ServiceID   string      `koanf:"service_id"`
	Data        DataConfig  `koanf:"data"`
	Curve       CurveConfig `koanf:"curve"`
	Chart       ChartConfig `koanf:"chart"`
	Controllers struct {
		HTTP   HTTPConfig   `koanf:"http"`
		MQTT   MQTTConfig   `koanf:"mqtt"`
		MODBUS Modbusconfig `koanf:"modbus"`
	} `koanf:"controllers"`
}

type DataConfig struct {
	Path string `koanf:"path"`
}

type CurveConfig struct {
	MinTorr    float64 `koanf:"min_torr"`
	MaxTorr    float64 `koanf:"max_torr"`
	Samples    int     `koanf:"samples"`
	MaxSamples int     `koanf:"max_samples"`
}

type ChartConfig struct {
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

type HTTPConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

type MQTTConfig struct {
	Enabled         bool          `koanf:"enabled"`
	BrokerURL       string        `koanf:"broker_url"`
	ClientID        string        `koanf:"client_id"`
	BaseTopic       string        `koanf:"base_topic"`
	QoS             byte          `koanf:"qos"`
	RetainCatalog   bool          `koanf:"retain_catalog"`
	PublishInterval time.Duration `koanf:"publish_interval"`
	Username        string        `koanf:"username"`
	Password        string        `koanf:"password"`
}

type Modbusconfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
	UnitID  byte   `koanf:"unit_id"`
}

// LoadConfig layers defaults, an optional config file and VAPORCURVE_*
// environment variables, later layers winning.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Config{}, fmt.Errorf("load config: %w", err)
			}
			// Config file missing → use defaults
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: envPrefix,
		TransformFunc: func(key, value string) (string, any) {
			return envKeyTransform(strings.TrimPrefix(key, envPrefix)), value
		},
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config extension %q", ext)
	}
}

// envKeyTransform maps a VAPORCURVE_-stripped variable name onto the dotted
// key hierarchy, e.g. CONTROLLERS_HTTP_ADDR → controllers.http.addr and
// CURVE_MAX_SAMPLES → curve.max_samples. Names that do not reach into a
// known section fall through lowercased as-is.
func envKeyTransform(s string) string {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return ""
	}

	parts := strings.Split(key, "_")
	switch parts[0] {
	case "controllers":
		if len(parts) >= 3 {
			return "controllers." + parts[1] + "." + strings.Join(parts[2:], "_")
		}
	case "data", "curve", "chart":
		if len(parts) >= 2 {
			return parts[0] + "." + strings.Join(parts[1:], "_")
		}
	}
	return key
}

func applyDefaults(cfg *Config) {
	if cfg.ServiceID == "" {
		cfg.ServiceID = "default"
	}
	if cfg.Data.Path == "" {
		cfg.Data.Path = "chem_list.csv"
	}
	if cfg.Controllers.HTTP.Addr == "" {
		cfg.Controllers.HTTP.Addr = ":8080"
	}
	if !cfg.Controllers.HTTP.Enabled && !cfg.Controllers.MQTT.Enabled && !cfg.Controllers.MODBUS.Enabled {
		cfg.Controllers.HTTP.Enabled = true
	}
	if cfg.Controllers.MQTT.PublishInterval == 0 {
		cfg.Controllers.MQTT.PublishInterval = 1 * time.Minute
	}
	if cfg.Controllers.MODBUS.UnitID == 0 {
		cfg.Controllers.MODBUS.UnitID = 1
	}
	if cfg.Curve.Samples <= 0 {
		cfg.Curve.Samples = 1000
	}
	if cfg.Curve.MaxSamples <= 0 {
		cfg.Curve.MaxSamples = 100000
	}
	if cfg.Curve.MaxSamples < cfg.Curve.Samples {
		cfg.Curve.MaxSamples = cfg.Curve.Samples
	}
}

func defaultConfig() Config {
	var cfg Config
	cfg.ServiceID = "default"
	cfg.Data.Path = "chem_list.csv"
	cfg.Curve = CurveConfig{
		MinTorr:    1.0,
		MaxTorr:    760.0,
		Samples:    1000,
		MaxSamples: 100000,
	}
	cfg.Chart.CacheTTL = 5 * time.Minute
	cfg.Controllers.HTTP = HTTPConfig{Enabled: true, Addr: ":8080"}
	cfg.Controllers.MQTT.PublishInterval = 1 * time.Minute
	cfg.Controllers.MODBUS = Modbusconfig{Addr: "127.0.0.1:1502", UnitID: 1}
	return cfg
}

func (c CurveConfig) validate() error {
	if c.MinTorr <= 0 {
		return fmt.Errorf("curve: min_torr must be positive, got %g", c.MinTorr)
	}
	if c.MaxTorr <= c.MinTorr {
		return fmt.Errorf("curve: max_torr %g must exceed min_torr %g", c.MaxTorr, c.MinTorr)
	}
	return nil
}

func (c Config) HTTPServerConfig() (httpctrl.Config, error) {
	if err := c.Curve.validate(); err != nil {
		return httpctrl.Config{}, err
	}
	return httpctrl.Config{
		Addr:          c.Controllers.HTTP.Addr,
		ServiceID:     c.ServiceID,
		CurveMinTorr:  c.Curve.MinTorr,
		CurveMaxTorr:  c.Curve.MaxTorr,
		CurveSamples:  c.Curve.Samples,
		ChartCacheTTL: c.Chart.CacheTTL,
	}, nil
}

func (c Config) MQTTControllerConfig() (mqttctrl.Config, error) {
	if err := c.Curve.validate(); err != nil {
		return mqttctrl.Config{}, err
	}
	mq := c.Controllers.MQTT
	return mqttctrl.Config{
		ServiceID:       c.ServiceID,
		BrokerURL:       mq.BrokerURL,
		ClientID:        mq.ClientID,
		BaseTopic:       mq.BaseTopic,
		QoS:             mq.QoS,
		RetainCatalog:   mq.RetainCatalog,
		PublishInterval: mq.PublishInterval,
		CurveMinTorr:    c.Curve.MinTorr,
		CurveMaxTorr:    c.Curve.MaxTorr,
		CurveSamples:    c.Curve.Samples,
		Username:        mq.Username,
		Password:        mq.Password,
	}, nil
}

func (c Config) ModbusControllerConfig() modbusctrl.Config {
	return modbusctrl.Config{
		ServiceID: c.ServiceID,
		Addr:      c.Controllers.MODBUS.Addr,
		UnitID:    c.Controllers.MODBUS.UnitID,
	}
}

func ApplyEnvOverrides(cfg *Config) {
	// Explicit addr prefered, else support PORT (common in containers).
	if v := os.Getenv("VAPORCURVE_HTTP_ADDR"); v != "" {
		cfg.Controllers.HTTP.Addr = v
		return
	}
	if os.Getenv("VAPORCURVE_CONTROLLERS_HTTP_ADDR") != "" {
		// the full form was already applied by the env layer
		return
	}
	if v := os.Getenv("PORT"); v != "" {
		// listen on all interfaces on that port
		cfg.Controllers.HTTP.Addr = ":" + v
	}
}
