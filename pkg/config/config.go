package config

import (
	"io"
	"os"
	"time"

	"github.com/Krajiyah/ble-dht/pkg/dht"
	"github.com/Krajiyah/ble-dht/pkg/models"
	"github.com/google/uuid"
	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ReportConfig is the optional Report Reference attached to the reading characteristic
type ReportConfig struct {
	Enabled bool              `yaml:"enabled" default:"false"`
	ID      uint8             `yaml:"id" default:"1"`
	Type    models.ReportType `yaml:"type" default:"1"`
}

// Config holds the settings shared by the DHT peripheral and central
type Config struct {
	Name           string        `yaml:"name" default:"DHT"`
	DeviceID       int           `yaml:"device_id" default:"0"`
	DialerTimeout  time.Duration `yaml:"dialer_timeout" default:"5s"`
	LogLevel       string        `yaml:"log_level" default:"info"`
	SampleInterval time.Duration `yaml:"sample_interval" default:"2s"`
	Notifications  bool          `yaml:"notifications" default:"true"`
	Report         ReportConfig  `yaml:"report"`

	BaseUUID    string `yaml:"base_uuid" default:"00000000-1212-EFDE-1523-785FEABCD123"`
	ServiceUUID uint16 `yaml:"service_uuid" default:"5411"`
	CharUUID    uint16 `yaml:"char_uuid" default:"5412"`

	ScanTimeout time.Duration `yaml:"scan_timeout" default:"10s"`
	PeerAddr    string        `yaml:"peer_addr"`
}

// Default returns a Config with every default applied
func Default() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load applies defaults, then overrides them with the YAML file at path.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config issue")
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "parse config issue")
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the stack could not honour
func (c *Config) Validate() error {
	if c.Name == "" {
		return errors.New("name must not be empty")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if c.SampleInterval <= 0 {
		return errors.Errorf("sample_interval must be positive, got %s", c.SampleInterval)
	}
	if _, err := c.Base(); err != nil {
		return err
	}
	if c.ServiceUUID == c.CharUUID {
		return errors.Errorf("service_uuid and char_uuid must differ (0x%04X)", c.ServiceUUID)
	}
	if c.Report.Enabled && (c.Report.Type < models.InputReport || c.Report.Type > models.FeatureReport) {
		return errors.Errorf("unknown report type %d", c.Report.Type)
	}
	return nil
}

// Base parses BaseUUID
func (c *Config) Base() (uuid.UUID, error) {
	u, err := uuid.Parse(c.BaseUUID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, "base_uuid")
	}
	if u == uuid.Nil {
		return uuid.Nil, errors.New("base_uuid must not be nil")
	}
	return u, nil
}

// ServiceConfig builds the dht.Config of the reading service
func (c *Config) ServiceConfig(initial models.Reading, h dht.WriteHandler) (*dht.Config, error) {
	base, err := c.Base()
	if err != nil {
		return nil, err
	}
	value, err := initial.Data()
	if err != nil {
		return nil, errors.Wrap(err, "initial reading issue")
	}
	cfg := &dht.Config{
		WriteHandler:          h,
		InitialValue:          value,
		MaxLength:             models.ReadingSize,
		NotificationSupported: c.Notifications,
		BaseUUID:              base,
		ServiceUUID:           c.ServiceUUID,
		CharUUID:              c.CharUUID,
	}
	if c.Report.Enabled {
		cfg.ReportReference = &models.ReportReference{ID: c.Report.ID, Type: c.Report.Type}
	}
	return cfg, nil
}

// NewLogger returns a text logger at c.LogLevel with RFC3339 timestamps
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log_level")
	}
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
