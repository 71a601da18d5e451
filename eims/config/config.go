// Package config reads the client settings from EIMS_* environment variables.
package config

import (
	"os"
	"time"

	"github.com/alapierre/go-eims-client/eims"
	"github.com/alapierre/go-eims-client/eims/api"
	"github.com/alapierre/go-eims-client/eims/payload"
	"github.com/alapierre/go-eims-client/eims/util"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

const (
	DefaultListen        = ":8069"
	DefaultMappingTTL    = 72 * time.Hour
	DefaultKeyPath       = "private_key.key"
	DefaultCallbackPath  = "/eims/bulk-callback"
	DefaultSweepInterval = time.Duration(0)
)

type Config struct {
	Environment eims.Environment
	Endpoints   eims.Endpoints
	Credentials eims.Credentials

	KeyPath     string
	CertPath    string
	KeyPassword []byte

	// DSN of the PostgreSQL database; empty keeps everything in memory.
	DSN string

	Listen      string
	CallbackURL string

	TokenLifetime time.Duration
	Transport     api.TransportConfig

	MappingTTL    time.Duration
	SweepInterval time.Duration

	Source payload.SourceSystem
	Debug  bool
}

// Load reads the configuration. Credentials are not required here; the
// token manager reports them missing at first login.
func Load() (*Config, error) {

	var env eims.Environment
	if err := env.UnmarshalText([]byte(os.Getenv("EIMS_ENV"))); err != nil {
		return nil, errors.Wrap(err, "EIMS_ENV")
	}

	tin := os.Getenv("EIMS_TIN")

	t := api.DefaultTransportConfig()
	t.MaxAttempts = util.GetIntOrDefault("EIMS_MAX_ATTEMPTS", t.MaxAttempts)
	t.ConnectTimeout = util.GetDurationOrDefault("EIMS_CONNECT_TIMEOUT", t.ConnectTimeout)
	t.ReadTimeout = util.GetDurationOrDefault("EIMS_READ_TIMEOUT", t.ReadTimeout)
	t.RetryWait = util.GetDurationOrDefault("EIMS_RETRY_WAIT", t.RetryWait)
	t.RetryMaxWait = util.GetDurationOrDefault("EIMS_RETRY_MAX_WAIT", t.RetryMaxWait)
	if t.MaxAttempts < 1 {
		return nil, errors.Errorf("EIMS_MAX_ATTEMPTS must be at least 1, got %d", t.MaxAttempts)
	}

	c := &Config{
		Environment: env,
		Endpoints:   eims.EndpointsFromEnv(),
		Credentials: eims.Credentials{
			ClientID:     os.Getenv("EIMS_CLIENT_ID"),
			ClientSecret: os.Getenv("EIMS_CLIENT_SECRET"),
			APIKey:       os.Getenv("EIMS_API_KEY"),
			TIN:          tin,
		},
		KeyPath:       util.GetEnvOrDefault("EIMS_KEY_PATH", DefaultKeyPath),
		CertPath:      util.GetEnvOrDefault("EIMS_CERT_PATH", tin+".pem"),
		DSN:           os.Getenv("EIMS_DSN"),
		Listen:        util.GetEnvOrDefault("EIMS_LISTEN", DefaultListen),
		CallbackURL:   os.Getenv("EIMS_CALLBACK_URL"),
		TokenLifetime: util.GetDurationOrDefault("EIMS_TOKEN_LIFETIME", eims.DefaultTokenLifetime),
		Transport:     t,
		MappingTTL:    util.GetDurationOrDefault("EIMS_MAPPING_TTL", DefaultMappingTTL),
		SweepInterval: util.GetDurationOrDefault("EIMS_SWEEP_INTERVAL", DefaultSweepInterval),
		Source: payload.SourceSystem{
			SystemNumber:    os.Getenv("EIMS_SYSTEM_NUMBER"),
			SystemType:      util.GetEnvOrDefault("EIMS_SYSTEM_TYPE", "POS"),
			CashierName:     os.Getenv("EIMS_CASHIER_NAME"),
			SalesPersonName: os.Getenv("EIMS_SALES_PERSON"),
		},
		Debug: util.DebugEnabled(),
	}

	if p, ok := os.LookupEnv("EIMS_KEY_PASSWORD"); ok && p != "" {
		c.KeyPassword = []byte(p)
	}
	if c.MappingTTL <= 0 {
		return nil, errors.Errorf("EIMS_MAPPING_TTL must be positive, got %s", c.MappingTTL)
	}
	if c.TokenLifetime <= 0 {
		return nil, errors.Errorf("EIMS_TOKEN_LIFETIME must be positive, got %s", c.TokenLifetime)
	}

	return c, nil
}

// ApplyLogging sets the logrus level from the debug flag.
func (c *Config) ApplyLogging() {
	if c.Debug {
		logrus.SetLevel(logrus.DebugLevel)
		return
	}
	logrus.SetLevel(logrus.InfoLevel)
}

// PublicCallbackURL is the bulk callback address announced to the
// registry, derived from the listen address when not set.
func (c *Config) PublicCallbackURL() string {
	if c.CallbackURL != "" {
		return c.CallbackURL
	}
	host := c.Listen
	if len(host) > 0 && host[0] == ':' {
		host = "localhost" + host
	}
	return "http://" + host + DefaultCallbackPath
}
