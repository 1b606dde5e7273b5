// Package config loads the gateway settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/vitwit/x402-gateway/clients"
	"github.com/vitwit/x402-gateway/gateway"
	"github.com/vitwit/x402-gateway/types"
	"github.com/vitwit/x402-gateway/utils"
)

// Config is built once at startup and never mutated.
type Config struct {
	PayTo             string `env:"X402_PAY_TO" validate:"required"`
	Network           string `env:"X402_NETWORK,default=base-sepolia" validate:"required"`
	Asset             string `env:"X402_ASSET,default=USDC" validate:"required"`
	FacilitatorURL    string `env:"X402_FACILITATOR_URL,default=https://x402.org/facilitator" validate:"required,url"`
	FacilitatorAPIKey string `env:"X402_FACILITATOR_API_KEY"`
	Settle            bool   `env:"X402_SETTLE,default=true"`

	WeatherPath  string `env:"WEATHER_PATH,default=/weather" validate:"required,startswith=/"`
	WeatherPrice string `env:"WEATHER_PRICE,default=$0.001" validate:"required"`
	TEEDemoPath  string `env:"TEE_DEMO_PATH,default=/tee-demo" validate:"required,startswith=/"`
	TEEDemoPrice string `env:"TEE_DEMO_PRICE,default=$0.01" validate:"required"`

	Host          string        `env:"HOST"`
	Port          int           `env:"PORT,default=4021" validate:"gte=0,lte=65535"`
	ShutdownGrace time.Duration `env:"SHUTDOWN_GRACE,default=10s" validate:"gt=0"`
	VerifyTimeout time.Duration `env:"VERIFY_TIMEOUT,default=30s" validate:"gt=0"`
	LogLevel      string        `env:"LOG_LEVEL,default=info" validate:"oneof=debug info warn error"`

	TEEAPIKey      string        `env:"TEE_API_KEY"`
	TEEBaseURL     string        `env:"TEE_API_BASE_URL,default=https://api.redpill.ai/v1" validate:"required,url"`
	TEEModel       string        `env:"TEE_MODEL,default=phala/deepseek-chat-v3-0324" validate:"required"`
	TEESigningAlgo string        `env:"TEE_SIGNING_ALGO,default=ecdsa" validate:"oneof=ecdsa ed25519"`
	TEETimeout     time.Duration `env:"TEE_TIMEOUT,default=60s" validate:"gt=0"`
}

// Load reads ./.env when present and then the process environment.
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit dotenv path. Variables already set in the
// environment win over the file.
func LoadFile(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, &types.X402Error{Code: types.ErrConfiguration, Message: "decode environment", Err: err}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks field constraints and the payment network.
func (c *Config) Validate() error {
	if err := utils.ValidateStruct(c); err != nil {
		return &types.X402Error{Code: types.ErrConfiguration, Message: "invalid configuration", Err: err}
	}
	if err := utils.ValidateNetwork(c.Network); err != nil {
		return &types.X402Error{Code: types.ErrConfiguration, Message: "invalid X402_NETWORK", Err: err}
	}
	return nil
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, fmt.Sprint(c.Port))
}

func (c *Config) X402Config() *types.X402Config {
	return &types.X402Config{
		FacilitatorURL:    c.FacilitatorURL,
		FacilitatorAPIKey: c.FacilitatorAPIKey,
		DefaultTimeout:    c.VerifyTimeout,
		Settle:            c.Settle,
		LogLevel:          c.LogLevel,
	}
}

func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		Addr:          c.Addr(),
		ShutdownGrace: c.ShutdownGrace,
	}
}

func (c *Config) TEEConfig() clients.TEEConfig {
	return clients.TEEConfig{
		BaseURL:     c.TEEBaseURL,
		APIKey:      c.TEEAPIKey,
		Model:       c.TEEModel,
		SigningAlgo: c.TEESigningAlgo,
		HTTPClient:  &http.Client{Timeout: c.TEETimeout},
	}
}
