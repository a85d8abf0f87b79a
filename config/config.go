// Package config loads runtime configuration from the environment with
// sensible devnet defaults. All keys use the ISC_ prefix, e.g.
// ISC_RPC_ENDPOINT overrides rpc.endpoint.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/viper"
)

type Config struct {
	RPC       RPCConfig       `mapstructure:"rpc"`
	Escrow    EscrowConfig    `mapstructure:"escrow"`
	PriceFeed PriceFeedConfig `mapstructure:"pricefeed"`
	Log       LogConfig       `mapstructure:"log"`
}

type RPCConfig struct {
	Endpoint   string `mapstructure:"endpoint"`
	Commitment string `mapstructure:"commitment"`
}

type EscrowConfig struct {
	ProgramID      string        `mapstructure:"program_id"`
	AppBaseURL     string        `mapstructure:"app_base_url"`
	ConfirmTimeout time.Duration `mapstructure:"confirm_timeout"`
}

// ProgramPublicKey parses and validates the configured escrow program ID.
func (c EscrowConfig) ProgramPublicKey() (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(c.ProgramID)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid escrow program id %q: %w", c.ProgramID, err)
	}
	return pk, nil
}

type PriceFeedConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads configuration from ISC_-prefixed environment variables, falling
// back to devnet defaults for anything unset.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("rpc.endpoint", "https://api.devnet.solana.com")
	v.SetDefault("rpc.commitment", "confirmed")
	v.SetDefault("escrow.program_id", "BCLTR5fuCWrMUWc75yKnG35mtrvXt6t2eLuPwCXA93oY")
	v.SetDefault("escrow.app_base_url", "https://t.me/InstantSendAppBot/InstantSendApp")
	v.SetDefault("escrow.confirm_timeout", "60s")
	v.SetDefault("pricefeed.url", "https://api.binance.com/api/v3/ticker/price")
	v.SetDefault("pricefeed.timeout", "10s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetEnvPrefix("ISC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if _, err := cfg.Escrow.ProgramPublicKey(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
