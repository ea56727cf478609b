package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"github.com/nspcc-dev/payment-contract/relay"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const envPrefix = "PAYMENT_RELAY"

// config holds relay settings read from the config file and environment
// (e.g. PAYMENT_RELAY_WALLET_PASSWORD overrides wallet.password).
type config struct {
	RPCEndpoint    string
	RequestTimeout time.Duration

	WalletPath     string
	WalletAddress  util.Uint160
	WalletPassword string

	Contract util.Uint160

	PollInterval time.Duration
	BatchSize    int
	JournalDir   string

	ListenAddress string
	LogLevel      string
}

func loadConfig(path string) (*config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc.endpoint", "")
	v.SetDefault("rpc.timeout", 15*time.Second)
	v.SetDefault("wallet.path", "")
	v.SetDefault("wallet.address", "")
	v.SetDefault("wallet.password", "")
	v.SetDefault("contract", "")
	v.SetDefault("relay.poll_interval", relay.DefaultPollInterval)
	v.SetDefault("relay.batch_size", relay.DefaultBatchSize)
	v.SetDefault("relay.journal", "payment-relay.journal")
	v.SetDefault("listen", ":9100")
	v.SetDefault("log_level", "info")

	if path != "" {
		v.SetConfigFile(path)
		err := v.ReadInConfig()
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &config{
		RPCEndpoint:    v.GetString("rpc.endpoint"),
		RequestTimeout: v.GetDuration("rpc.timeout"),
		WalletPath:     v.GetString("wallet.path"),
		WalletPassword: v.GetString("wallet.password"),
		PollInterval:   v.GetDuration("relay.poll_interval"),
		BatchSize:      v.GetInt("relay.batch_size"),
		JournalDir:     v.GetString("relay.journal"),
		ListenAddress:  v.GetString("listen"),
		LogLevel:       v.GetString("log_level"),
	}

	var err error

	// unparsable durations are read as zero
	switch {
	case cfg.RPCEndpoint == "":
		return nil, errors.New("missing rpc.endpoint")
	case cfg.RequestTimeout <= 0:
		return nil, fmt.Errorf("non-positive rpc.timeout %v", cfg.RequestTimeout)
	case cfg.WalletPath == "":
		return nil, errors.New("missing wallet.path")
	case cfg.PollInterval <= 0:
		return nil, fmt.Errorf("non-positive relay.poll_interval %v", cfg.PollInterval)
	case cfg.BatchSize <= 0:
		return nil, fmt.Errorf("non-positive relay.batch_size %d", cfg.BatchSize)
	case cfg.JournalDir == "":
		return nil, errors.New("missing relay.journal")
	}

	if s := v.GetString("wallet.address"); s != "" {
		cfg.WalletAddress, err = address.StringToUint160(s)
		if err != nil {
			return nil, fmt.Errorf("invalid wallet.address: %w", err)
		}
	}

	cfg.Contract, err = parseContract(v.GetString("contract"))
	if err != nil {
		return nil, fmt.Errorf("invalid contract: %w", err)
	}

	return cfg, nil
}

// parseContract accepts either Neo address or hex-encoded LE script hash.
func parseContract(s string) (util.Uint160, error) {
	if s == "" {
		return util.Uint160{}, errors.New("missing value")
	}

	if h, err := address.StringToUint160(s); err == nil {
		return h, nil
	}

	return util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
