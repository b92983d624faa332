package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// RefDataPath is the path to the JSON file holding chain/asset/pool reference data.
	RefDataPath string

	// SignerPrivateKey is the hex-encoded private key used for signing transactions.
	SignerPrivateKey string

	// GasLimitAdjustment is the multiplier applied to estimated gas limits before
	// a swap transaction is submitted, guarding against under-estimation reverts.
	GasLimitAdjustment float64

	// DefaultSlippagePercent is the slippage tolerance applied when the user has
	// not chosen one explicitly.
	DefaultSlippagePercent float64

	// FaucetAmount is the fixed amount of test tokens minted per faucet request.
	FaucetAmount float64

	// FaucetGasLimit is the fixed gas limit attached to faucet mint/wrap calls.
	FaucetGasLimit uint64
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	RefDataPath, err = getEnv("SWAPD_REFDATA_PATH")
	if err != nil {
		return err
	}

	SignerPrivateKey, err = getEnv("SWAPD_SIGNER_PRIVATE_KEY")
	if err != nil {
		return err
	}

	GasLimitAdjustment, err = getEnvAsFloat64("SWAPD_GAS_LIMIT_ADJUSTMENT")
	if err != nil {
		return err
	}
	if GasLimitAdjustment < 1 {
		return errors.New("SWAPD_GAS_LIMIT_ADJUSTMENT must be >= 1")
	}

	DefaultSlippagePercent, err = getEnvAsFloat64("SWAPD_DEFAULT_SLIPPAGE_PERCENT")
	if err != nil {
		return err
	}
	if DefaultSlippagePercent <= 0 || DefaultSlippagePercent > 100 {
		return errors.New("SWAPD_DEFAULT_SLIPPAGE_PERCENT must be in (0, 100]")
	}

	FaucetAmount, err = getEnvAsFloat64("SWAPD_FAUCET_AMOUNT")
	if err != nil {
		return err
	}

	FaucetGasLimit, err = getEnvAsUint64("SWAPD_FAUCET_GAS_LIMIT")
	if err != nil {
		return err
	}

	log.Debug().
		Str("RefDataPath", RefDataPath).
		Float64("GasLimitAdjustment", GasLimitAdjustment).
		Float64("DefaultSlippagePercent", DefaultSlippagePercent).
		Msg("Configuration loaded successfully.")

	return nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsFloat64 retrieves an environment variable as a float64. Returns error if not set or invalid.
func getEnvAsFloat64(key string) (float64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid float64, got: " + valueStr)
	}
	return value, nil
}
