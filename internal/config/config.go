// Package config содержит логику чтения конфигурации платформы.
package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config содержит параметры конфигурации платформы.
type Config struct {
	RunAddress           string        `env:"RUN_ADDRESS"`
	DatabaseURI          string        `env:"DATABASE_URI"`
	JWTSecret            string        `env:"JWT_SECRET"`
	ReferralPercent      float64       `env:"REFERRAL_PERCENT"`
	PayoutInterval       time.Duration `env:"PAYOUT_INTERVAL"`
	CryptoDepositAddress string        `env:"CRYPTO_DEPOSIT_ADDRESS"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных
// окружения. Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envJWTSecret := cfg.JWTSecret
	envReferralPercent := cfg.ReferralPercent
	envPayoutInterval := cfg.PayoutInterval
	envCryptoAddress := cfg.CryptoDepositAddress

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTSecret, "s", "", "secret key for auth tokens")
	flag.Float64Var(&cfg.ReferralPercent, "p", 5, "default referral commission percent")
	flag.DurationVar(&cfg.PayoutInterval, "i", time.Minute, "interval between payout scans")
	flag.StringVar(&cfg.CryptoDepositAddress, "c", "", "crypto deposit address shown to users")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envJWTSecret != "" {
		cfg.JWTSecret = envJWTSecret
	}
	// Нулевое значение здесь значимо: REFERRAL_PERCENT=0 отключает
	// комиссию, поэтому проверяется сам факт установки переменной.
	if _, ok := os.LookupEnv("REFERRAL_PERCENT"); ok {
		cfg.ReferralPercent = envReferralPercent
	}
	if _, ok := os.LookupEnv("PAYOUT_INTERVAL"); ok {
		cfg.PayoutInterval = envPayoutInterval
	}
	if envCryptoAddress != "" {
		cfg.CryptoDepositAddress = envCryptoAddress
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	return cfg, nil
}
