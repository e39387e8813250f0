package config

import (
	"os"
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_DefaultDepositAndDuration(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	unsetEnvWithCleanup(t, "DEPOSIT_AMOUNT")
	unsetEnvWithCleanup(t, "BORROW_DURATION_HOURS")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DepositAmount != 20000 {
		t.Fatalf("expected default DepositAmount 20000, got %d", cfg.DepositAmount)
	}
	if cfg.BorrowDurationHours != 24 {
		t.Fatalf("expected default BorrowDurationHours 24, got %d", cfg.BorrowDurationHours)
	}
	if cfg.OnTimePoints != 50 || cfg.OverduePoints != 20 {
		t.Fatalf("expected default points 50/20, got %d/%d", cfg.OnTimePoints, cfg.OverduePoints)
	}
}

func TestLoadConfig_EnvOverridesDeposit(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DEPOSIT_AMOUNT", "30000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DepositAmount != 30000 {
		t.Fatalf("expected DepositAmount from env, got %d", cfg.DepositAmount)
	}
}

func TestLoadConfig_NonPositiveDepositFallsBackToDefault(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DEPOSIT_AMOUNT", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DepositAmount != 20000 {
		t.Fatalf("expected coerced default DepositAmount 20000, got %d", cfg.DepositAmount)
	}
}

func TestLoadConfig_CommissionPercentClamped(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	setEnvWithCleanup(t, "DEFAULT_COMMISSION_PERCENT", "150")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.DefaultCommissionPercent != 100 {
		t.Fatalf("expected commission percent capped at 100, got %f", cfg.DefaultCommissionPercent)
	}
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
