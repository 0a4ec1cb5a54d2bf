package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SelectedProvider != "gemini" || cfg.SelectedModel != "gemini-1.5-flash" {
		t.Errorf("unexpected defaults: %s/%s", cfg.SelectedProvider, cfg.SelectedModel)
	}
	if cfg.MaxCalls != 50 || cfg.MaxCostUSD != 1.0 {
		t.Errorf("unexpected budget defaults: %d/%f", cfg.MaxCalls, cfg.MaxCostUSD)
	}
	if cfg.ReportPath != "compliance-report.json" {
		t.Errorf("unexpected report path: %s", cfg.ReportPath)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir := filepath.Join(home, ".complyscan")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatal(err)
	}
	content := "selected_model: gemini-1.5-pro\nmax_calls: 5\nmax_cost_usd: 0.25\nworkers: 8\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SelectedModel != "gemini-1.5-pro" {
		t.Errorf("model = %s", cfg.SelectedModel)
	}
	if cfg.MaxCalls != 5 || cfg.MaxCostUSD != 0.25 || cfg.Workers != 8 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	// Unset fields keep their defaults.
	if cfg.ReportPath != "compliance-report.json" {
		t.Errorf("report path default lost: %s", cfg.ReportPath)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("COMPLYSCAN_MODEL", "gemini-2.0-flash")
	t.Setenv("COMPLYSCAN_MAX_CALLS", "3")
	t.Setenv("COMPLYSCAN_MAX_COST_USD", "0.10")
	t.Setenv("COMPLYSCAN_API_KEY", "env-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SelectedModel != "gemini-2.0-flash" {
		t.Errorf("model override lost: %s", cfg.SelectedModel)
	}
	if cfg.MaxCalls != 3 || cfg.MaxCostUSD != 0.10 {
		t.Errorf("budget overrides lost: %d/%f", cfg.MaxCalls, cfg.MaxCostUSD)
	}
	if cfg.GetAPIKey("gemini") != "env-key" {
		t.Errorf("api key override lost")
	}
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	cfg.SetAPIKey("gemini", "secret")
	cfg.MaxCalls = 7
	if err := SaveConfig(cfg); err != nil {
		t.Fatal(err)
	}

	path, err := GetConfigPath()
	if err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("config file mode = %v, want 0600", info.Mode().Perm())
	}

	round, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if round.GetAPIKey("gemini") != "secret" || round.MaxCalls != 7 {
		t.Errorf("reload mismatch: %+v", round)
	}
}

func TestInPipeline(t *testing.T) {
	t.Setenv("CI", "")
	t.Setenv("COMPLYSCAN_PIPELINE", "")
	cfg := defaults()
	if cfg.InPipeline() {
		t.Error("not in a pipeline")
	}
	t.Setenv("CI", "true")
	if !cfg.InPipeline() {
		t.Error("CI=true must mean pipeline")
	}
	t.Setenv("CI", "")
	t.Setenv("COMPLYSCAN_PIPELINE", "1")
	if !cfg.InPipeline() {
		t.Error("COMPLYSCAN_PIPELINE=1 must mean pipeline")
	}
}
