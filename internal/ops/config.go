// Package ops loads and validates the runtime configuration.
package ops

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/provider/retail"
	"main/internal/provider/terminal"
	"main/internal/risk"
	"main/internal/schema"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Accounts  AccountsConfig  `json:"accounts"`
	Terminal  TerminalConfig  `json:"terminal"`
	Retail    RetailConfig    `json:"retail"`
	Risk      risk.Config     `json:"risk"`
	Regimes   []RegimeConfig  `json:"regimes"`
	Cooldown  CooldownConfig  `json:"cooldown"`
	Bus       BusConfig       `json:"bus"`
	Audit     AuditConfig     `json:"audit"`
	Profiling ProfilingConfig `json:"profiling"`
}

// AccountsConfig names the venue accounts and the startup execution target.
type AccountsConfig struct {
	Terminal    string `json:"terminal"`
	Paper       string `json:"paper"`
	Live        string `json:"live"`
	InitialMode string `json:"initialMode"`
}

// TerminalConfig describes the proprietary terminal connection.
type TerminalConfig struct {
	BaseURL           string `json:"baseUrl"`
	StreamURL         string `json:"streamUrl"`
	AccessID          string `json:"accessId"`
	SecretKey         string `json:"secretKey"`
	ConnectTimeoutSec int    `json:"connectTimeoutSec"`
}

// RetailConfig describes the brokerage connection. Paper and live share
// credentials and differ only by endpoint.
type RetailConfig struct {
	APIKey            string `json:"apiKey"`
	APISecret         string `json:"apiSecret"`
	PaperBaseURL      string `json:"paperBaseUrl"`
	LiveBaseURL       string `json:"liveBaseUrl"`
	ConnectTimeoutSec int    `json:"connectTimeoutSec"`
}

// RegimeConfig describes one time-of-day trading phase.
type RegimeConfig struct {
	Name         string  `json:"name"`
	TolerancePct float64 `json:"tolerancePct"`
	AllowDerisk  bool    `json:"allowDerisk"`
	LateSession  bool    `json:"lateSession"`
}

// CooldownConfig sets the per-symbol decision debounce.
type CooldownConfig struct {
	IntervalSec int `json:"intervalSec"`
}

// BusConfig sets the event queue capacity.
type BusConfig struct {
	Capacity int `json:"capacity"`
}

// AuditConfig enables the database recorder.
type AuditConfig struct {
	Enable bool   `json:"enable"`
	DSN    string `json:"dsn"`
}

// ProfilingConfig enables continuous profiling.
type ProfilingConfig struct {
	Enable        bool   `json:"enable"`
	ServerAddress string `json:"serverAddress"`
	AppName       string `json:"appName"`
}

// Accounts holds the resolved account identifiers.
type Accounts struct {
	Terminal    schema.AccountID
	Paper       schema.AccountID
	Live        schema.AccountID
	InitialMode schema.Mode
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Accounts    Accounts
	Terminal    terminal.Config
	RetailPaper retail.Config
	RetailLive  retail.Config
	Risk        risk.Config
	Regimes     []risk.Regime
	Cooldown    time.Duration
	BusCapacity int
	Audit       AuditConfig
	Profiling   ProfilingConfig
}

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return resolve(cfg)
}

func resolve(cfg FileConfig) (Loaded, error) {
	accounts, err := resolveAccounts(cfg.Accounts)
	if err != nil {
		return Loaded{}, err
	}
	if err := validateRisk(cfg.Risk); err != nil {
		return Loaded{}, err
	}
	regimes, err := resolveRegimes(cfg.Regimes)
	if err != nil {
		return Loaded{}, err
	}

	cooldown := time.Duration(cfg.Cooldown.IntervalSec) * time.Second
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	capacity := cfg.Bus.Capacity
	if capacity <= 0 {
		capacity = 1024
	}
	if cfg.Audit.Enable && cfg.Audit.DSN == "" {
		return Loaded{}, fmt.Errorf("audit enabled without dsn")
	}

	terminalTimeout := time.Duration(cfg.Terminal.ConnectTimeoutSec) * time.Second
	retailTimeout := time.Duration(cfg.Retail.ConnectTimeoutSec) * time.Second
	return Loaded{
		Accounts: accounts,
		Terminal: terminal.Config{
			BaseURL:        cfg.Terminal.BaseURL,
			StreamURL:      cfg.Terminal.StreamURL,
			AccessID:       cfg.Terminal.AccessID,
			SecretKey:      cfg.Terminal.SecretKey,
			ConnectTimeout: terminalTimeout,
		},
		RetailPaper: retail.Config{
			APIKey:         cfg.Retail.APIKey,
			APISecret:      cfg.Retail.APISecret,
			BaseURL:        cfg.Retail.PaperBaseURL,
			ConnectTimeout: retailTimeout,
		},
		RetailLive: retail.Config{
			APIKey:         cfg.Retail.APIKey,
			APISecret:      cfg.Retail.APISecret,
			BaseURL:        cfg.Retail.LiveBaseURL,
			ConnectTimeout: retailTimeout,
		},
		Risk:        cfg.Risk,
		Regimes:     regimes,
		Cooldown:    cooldown,
		BusCapacity: capacity,
		Audit:       cfg.Audit,
		Profiling:   cfg.Profiling,
	}, nil
}

func resolveAccounts(cfg AccountsConfig) (Accounts, error) {
	if cfg.Terminal == "" {
		return Accounts{}, fmt.Errorf("accounts.terminal is empty")
	}
	if cfg.Paper == "" {
		return Accounts{}, fmt.Errorf("accounts.paper is empty")
	}
	mode, err := parseMode(cfg.InitialMode)
	if err != nil {
		return Accounts{}, err
	}
	if mode == schema.ModeLive && cfg.Live == "" {
		return Accounts{}, fmt.Errorf("initial mode live without accounts.live")
	}
	return Accounts{
		Terminal:    schema.AccountID(cfg.Terminal),
		Paper:       schema.AccountID(cfg.Paper),
		Live:        schema.AccountID(cfg.Live),
		InitialMode: mode,
	}, nil
}

func parseMode(name string) (schema.Mode, error) {
	switch name {
	case "", "paper":
		return schema.ModePaper, nil
	case "terminal":
		return schema.ModeTerminal, nil
	case "live":
		return schema.ModeLive, nil
	default:
		return schema.ModeUnknown, fmt.Errorf("unknown mode: %s", name)
	}
}

func validateRisk(cfg risk.Config) error {
	if cfg.HardCapPct <= 0 {
		return fmt.Errorf("risk.hardCapPct must be > 0")
	}
	if cfg.IntradayCeilingPct < 0 || cfg.SoftCeilingPct < 0 || cfg.PreCloseWindowMin < 0 {
		return fmt.Errorf("risk limits must be >= 0")
	}
	for bucket, capPct := range cfg.BucketCapPct {
		if capPct < 0 {
			return fmt.Errorf("bucket cap for %s must be >= 0", bucket)
		}
	}
	return nil
}

func resolveRegimes(cfgs []RegimeConfig) ([]risk.Regime, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("at least one regime is required")
	}
	seen := make(map[string]struct{}, len(cfgs))
	regimes := make([]risk.Regime, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("regime name is empty")
		}
		if _, ok := seen[cfg.Name]; ok {
			return nil, fmt.Errorf("duplicate regime: %s", cfg.Name)
		}
		seen[cfg.Name] = struct{}{}
		if cfg.TolerancePct <= 0 {
			return nil, fmt.Errorf("regime %s tolerancePct must be > 0", cfg.Name)
		}
		regimes = append(regimes, risk.Regime{
			Name:         cfg.Name,
			TolerancePct: cfg.TolerancePct,
			AllowDerisk:  cfg.AllowDerisk,
			LateSession:  cfg.LateSession,
		})
	}
	return regimes, nil
}

// Watch polls the config file's mtime and invokes onChange with each
// successfully reloaded configuration. A file that fails to load keeps the
// previous configuration active.
func Watch(ctx context.Context, path string, interval time.Duration, onChange func(Loaded)) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	var lastMod time.Time
	if info, err := os.Stat(path); err == nil {
		lastMod = info.ModTime()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			if !info.ModTime().After(lastMod) {
				continue
			}
			lastMod = info.ModTime()
			loaded, err := Load(path)
			if err != nil {
				logs.Errorf("config reload from %s failed, err: %+v", path, err)
				continue
			}
			logs.Infof("config reloaded from %s", path)
			onChange(loaded)
		}
	}
}
