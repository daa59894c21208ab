package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds environment-driven settings for the bot process.
// Strategy and risk parameters live in the yaml file (see Bot).
type Config struct {
	Port string

	// Brokerage
	APIEndpoint string
	APIToken    string
	AppID       string

	// Database
	DBPath string

	// Status API auth
	JWTSecret string

	// Telegram notifier (disabled when token empty)
	TelegramToken  string
	TelegramChatID int64

	// Strategy selection ("conservative" or "scalping")
	Strategy string

	// When true, orders are simulated instead of sent to the brokerage.
	DryRun bool

	BotFile string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		APIEndpoint:    getEnv("API_ENDPOINT", "wss://ws.derivws.com/websockets/v3"),
		APIToken:       os.Getenv("API_TOKEN"),
		AppID:          getEnv("APP_ID", "1089"),
		DBPath:         getEnv("DB_PATH", "./data/bot.db"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret"),
		TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
		TelegramChatID: getEnvInt64("TELEGRAM_CHAT_ID", 0),
		Strategy:       getEnv("STRATEGY", "conservative"),
		DryRun:         getEnv("DRY_RUN", "false") == "true",
		BotFile:        getEnv("BOT_CONFIG", "./bot.yaml"),
	}, nil
}

// TrailingTier maps a profit-percent trigger to a trail-percent distance.
type TrailingTier struct {
	TriggerPct float64 `yaml:"trigger_pct"`
	TrailPct   float64 `yaml:"trail_pct"`
}

// ConservativeParams tunes the top-down structure strategy.
type ConservativeParams struct {
	SwingLookback    int     `yaml:"swing_lookback"`
	ADXFloor         float64 `yaml:"adx_floor"`
	RSIBuyMin        float64 `yaml:"rsi_buy_min"`
	RSIBuyMax        float64 `yaml:"rsi_buy_max"`
	RSISellMin       float64 `yaml:"rsi_sell_min"`
	RSISellMax       float64 `yaml:"rsi_sell_max"`
	MinRiskReward    float64 `yaml:"min_rr"`
	LevelFallbackPct float64 `yaml:"level_fallback_pct"`
	MaxSLDistancePct float64 `yaml:"max_sl_distance_pct"`
	MinTPDistancePct float64 `yaml:"min_tp_distance_pct"`
}

// ScalpingParams tunes the EMA-cross strategy.
type ScalpingParams struct {
	EMAFast        int                `yaml:"ema_fast"`
	EMASlow        int                `yaml:"ema_slow"`
	ADXFloor       float64            `yaml:"adx_floor"`
	ADXCeiling     float64            `yaml:"adx_ceiling"`
	SymbolADXFloor map[string]float64 `yaml:"symbol_adx_floor"`
	RSIUpMin       float64            `yaml:"rsi_up_min"`
	RSIUpMax       float64            `yaml:"rsi_up_max"`
	RSIDownMin     float64            `yaml:"rsi_down_min"`
	RSIDownMax     float64            `yaml:"rsi_down_max"`
	EntryDriftATR  float64            `yaml:"entry_drift_atr"`
	TPATRMult      float64            `yaml:"tp_atr_mult"`
	SLATRMult      float64            `yaml:"sl_atr_mult"`
	MinRiskReward  float64            `yaml:"min_rr"`
}

// RiskParams are shared admission-control settings.
type RiskParams struct {
	MaxTradesPerDay     int     `yaml:"max_trades_per_day"`
	CooldownSec         int     `yaml:"cooldown_sec"`
	LossCooldownSec     int     `yaml:"loss_cooldown_sec"`
	CircuitBreakLosses  int     `yaml:"circuit_break_losses"`
	CircuitBreakRestSec int     `yaml:"circuit_break_rest_sec"`
	MaxRiskPct          float64 `yaml:"max_risk_pct"`
	FixedLot            float64 `yaml:"fixed_lot"`
	PerSymbolCeiling    int     `yaml:"per_symbol_ceiling"`
	RunawayMaxTrades    int     `yaml:"runaway_max_trades"`
	RunawayWindowSec    int     `yaml:"runaway_window_sec"`
}

// TradeParams govern the open-position lifecycle.
type TradeParams struct {
	TrailingTiers        []TrailingTier `yaml:"trailing_tiers"`
	BreakevenTriggerPct  float64        `yaml:"breakeven_trigger_pct"`
	BreakevenLossCapPct  float64        `yaml:"breakeven_loss_cap_pct"`
	StagnationWindowSec  int            `yaml:"stagnation_window_sec"`
	StagnationLossPct    float64        `yaml:"stagnation_loss_pct"`
	StagnationGraceRR    float64        `yaml:"stagnation_grace_rr"`
	StagnationGraceSec   int            `yaml:"stagnation_grace_sec"`
	EarlyExitWindowSec   int            `yaml:"early_exit_window_sec"`
	EarlyExitLossPct     float64        `yaml:"early_exit_loss_pct"`
	HardTimeoutSec       int            `yaml:"hard_timeout_sec"`
	BuyRetries           int            `yaml:"buy_retries"`
	MaxPriceDriftPct     float64        `yaml:"max_price_drift_pct"`
	PendingWatchdogSec   int            `yaml:"pending_watchdog_sec"`
	MonitorIntervalSec   int            `yaml:"monitor_interval_sec"`
}

// InstrumentSpec mirrors market.Instrument for yaml loading.
type InstrumentSpec struct {
	Symbol     string  `yaml:"symbol"`
	Multiplier int     `yaml:"multiplier"`
	TickSize   float64 `yaml:"tick_size"`
	TickValue  float64 `yaml:"tick_value"`
	MinLot     float64 `yaml:"min_lot"`
	MaxLot     float64 `yaml:"max_lot"`
	LotStep    float64 `yaml:"lot_step"`
}

// Bot is the immutable per-run parameter set loaded from yaml.
type Bot struct {
	Symbols         []string           `yaml:"symbols"`
	BlockedSymbols  []string           `yaml:"blocked_symbols"`
	PollIntervalSec int                `yaml:"poll_interval_sec"`
	Conservative    ConservativeParams `yaml:"conservative"`
	Scalping        ScalpingParams     `yaml:"scalping"`
	Risk            RiskParams         `yaml:"risk"`
	Trade           TradeParams        `yaml:"trade"`
	Instruments     []InstrumentSpec   `yaml:"instruments"`
}

// LoadBot parses the yaml parameter file, applies defaults and normalizes
// the trailing tier table (ordered highest trigger first).
func LoadBot(path string) (*Bot, error) {
	b := DefaultBot()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read bot config: %w", err)
			}
		} else if err := yaml.Unmarshal(raw, b); err != nil {
			return nil, fmt.Errorf("parse bot config: %w", err)
		}
	}
	sort.Slice(b.Trade.TrailingTiers, func(i, j int) bool {
		return b.Trade.TrailingTiers[i].TriggerPct > b.Trade.TrailingTiers[j].TriggerPct
	})
	return b, nil
}

// DefaultBot returns the built-in parameter set.
func DefaultBot() *Bot {
	return &Bot{
		Symbols:         []string{"R_10", "R_25", "R_50", "R_75", "R_100"},
		PollIntervalSec: 30,
		Conservative: ConservativeParams{
			SwingLookback:    3,
			ADXFloor:         25,
			RSIBuyMin:        58,
			RSIBuyMax:        75,
			RSISellMin:       25,
			RSISellMax:       42,
			MinRiskReward:    1.5,
			LevelFallbackPct: 0.5,
			MaxSLDistancePct: 1.0,
			MinTPDistancePct: 0.15,
		},
		Scalping: ScalpingParams{
			EMAFast:       9,
			EMASlow:       21,
			ADXFloor:      18,
			ADXCeiling:    34,
			RSIUpMin:      54,
			RSIUpMax:      72,
			RSIDownMin:    28,
			RSIDownMax:    48,
			EntryDriftATR: 0.35,
			TPATRMult:     3.0,
			SLATRMult:     2.0,
			MinRiskReward: 1.5,
		},
		Risk: RiskParams{
			MaxTradesPerDay:     80,
			CooldownSec:         30,
			LossCooldownSec:     180,
			CircuitBreakLosses:  3,
			CircuitBreakRestSec: 10800,
			MaxRiskPct:          2.0,
			FixedLot:            1.0,
			PerSymbolCeiling:    1,
			RunawayMaxTrades:    10,
			RunawayWindowSec:    600,
		},
		Trade: TradeParams{
			TrailingTiers: []TrailingTier{
				{TriggerPct: 25, TrailPct: 8},
				{TriggerPct: 40, TrailPct: 12},
			},
			BreakevenTriggerPct: 8,
			BreakevenLossCapPct: 5,
			StagnationWindowSec: 75,
			StagnationLossPct:   3.0,
			StagnationGraceRR:   2.5,
			StagnationGraceSec:  45,
			EarlyExitWindowSec:  20,
			EarlyExitLossPct:    1.5,
			HardTimeoutSec:      600,
			BuyRetries:          2,
			MaxPriceDriftPct:    10,
			PendingWatchdogSec:  90,
			MonitorIntervalSec:  2,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return i
		}
	}
	return def
}
