// Package config loads bot settings from a yaml file and secrets from the environment.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/autotrade/internal/domain"
	"gopkg.in/yaml.v3"
)

// Config typed bot configuration.
type Config struct {
	Pair     domain.Pair
	Location *time.Location
	DryRun   bool

	Schedule  ScheduleConfig
	Market    MarketConfig
	LLM       LLMConfig
	Execution ExecutionConfig
	Ledger    LedgerConfig
	Web       WebConfig
	Redis     RedisConfig
	Influx    InfluxConfig
	Trace     TraceConfig
	Log       LogConfig

	DecisionsWALDir string
	Secrets         Secrets
}

// ScheduleConfig times of day are "HH:MM" in Location.
type ScheduleConfig struct {
	DecisionTimes   []string
	SnapshotMinutes []int
	RunOnStart      bool
}

// MacroSymbol auxiliary index to fetch.
type MacroSymbol struct {
	Name   string `yaml:"name"`
	Symbol string `yaml:"symbol"`
}

type MarketConfig struct {
	DailyCandles    int
	HourlyCandles   int
	DailyTail       int
	HourlyTail      int
	OrderBookWindow time.Duration
	NewsQuery       string
	NewsLimit       int
	MacroSymbols    []MacroSymbol
	MacroRange      string
	MacroInterval   string
	UpbitURL        string
	FearGreedURL    string
	SerpAPIURL      string
	YahooURL        string
	RequestTimeout  time.Duration
}

type LLMConfig struct {
	APIURL          string
	Model           string
	InstructionRole string
	ReasoningEffort string
	Timeout         time.Duration
}

type ExecutionConfig struct {
	FeeMargin       decimal.Decimal
	MinNotional     decimal.Decimal
	SettlementDelay time.Duration
	SimulateKRW     decimal.Decimal
}

type LedgerConfig struct {
	Path        string
	HistoryDays int
}

type WebConfig struct {
	Addr       string
	TLSDomains []string
	CertCache  string
}

type RedisConfig struct {
	Addr string
	DB   int
}

type InfluxConfig struct {
	URL    string
	Org    string
	Bucket string
}

type TraceConfig struct {
	Enabled bool
	File    string
}

type LogConfig struct {
	Level string
	File  string
}

// Secrets values read from the environment, never from yaml.
type Secrets struct {
	UpbitAccessKey string
	UpbitSecretKey string
	OpenAIAPIKey   string
	SerpAPIKey     string
	TelegramToken  string
	TelegramChatID int64
	InfluxToken    string
	RedisPassword  string
}

// ConfigTmp raw yaml representation; decimals and durations are kept as strings.
type ConfigTmp struct {
	Pair     string `yaml:"pair"`
	Timezone string `yaml:"timezone"`
	DryRun   bool   `yaml:"dry_run"`

	Schedule struct {
		DecisionTimes   []string `yaml:"decision_times,omitempty"`
		SnapshotMinutes []int    `yaml:"snapshot_minutes,omitempty"`
		RunOnStart      *bool    `yaml:"run_on_start,omitempty"`
	} `yaml:"schedule"`

	Market struct {
		DailyCandles    int           `yaml:"daily_candles,omitempty"`
		HourlyCandles   int           `yaml:"hourly_candles,omitempty"`
		DailyTail       int           `yaml:"daily_tail,omitempty"`
		HourlyTail      int           `yaml:"hourly_tail,omitempty"`
		OrderBookWindow string        `yaml:"orderbook_window,omitempty"`
		NewsQuery       string        `yaml:"news_query,omitempty"`
		NewsLimit       int           `yaml:"news_limit,omitempty"`
		MacroSymbols    []MacroSymbol `yaml:"macro_symbols,omitempty"`
		MacroRange      string        `yaml:"macro_range,omitempty"`
		MacroInterval   string        `yaml:"macro_interval,omitempty"`
		UpbitURL        string        `yaml:"upbit_url,omitempty"`
		FearGreedURL    string        `yaml:"fear_greed_url,omitempty"`
		SerpAPIURL      string        `yaml:"serpapi_url,omitempty"`
		YahooURL        string        `yaml:"yahoo_url,omitempty"`
		RequestTimeout  string        `yaml:"request_timeout,omitempty"`
	} `yaml:"market"`

	LLM struct {
		APIURL          string `yaml:"api_url,omitempty"`
		Model           string `yaml:"model,omitempty"`
		InstructionRole string `yaml:"instruction_role,omitempty"`
		ReasoningEffort string `yaml:"reasoning_effort,omitempty"`
		Timeout         string `yaml:"timeout,omitempty"`
	} `yaml:"llm"`

	Execution struct {
		FeeMargin       string `yaml:"fee_margin,omitempty"`
		MinNotional     string `yaml:"min_notional,omitempty"`
		SettlementDelay string `yaml:"settlement_delay,omitempty"`
		SimulateKRW     string `yaml:"simulate_krw,omitempty"`
	} `yaml:"execution"`

	Ledger struct {
		Path        string `yaml:"path,omitempty"`
		HistoryDays int    `yaml:"history_days,omitempty"`
	} `yaml:"ledger"`

	Web struct {
		Addr       string   `yaml:"addr,omitempty"`
		TLSDomains []string `yaml:"tls_domains,omitempty"`
		CertCache  string   `yaml:"cert_cache,omitempty"`
	} `yaml:"web"`

	Redis struct {
		Addr string `yaml:"addr,omitempty"`
		DB   int    `yaml:"db,omitempty"`
	} `yaml:"redis"`

	Influx struct {
		URL    string `yaml:"url,omitempty"`
		Org    string `yaml:"org,omitempty"`
		Bucket string `yaml:"bucket,omitempty"`
	} `yaml:"influx"`

	Trace struct {
		Enabled bool   `yaml:"enabled,omitempty"`
		File    string `yaml:"file,omitempty"`
	} `yaml:"trace"`

	Log struct {
		Level string `yaml:"level,omitempty"`
		File  string `yaml:"file,omitempty"`
	} `yaml:"log"`

	DecisionsWALDir string `yaml:"decisions_wal_dir,omitempty"`
}

// Flags command line options.
type Flags struct {
	ConfigPath string
	EnvPath    string
	Setup      bool
	// Args positional arguments left after flags, e.g. "tx deposit 100000".
	Args []string
}

// ParseFlags reads command line options.
func ParseFlags() Flags {
	var f Flags
	flag.StringVar(&f.ConfigPath, "config", "config.yaml", "path to yaml config")
	flag.StringVar(&f.EnvPath, "env", ".env", "path to dotenv file with credentials")
	flag.BoolVar(&f.Setup, "setup", false, "run the interactive setup wizard before starting")
	flag.Parse()
	f.Args = flag.Args()
	return f
}

// Get loads the dotenv file, then the yaml config, and validates the result.
// A missing yaml file falls back to defaults.
func Get(f Flags) (Config, error) {
	if err := godotenv.Load(f.EnvPath); err != nil && !os.IsNotExist(err) {
		return Config{}, errors.Wrapf(err, "load env file %s", f.EnvPath)
	}

	var tmp ConfigTmp
	data, err := os.ReadFile(f.ConfigPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			return Config{}, errors.Wrapf(err, "parse yaml config %s", f.ConfigPath)
		}
	case os.IsNotExist(err):
	default:
		return Config{}, errors.Wrapf(err, "read yaml config %s", f.ConfigPath)
	}

	cfg, err := FromTmp(tmp)
	if err != nil {
		return Config{}, err
	}
	cfg.Secrets = SecretsFromEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SecretsFromEnv reads credentials from process environment.
func SecretsFromEnv() Secrets {
	chatID, _ := strconv.ParseInt(strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID")), 10, 64)
	return Secrets{
		UpbitAccessKey: os.Getenv("UPBIT_ACCESS_KEY"),
		UpbitSecretKey: os.Getenv("UPBIT_SECRET_KEY"),
		OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
		SerpAPIKey:     os.Getenv("SERPAPI_API_KEY"),
		TelegramToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID: chatID,
		InfluxToken:    os.Getenv("INFLUXDB_TOKEN"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}
}

// FromTmp applies defaults and converts the raw yaml values.
func FromTmp(c ConfigTmp) (Config, error) {
	var cfg Config
	var err error

	cfg.Pair, err = domain.ParsePair(orDefault(c.Pair, "BTC_KRW"))
	if err != nil {
		return Config{}, errors.Wrap(err, "incorrect 'pair' param in yaml config")
	}
	cfg.Location, err = time.LoadLocation(orDefault(c.Timezone, "Asia/Seoul"))
	if err != nil {
		return Config{}, errors.Wrapf(err, "incorrect 'timezone' param in yaml config: %s", c.Timezone)
	}
	cfg.DryRun = c.DryRun

	cfg.Schedule.DecisionTimes = c.Schedule.DecisionTimes
	if len(cfg.Schedule.DecisionTimes) == 0 {
		cfg.Schedule.DecisionTimes = []string{"00:30", "04:30", "08:30", "12:30", "16:30", "20:30"}
	}
	cfg.Schedule.SnapshotMinutes = c.Schedule.SnapshotMinutes
	if len(cfg.Schedule.SnapshotMinutes) == 0 {
		cfg.Schedule.SnapshotMinutes = []int{29, 59}
	}
	cfg.Schedule.RunOnStart = true
	if c.Schedule.RunOnStart != nil {
		cfg.Schedule.RunOnStart = *c.Schedule.RunOnStart
	}

	m := c.Market
	cfg.Market = MarketConfig{
		DailyCandles:  orDefaultInt(m.DailyCandles, 180),
		HourlyCandles: orDefaultInt(m.HourlyCandles, 168),
		DailyTail:     orDefaultInt(m.DailyTail, 60),
		HourlyTail:    orDefaultInt(m.HourlyTail, 48),
		NewsQuery:     orDefault(m.NewsQuery, "bitcoin OR btc"),
		NewsLimit:     orDefaultInt(m.NewsLimit, 15),
		MacroSymbols:  m.MacroSymbols,
		MacroRange:    orDefault(m.MacroRange, "7d"),
		MacroInterval: orDefault(m.MacroInterval, "1h"),
		UpbitURL:      orDefault(m.UpbitURL, "https://api.upbit.com"),
		FearGreedURL:  orDefault(m.FearGreedURL, "https://api.alternative.me/fng/"),
		SerpAPIURL:    orDefault(m.SerpAPIURL, "https://serpapi.com/search.json"),
		YahooURL:      orDefault(m.YahooURL, "https://query1.finance.yahoo.com"),
	}
	if len(cfg.Market.MacroSymbols) == 0 {
		cfg.Market.MacroSymbols = []MacroSymbol{
			{Name: "Dollar Index (DXY)", Symbol: "DX-Y.NYB"},
			{Name: "U.S. 10-Year Treasury Yield (^TNX)", Symbol: "^TNX"},
		}
	}
	if cfg.Market.OrderBookWindow, err = parseDuration(m.OrderBookWindow, 8*time.Hour, "market.orderbook_window"); err != nil {
		return Config{}, err
	}
	if cfg.Market.RequestTimeout, err = parseDuration(m.RequestTimeout, 10*time.Second, "market.request_timeout"); err != nil {
		return Config{}, err
	}

	cfg.LLM = LLMConfig{
		APIURL:          orDefault(c.LLM.APIURL, "https://api.openai.com/v1/chat/completions"),
		Model:           orDefault(c.LLM.Model, "o3-mini"),
		InstructionRole: orDefault(c.LLM.InstructionRole, "developer"),
		ReasoningEffort: c.LLM.ReasoningEffort,
	}
	if cfg.LLM.Timeout, err = parseDuration(c.LLM.Timeout, 5*time.Minute, "llm.timeout"); err != nil {
		return Config{}, err
	}

	e := c.Execution
	if cfg.Execution.FeeMargin, err = parseDecimal(e.FeeMargin, "0.9995", "execution.fee_margin"); err != nil {
		return Config{}, err
	}
	if cfg.Execution.MinNotional, err = parseDecimal(e.MinNotional, "5000", "execution.min_notional"); err != nil {
		return Config{}, err
	}
	if cfg.Execution.SimulateKRW, err = parseDecimal(e.SimulateKRW, "1000000", "execution.simulate_krw"); err != nil {
		return Config{}, err
	}
	if cfg.Execution.SettlementDelay, err = parseDuration(e.SettlementDelay, 2*time.Second, "execution.settlement_delay"); err != nil {
		return Config{}, err
	}

	cfg.Ledger = LedgerConfig{
		Path:        orDefault(c.Ledger.Path, "bitcoin_trades.db"),
		HistoryDays: orDefaultInt(c.Ledger.HistoryDays, 7),
	}
	cfg.Web = WebConfig{Addr: c.Web.Addr, TLSDomains: c.Web.TLSDomains, CertCache: orDefault(c.Web.CertCache, "cert-cache")}
	cfg.Redis = RedisConfig{Addr: c.Redis.Addr, DB: c.Redis.DB}
	cfg.Influx = InfluxConfig{URL: c.Influx.URL, Org: c.Influx.Org, Bucket: c.Influx.Bucket}
	cfg.Trace = TraceConfig{Enabled: c.Trace.Enabled, File: orDefault(c.Trace.File, "traces.json")}
	cfg.Log = LogConfig{Level: orDefault(c.Log.Level, "info"), File: c.Log.File}
	cfg.DecisionsWALDir = orDefault(c.DecisionsWALDir, "./wal/decisions")

	return cfg, nil
}

// Validate reports configuration errors that must abort startup.
func (c Config) Validate() error {
	if !c.DryRun && (c.Secrets.UpbitAccessKey == "" || c.Secrets.UpbitSecretKey == "") {
		return errors.New("UPBIT_ACCESS_KEY and UPBIT_SECRET_KEY environment variables must be set")
	}
	for _, t := range c.Schedule.DecisionTimes {
		if _, _, err := ParseClock(t); err != nil {
			return err
		}
	}
	for _, m := range c.Schedule.SnapshotMinutes {
		if m < 0 || m > 59 {
			return fmt.Errorf("invalid snapshot minute %d (must be 0-59)", m)
		}
	}
	if c.Execution.FeeMargin.LessThanOrEqual(decimal.Zero) || c.Execution.FeeMargin.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("invalid 'execution.fee_margin' %s (must be in (0, 1])", c.Execution.FeeMargin)
	}
	if c.Market.DailyTail > c.Market.DailyCandles || c.Market.HourlyTail > c.Market.HourlyCandles {
		return errors.New("candle tail cannot exceed the fetched candle count")
	}
	return nil
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (hour, minute int, err error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, errors.Wrapf(err, "invalid time of day %q (expected HH:MM)", s)
	}
	return t.Hour(), t.Minute(), nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func orDefaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func parseDecimal(v, def, name string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(orDefault(v, def))
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "incorrect '%s' param in yaml config (must be a decimal)", name)
	}
	return d, nil
}

func parseDuration(v string, def time.Duration, name string) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "incorrect '%s' param in yaml config (must be a duration)", name)
	}
	return d, nil
}
