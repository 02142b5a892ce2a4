package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/RoGogDBD/leakcheck/internal/analyzer"
	models "github.com/RoGogDBD/leakcheck/internal/model"
	"github.com/RoGogDBD/leakcheck/internal/probe"
	"github.com/spf13/viper"
)

// Константы для имен переменных окружения
const (
	EnvAddress        = "ADDRESS"
	EnvServe          = "SERVE_ADDRESS"
	EnvSampleCount    = "SAMPLE_COUNT"
	EnvSampleInterval = "SAMPLE_INTERVAL"
	EnvLeakThreshold  = "LEAK_THRESHOLD"
	EnvTimerThreshold = "TIMER_THRESHOLD"
	EnvThresholdMode  = "THRESHOLD_MODE"
	EnvMemorySource   = "MEMORY_SOURCE"
	EnvElementSource  = "ELEMENT_SOURCE"
	EnvKey            = "KEY"
	EnvConfig         = "CONFIG"
	EnvLogLevel       = "LOG_LEVEL"
	EnvTrustedSubnet  = "TRUSTED_SUBNET"
)

// Константы для флагов командной строки
const (
	FlagAddress        = "a"
	FlagServe          = "serve"
	FlagSampleCount    = "n"
	FlagSampleInterval = "i"
	FlagLeakThreshold  = "leak-threshold"
	FlagTimerThreshold = "timer-threshold"
	FlagLeakRate       = "leak-rate"
	FlagTimerRate      = "timer-rate"
	FlagThresholdMode  = "mode"
	FlagMemorySource   = "memory"
	FlagElementSource  = "elements"
	FlagShowSamples    = "samples"
	FlagKey            = "k"
	FlagConfig         = "c"
	FlagLogLevel       = "l"
	FlagTrustedSubnet  = "t"
	FlagVersion        = "version"
)

// Ключи конфигурации viper (совпадают с ключами файла конфигурации).
const (
	keyAddress        = "address"
	keyServe          = "serve"
	keySamples        = "samples"
	keyInterval       = "interval"
	keyMode           = "mode"
	keyLeakThreshold  = "leak_threshold"
	keyTimerThreshold = "timer_threshold"
	keyLeakRate       = "leak_rate_threshold"
	keyTimerRate      = "timer_rate_threshold"
	keyMemorySource   = "memory_source"
	keyElementSource  = "element_source"
	keyShowSamples    = "show_samples"
	keyKey            = "key"
	keyLogLevel       = "log_level"
	keyTrustedSubnet  = "trusted_subnet"
)

const (
	DefaultSampleCount    = 6
	DefaultSampleInterval = 5 * time.Second
)

// ErrInvalidConfig оборачивает все ошибки проверки конфигурации.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config — итоговая конфигурация диагностики.
//
// Приоритет источников: флаги > переменные окружения > файл конфигурации > значения по умолчанию.
type Config struct {
	Address        string        `mapstructure:"address"`              // ADDRESS или флаг -a
	Serve          string        `mapstructure:"serve"`                // SERVE_ADDRESS или флаг -serve
	Samples        int           `mapstructure:"samples"`              // SAMPLE_COUNT или флаг -n
	Interval       time.Duration `mapstructure:"interval"`             // SAMPLE_INTERVAL или флаг -i (в формате "5s")
	Mode           string        `mapstructure:"mode"`                 // THRESHOLD_MODE или флаг -mode
	LeakThreshold  int64         `mapstructure:"leak_threshold"`       // LEAK_THRESHOLD или флаг -leak-threshold (байты)
	TimerThreshold int64         `mapstructure:"timer_threshold"`      // TIMER_THRESHOLD или флаг -timer-threshold
	LeakRate       float64       `mapstructure:"leak_rate_threshold"`  // флаг -leak-rate (байт/с)
	TimerRate      float64       `mapstructure:"timer_rate_threshold"` // флаг -timer-rate (регистраций/мин)
	MemorySource   string        `mapstructure:"memory_source"`        // MEMORY_SOURCE или флаг -memory
	ElementSource  string        `mapstructure:"element_source"`       // ELEMENT_SOURCE или флаг -elements
	ShowSamples    bool          `mapstructure:"show_samples"`         // флаг -samples
	Key            string        `mapstructure:"key"`                  // KEY или флаг -k
	LogLevel       string        `mapstructure:"log_level"`            // LOG_LEVEL или флаг -l
	TrustedSubnet  string        `mapstructure:"trusted_subnet"`       // TRUSTED_SUBNET или флаг -t (CIDR)

	ConfigFile   string `mapstructure:"-"`
	PrintVersion bool   `mapstructure:"-"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	th := analyzer.DefaultThresholds()
	return Config{
		Samples:        DefaultSampleCount,
		Interval:       DefaultSampleInterval,
		Mode:           string(th.Mode),
		LeakThreshold:  th.LeakBytes,
		TimerThreshold: th.TimerGrowth,
		LeakRate:       th.LeakBytesPerSecond,
		TimerRate:      th.TimerGrowthPerMinute,
		MemorySource:   "runtime",
		ElementSource:  "goroutines",
		LogLevel:       "info",
	}
}

// Thresholds возвращает пороги анализатора.
func (c Config) Thresholds() analyzer.Thresholds {
	return analyzer.Thresholds{
		Mode:                 models.ThresholdMode(c.Mode),
		LeakBytes:            c.LeakThreshold,
		TimerGrowth:          c.TimerThreshold,
		LeakBytesPerSecond:   c.LeakRate,
		TimerGrowthPerMinute: c.TimerRate,
	}
}

// Subnet разбирает доверенную подсеть панели управления; пустое значение даёт nil.
func (c Config) Subnet() (*net.IPNet, error) {
	if c.TrustedSubnet == "" {
		return nil, nil
	}
	_, subnet, err := net.ParseCIDR(c.TrustedSubnet)
	if err != nil {
		return nil, fmt.Errorf("trusted subnet: %w", err)
	}
	return subnet, nil
}

// Validate проверяет конфигурацию и нормализует адреса к виду host:port.
func (c *Config) Validate() error {
	if c.Samples < 1 {
		return fmt.Errorf("%w: sample count %d must be at least 1", ErrInvalidConfig, c.Samples)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: sample interval %s must be positive", ErrInvalidConfig, c.Interval)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := probe.NewMemoryProbe(c.MemorySource); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if _, err := probe.NewElementCounter(c.ElementSource); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, addr := range []*string{&c.Address, &c.Serve} {
		if *addr == "" {
			continue
		}
		var na NetAddress
		if err := na.Set(*addr); err != nil {
			return fmt.Errorf("%w: address %q: %w", ErrInvalidConfig, *addr, err)
		}
		*addr = na.String()
	}
	if _, err := c.Subnet(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Address != "" && c.Serve != "" {
		return fmt.Errorf("%w: -%s and -%s are mutually exclusive", ErrInvalidConfig, FlagAddress, FlagServe)
	}
	return nil
}

// Load собирает конфигурацию из аргументов командной строки, окружения и файла.
//
// args — аргументы без имени программы; output — куда печатать справку по флагам.
func Load(args []string, output io.Writer) (*Config, error) {
	def := Default()
	fs := flag.NewFlagSet("leakcheck", flag.ContinueOnError)
	if output != nil {
		fs.SetOutput(output)
	}

	// Значения флагов используются только для явно заданных флагов, см. fs.Visit ниже.
	fs.String(FlagAddress, "", "Remote control surface host:port")
	fs.String(FlagServe, "", "Expose a demo instance on host:port")
	fs.Int(FlagSampleCount, def.Samples, "Number of scheduled snapshots")
	fs.Duration(FlagSampleInterval, def.Interval, "Interval between snapshots")
	fs.String(FlagThresholdMode, def.Mode, "Threshold mode: fixed or rate")
	fs.Int64(FlagLeakThreshold, def.LeakThreshold, "Memory growth threshold in bytes")
	fs.Int64(FlagTimerThreshold, def.TimerThreshold, "Timer registration growth threshold")
	fs.Float64(FlagLeakRate, def.LeakRate, "Memory growth threshold in bytes per second (rate mode)")
	fs.Float64(FlagTimerRate, def.TimerRate, "Timer registrations per minute threshold (rate mode)")
	fs.String(FlagMemorySource, def.MemorySource, "Memory source: runtime, process or none")
	fs.String(FlagElementSource, def.ElementSource, "Interactive element source: goroutines or fds")
	fs.Bool(FlagShowSamples, false, "Print every measurement before the summary")
	fs.String(FlagKey, "", "HMAC-SHA256 key for the control surface")
	fs.String(FlagLogLevel, def.LogLevel, "Log level: debug, info, warn, error")
	fs.String(FlagTrustedSubnet, "", "Trusted subnet (CIDR) for the control surface")
	configPath := fs.String(FlagConfig, "", "Path to a JSON or YAML config file")
	printVersion := fs.Bool(FlagVersion, false, "Print build info and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault(keyAddress, def.Address)
	v.SetDefault(keyServe, def.Serve)
	v.SetDefault(keySamples, def.Samples)
	v.SetDefault(keyInterval, def.Interval)
	v.SetDefault(keyMode, def.Mode)
	v.SetDefault(keyLeakThreshold, def.LeakThreshold)
	v.SetDefault(keyTimerThreshold, def.TimerThreshold)
	v.SetDefault(keyLeakRate, def.LeakRate)
	v.SetDefault(keyTimerRate, def.TimerRate)
	v.SetDefault(keyMemorySource, def.MemorySource)
	v.SetDefault(keyElementSource, def.ElementSource)
	v.SetDefault(keyShowSamples, def.ShowSamples)
	v.SetDefault(keyKey, def.Key)
	v.SetDefault(keyLogLevel, def.LogLevel)
	v.SetDefault(keyTrustedSubnet, def.TrustedSubnet)

	path := GetConfigFilePathWithFlag(*configPath)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	envKeys := map[string]string{
		keyAddress:        EnvAddress,
		keyServe:          EnvServe,
		keySamples:        EnvSampleCount,
		keyInterval:       EnvSampleInterval,
		keyMode:           EnvThresholdMode,
		keyLeakThreshold:  EnvLeakThreshold,
		keyTimerThreshold: EnvTimerThreshold,
		keyMemorySource:   EnvMemorySource,
		keyElementSource:  EnvElementSource,
		keyKey:            EnvKey,
		keyLogLevel:       EnvLogLevel,
		keyTrustedSubnet:  EnvTrustedSubnet,
	}
	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, err
		}
	}

	flagKeys := map[string]string{
		FlagAddress:        keyAddress,
		FlagServe:          keyServe,
		FlagSampleCount:    keySamples,
		FlagSampleInterval: keyInterval,
		FlagThresholdMode:  keyMode,
		FlagLeakThreshold:  keyLeakThreshold,
		FlagTimerThreshold: keyTimerThreshold,
		FlagLeakRate:       keyLeakRate,
		FlagTimerRate:      keyTimerRate,
		FlagMemorySource:   keyMemorySource,
		FlagElementSource:  keyElementSource,
		FlagShowSamples:    keyShowSamples,
		FlagKey:            keyKey,
		FlagLogLevel:       keyLogLevel,
		FlagTrustedSubnet:  keyTrustedSubnet,
	}
	fs.Visit(func(f *flag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			v.Set(key, f.Value.String())
		}
	})

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.Mode = strings.ToLower(cfg.Mode)
	cfg.ConfigFile = path
	cfg.PrintVersion = *printVersion
	return cfg, nil
}

// GetConfigFilePathWithFlag получает путь к файлу конфигурации, учитывая явно переданный флаг.
// Используется после разбора флагов.
func GetConfigFilePathWithFlag(flagValue string) string {
	// Флаги имеют больший приоритет
	if flagValue != "" {
		return flagValue
	}
	// Затем проверяем переменную окружения
	return EnvString(EnvConfig)
}
