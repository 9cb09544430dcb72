// Package config loads process configuration from flags, environment and
// an optional TOML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/sweeney/m5echo/internal/echo"
	"github.com/sweeney/m5echo/internal/gpio"
	"github.com/sweeney/m5echo/internal/logger"
	"github.com/sweeney/m5echo/internal/logic"
	"github.com/sweeney/m5echo/internal/mqtt"
	"github.com/sweeney/m5echo/internal/radio"
	"github.com/sweeney/m5echo/internal/web"
)

// EnvPrefix prefixes every environment override, e.g. M5ECHO_ECHO_ADDR.
const EnvPrefix = "M5ECHO"

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Logic   LogicConfig   `mapstructure:"logic"`
	GPIO    GPIOConfig    `mapstructure:"gpio"`
	Echo    EchoConfig    `mapstructure:"echo"`
	Display DisplayConfig `mapstructure:"display"`
	Radio   RadioConfig   `mapstructure:"radio"`
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	HTTP    HTTPConfig    `mapstructure:"http"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type LogicConfig struct {
	Debounce       time.Duration `mapstructure:"debounce"`
	ActionInterval time.Duration `mapstructure:"action_interval"`
}

type GPIOConfig struct {
	Chip string `mapstructure:"chip"`
	PinA int    `mapstructure:"pin_a"`
	PinB int    `mapstructure:"pin_b"`
	PinC int    `mapstructure:"pin_c"`
}

type EchoConfig struct {
	Addr        string        `mapstructure:"addr"`
	MaxConns    int           `mapstructure:"max_conns"`
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
}

type DisplayConfig struct {
	Title string `mapstructure:"title"`
}

// RadioConfig is only validated when Enabled; on hosts the network is
// usually managed by the OS.
type RadioConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	SSID       string `mapstructure:"ssid"`
	Passphrase string `mapstructure:"passphrase"`
	Channel    uint8  `mapstructure:"channel"`
	Auth       string `mapstructure:"auth"`
	Hidden     bool   `mapstructure:"hidden"`
}

// MQTTConfig: an empty Broker disables publishing.
type MQTTConfig struct {
	Broker     string `mapstructure:"broker"`
	ClientID   string `mapstructure:"client_id"`
	BufferSize int    `mapstructure:"buffer_size"`
}

// HTTPConfig: an empty Addr disables the status page.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", logger.FormatConsole)
	v.SetDefault("logic.debounce", logic.DefaultDebounce)
	v.SetDefault("logic.action_interval", logic.DefaultActionInterval)
	v.SetDefault("gpio.chip", gpio.DefaultChip)
	v.SetDefault("gpio.pin_a", gpio.DefaultPinA)
	v.SetDefault("gpio.pin_b", gpio.DefaultPinB)
	v.SetDefault("gpio.pin_c", gpio.DefaultPinC)
	v.SetDefault("echo.addr", fmt.Sprintf("0.0.0.0:%d", echo.DefaultPort))
	v.SetDefault("echo.max_conns", 0)
	v.SetDefault("echo.idle_timeout", time.Duration(0))
	v.SetDefault("display.title", "")
	v.SetDefault("radio.enabled", false)
	v.SetDefault("radio.ssid", radio.DefaultSSID)
	v.SetDefault("radio.passphrase", "")
	v.SetDefault("radio.channel", radio.DefaultChannel)
	v.SetDefault("radio.auth", string(radio.AuthWPA2Personal))
	v.SetDefault("radio.hidden", false)
	v.SetDefault("mqtt.broker", "")
	v.SetDefault("mqtt.client_id", mqtt.DefaultClientID)
	v.SetDefault("mqtt.buffer_size", mqtt.DefaultBufferSize)
	v.SetDefault("http.addr", web.DefaultAddr)
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("m5echo", pflag.ContinueOnError)
	fs.String("config", "", "path to a TOML config file")
	fs.String("log.level", "info", "log level (debug, info, warn, error)")
	fs.String("log.format", logger.FormatConsole, "log format (console, json)")
	fs.Duration("logic.debounce", logic.DefaultDebounce, "button debounce window")
	fs.Duration("logic.action_interval", logic.DefaultActionInterval, "counter action interval")
	fs.String("gpio.chip", gpio.DefaultChip, "GPIO character device")
	fs.String("echo.addr", fmt.Sprintf("0.0.0.0:%d", echo.DefaultPort), "echo service listen address")
	fs.Int("echo.max_conns", 0, "maximum concurrent echo clients (0 = unbounded)")
	fs.Duration("echo.idle_timeout", 0, "close idle echo clients after this long (0 = never)")
	fs.String("mqtt.broker", "", "MQTT broker URL (empty disables MQTT)")
	fs.String("http.addr", web.DefaultAddr, "status page listen address (empty disables)")
	return fs
}

// Load builds a validated Config from args (without the program name).
// pflag.ErrHelp is returned unwrapped when -h is given.
func Load(args []string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil || c.Log.Level == "" {
		return fmt.Errorf("%w: log.level %q", ErrInvalidConfig, c.Log.Level)
	}
	if c.Log.Format != logger.FormatConsole && c.Log.Format != logger.FormatJSON {
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Logic.Debounce <= 0 || c.Logic.ActionInterval <= 0 {
		return fmt.Errorf("%w: logic durations must be positive", ErrInvalidConfig)
	}
	if c.GPIO.Chip == "" {
		return fmt.Errorf("%w: gpio.chip is empty", ErrInvalidConfig)
	}
	pins := []int{c.GPIO.PinA, c.GPIO.PinB, c.GPIO.PinC}
	for i, p := range pins {
		if p < 0 {
			return fmt.Errorf("%w: gpio pin %d is negative", ErrInvalidConfig, p)
		}
		for _, q := range pins[:i] {
			if p == q {
				return fmt.Errorf("%w: gpio pin %d used twice", ErrInvalidConfig, p)
			}
		}
	}
	if _, _, err := net.SplitHostPort(c.Echo.Addr); err != nil {
		return fmt.Errorf("%w: echo.addr: %v", ErrInvalidConfig, err)
	}
	if c.Echo.MaxConns < 0 || c.Echo.IdleTimeout < 0 {
		return fmt.Errorf("%w: echo limits must not be negative", ErrInvalidConfig)
	}
	if c.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(c.HTTP.Addr); err != nil {
			return fmt.Errorf("%w: http.addr: %v", ErrInvalidConfig, err)
		}
	}
	if c.MQTT.Broker != "" && c.MQTT.BufferSize <= 0 {
		return fmt.Errorf("%w: mqtt.buffer_size must be positive", ErrInvalidConfig)
	}
	if c.Radio.Enabled {
		rc, err := c.RadioConfig()
		if err != nil {
			return err
		}
		if err := rc.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// RadioConfig converts the radio section.
func (c *Config) RadioConfig() (radio.Config, error) {
	auth, err := radio.ParseAuthMethod(c.Radio.Auth)
	if err != nil {
		return radio.Config{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return radio.Config{
		SSID:       c.Radio.SSID,
		Passphrase: c.Radio.Passphrase,
		Channel:    c.Radio.Channel,
		Auth:       auth,
		Hidden:     c.Radio.Hidden,
	}, nil
}

func (c *Config) LogicConfig() logic.Config {
	return logic.Config{Debounce: c.Logic.Debounce, ActionInterval: c.Logic.ActionInterval}
}

func (c *Config) GPIOPins() gpio.Pins {
	return gpio.Pins{A: c.GPIO.PinA, B: c.GPIO.PinB, C: c.GPIO.PinC}
}

func (c *Config) EchoConfig() echo.Config {
	return echo.Config{MaxConns: c.Echo.MaxConns, IdleTimeout: c.Echo.IdleTimeout}
}

func (c *Config) MQTTConfig() mqtt.Config {
	return mqtt.Config{Broker: c.MQTT.Broker, ClientID: c.MQTT.ClientID, BufferSize: c.MQTT.BufferSize}
}

func (c *Config) LoggerOptions(service bool) logger.Options {
	return logger.Options{Level: c.Log.Level, Format: c.Log.Format, NoTimestamp: service}
}
