// Package radio brings up the wireless link the echo service is reached
// through. The configuration is always passed in explicitly at startup.
package radio

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/rs/zerolog"
)

// AuthMethod selects the link security.
type AuthMethod string

const (
	AuthOpen             AuthMethod = "open"
	AuthWPA2Personal     AuthMethod = "wpa2-personal"
	AuthWPA3Personal     AuthMethod = "wpa3-personal"
	AuthWPA2WPA3Personal AuthMethod = "wpa2-wpa3-personal"
)

// ParseAuthMethod accepts the names above, case-insensitively.
func ParseAuthMethod(s string) (AuthMethod, error) {
	switch m := AuthMethod(strings.ToLower(strings.TrimSpace(s))); m {
	case AuthOpen, AuthWPA2Personal, AuthWPA3Personal, AuthWPA2WPA3Personal:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown auth method %q", ErrInvalidConfig, s)
}

const (
	DefaultSSID    = "m5echo"
	DefaultChannel = 11
	MaxSSIDLen     = 32
	MinPassLen     = 8
	MaxPassLen     = 63
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid radio config")

// Config describes the network to advertise (or join, on hardware that
// cannot act as an access point).
type Config struct {
	SSID       string
	Passphrase string
	Channel    uint8
	Auth       AuthMethod
	Hidden     bool

	// Hostname and StaticIP are only used by stacks that run DHCP
	// themselves. StaticIP doubles as the requested address.
	Hostname string
	StaticIP string
}

// DefaultConfig returns the defaults. The passphrase is left empty and
// must be supplied before Validate passes.
func DefaultConfig() Config {
	return Config{
		SSID:     DefaultSSID,
		Channel:  DefaultChannel,
		Auth:     AuthWPA2Personal,
		Hostname: DefaultSSID,
	}
}

// Validate checks the configuration before it reaches the radio.
func (c Config) Validate() error {
	if n := len(c.SSID); n == 0 || n > MaxSSIDLen {
		return fmt.Errorf("%w: ssid must be 1-%d bytes, got %d", ErrInvalidConfig, MaxSSIDLen, n)
	}
	if c.Channel < 1 || c.Channel > 13 {
		return fmt.Errorf("%w: channel must be 1-13, got %d", ErrInvalidConfig, c.Channel)
	}
	switch c.Auth {
	case AuthOpen:
		if c.Passphrase != "" {
			return fmt.Errorf("%w: open network must not have a passphrase", ErrInvalidConfig)
		}
	case AuthWPA2Personal, AuthWPA3Personal, AuthWPA2WPA3Personal:
		if n := len(c.Passphrase); n < MinPassLen || n > MaxPassLen {
			return fmt.Errorf("%w: passphrase must be %d-%d bytes, got %d", ErrInvalidConfig, MinPassLen, MaxPassLen, n)
		}
	default:
		return fmt.Errorf("%w: unknown auth method %q", ErrInvalidConfig, c.Auth)
	}
	if c.StaticIP != "" {
		if _, err := netip.ParseAddr(c.StaticIP); err != nil {
			return fmt.Errorf("%w: static ip: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Mode reports how the device participates in the network.
type Mode string

const (
	ModeHostManaged Mode = "host-managed"
	ModeAccessPoint Mode = "access-point"
	ModeStation     Mode = "station"
)

// Info describes the link once it is up.
type Info struct {
	Mode    Mode
	SSID    string
	Channel uint8
	// Addr is the device address when the stack knows it.
	Addr netip.Addr
}

// AccessPoint brings the link up. A Start error is fatal to the caller.
type AccessPoint interface {
	Start(ctx context.Context) (Info, error)
}

// Host is used where the operating system owns the radio. It validates
// the configuration and reports it; hostapd or NetworkManager does the rest.
type Host struct {
	cfg Config
	log zerolog.Logger
}

func NewHost(cfg Config, log zerolog.Logger) *Host {
	return &Host{cfg: cfg, log: log.With().Str("component", "radio").Logger()}
}

func (h *Host) Start(ctx context.Context) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	if err := h.cfg.Validate(); err != nil {
		return Info{}, err
	}
	h.log.Info().
		Str("ssid", h.cfg.SSID).
		Uint8("channel", h.cfg.Channel).
		Str("auth", string(h.cfg.Auth)).
		Bool("hidden", h.cfg.Hidden).
		Msg("radio managed by host")
	return Info{Mode: ModeHostManaged, SSID: h.cfg.SSID, Channel: h.cfg.Channel}, nil
}
