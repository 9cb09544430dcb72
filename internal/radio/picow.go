//go:build tinygo && baremetal

package radio

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/rs/zerolog"
	"github.com/soypat/cyw43439"
	"github.com/soypat/seqs/eth/dhcp"
	"github.com/soypat/seqs/stacks"
)

const mtu = cyw43439.MTU

// dhcpAttempts at dhcpPoll intervals before falling back to StaticIP.
const (
	dhcpAttempts = 16
	dhcpPoll     = 500 * time.Millisecond
)

// PicoW drives the CYW43439 radio on a Raspberry Pi Pico W. The driver
// only implements station mode, so the device joins cfg.SSID rather than
// advertising it.
type PicoW struct {
	cfg   Config
	log   zerolog.Logger
	dev   *cyw43439.Device
	stack *stacks.PortStack
}

func NewPicoW(cfg Config, log zerolog.Logger) *PicoW {
	return &PicoW{
		cfg: cfg,
		log: log.With().Str("component", "radio").Logger(),
		dev: cyw43439.NewPicoWDevice(),
	}
}

// Start initialises the chip, joins the network and obtains an address.
func (p *PicoW) Start(ctx context.Context) (Info, error) {
	if err := p.cfg.Validate(); err != nil {
		return Info{}, err
	}
	if p.cfg.Auth == AuthWPA3Personal {
		return Info{}, fmt.Errorf("%w: cyw43439 cannot join wpa3-only networks", ErrInvalidConfig)
	}

	var reqAddr netip.Addr
	if p.cfg.StaticIP != "" {
		reqAddr = netip.MustParseAddr(p.cfg.StaticIP)
	}

	wificfg := cyw43439.DefaultWifiConfig()
	// The driver logs through slog; route it into our logger at warn.
	wificfg.Logger = slog.New(slog.NewTextHandler(p.log, &slog.HandlerOptions{Level: slog.LevelWarn}))

	start := time.Now()
	if err := p.dev.Init(wificfg); err != nil {
		return Info{}, fmt.Errorf("cyw43439 init: %w", err)
	}
	p.log.Info().Dur("took", time.Since(start)).Msg("radio initialised")

	if err := p.dev.JoinWPA2(p.cfg.SSID, p.cfg.Passphrase); err != nil {
		return Info{}, fmt.Errorf("join %q: %w", p.cfg.SSID, err)
	}
	mac, err := p.dev.HardwareAddr6()
	if err != nil {
		return Info{}, fmt.Errorf("hardware addr: %w", err)
	}
	p.log.Info().Str("ssid", p.cfg.SSID).Str("mac", net.HardwareAddr(mac[:]).String()).Msg("joined network")

	p.stack = stacks.NewPortStack(stacks.PortStackConfig{
		MAC:             mac,
		MaxOpenPortsUDP: 1,
		MaxOpenPortsTCP: 1,
		MTU:             mtu,
	})
	p.dev.RecvEthHandle(p.stack.RecvEth)
	go p.nicLoop(ctx)

	addr, err := p.dhcp(ctx, reqAddr)
	if err != nil {
		return Info{}, err
	}
	p.stack.SetAddr(addr)
	p.log.Info().Str("ip", addr.String()).Msg("network ready")

	return Info{Mode: ModeStation, SSID: p.cfg.SSID, Channel: p.cfg.Channel, Addr: addr}, nil
}

func (p *PicoW) dhcp(ctx context.Context, reqAddr netip.Addr) (netip.Addr, error) {
	client := stacks.NewDHCPClient(p.stack, dhcp.DefaultClientPort)
	err := client.BeginRequest(stacks.DHCPRequestConfig{
		RequestedAddr: reqAddr,
		Xid:           uint32(time.Now().Nanosecond()),
		Hostname:      p.cfg.Hostname,
	})
	if err != nil {
		return netip.Addr{}, fmt.Errorf("dhcp request: %w", err)
	}

	for i := 0; client.State() != dhcp.StateBound; i++ {
		if i >= dhcpAttempts {
			if !reqAddr.IsValid() {
				return netip.Addr{}, fmt.Errorf("dhcp: no lease and no static ip")
			}
			p.log.Warn().Str("ip", reqAddr.String()).Msg("dhcp did not complete, using static ip")
			return reqAddr, nil
		}
		select {
		case <-ctx.Done():
			return netip.Addr{}, ctx.Err()
		case <-time.After(dhcpPoll):
		}
	}
	return client.Offer(), nil
}

// Listen opens the echo port on the radio's TCP/IP stack. Start must have
// succeeded first. The stack holds at most three connections at once.
func (p *PicoW) Listen(port uint16) (net.Listener, error) {
	if p.stack == nil {
		return nil, fmt.Errorf("listen: radio not started")
	}
	ln, err := stacks.NewTCPListener(p.stack, stacks.TCPListenerConfig{
		MaxConnections: 3,
		ConnTxBufSize:  512,
		ConnRxBufSize:  512,
	})
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	if err := ln.StartListening(port); err != nil {
		return nil, fmt.Errorf("listen :%d: %w", port, err)
	}
	return ln, nil
}

// nicLoop moves frames between the chip and the stack until ctx ends.
func (p *PicoW) nicLoop(ctx context.Context) {
	var buf [mtu]byte
	for ctx.Err() == nil {
		gotRx, err := p.dev.PollOne()
		if err != nil {
			p.log.Warn().Err(err).Msg("nic poll")
		}

		n, err := p.stack.HandleEth(buf[:])
		if err != nil {
			p.log.Warn().Err(err).Msg("stack handle")
			n = 0
		}
		if n > 0 {
			if err := p.dev.SendEth(buf[:n]); err != nil {
				p.log.Warn().Err(err).Msg("dropped outgoing frame")
			}
			continue
		}
		if !gotRx {
			time.Sleep(50 * time.Millisecond)
		}
	}
}
