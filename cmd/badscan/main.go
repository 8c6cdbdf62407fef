// Command badscan runs a single stateless probe against a hard-coded
// target, using the scan engine's cookie, fingerprint, protocol and
// raw-channel components wired together per badscan.toml. Replace the
// hard-coded target with your own address-range iteration to scan more
// than one host; that iteration strategy is explicitly out of this
// module's scope (spec.md §1).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"time"

	"github.com/soypat/badscan"
	"github.com/soypat/badscan/config"
	"github.com/soypat/badscan/fingerprint"
	"github.com/soypat/badscan/iface"
	"github.com/soypat/badscan/protocol"
	"github.com/soypat/badscan/protocol/query"
	"github.com/soypat/badscan/protocol/raknet"
	"github.com/soypat/badscan/protocol/slp"
	"github.com/soypat/badscan/scanner"
)

// hardCodedTarget is the single host this driver scans; spec.md §6 is
// explicit that address-range iteration is the caller's job, not this
// module's.
var hardCodedTarget = badscan.Target{IP: netip.MustParseAddr("192.0.2.10"), Port: 0}

func main() {
	if err := run(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	fmt.Println("success")
}

func run() error {
	var (
		flagConfig = "badscan.toml"
		flagTarget = ""
		flagVerbose = false
	)
	flag.StringVar(&flagConfig, "config", flagConfig, "Path to the TOML configuration file.")
	flag.StringVar(&flagTarget, "target", flagTarget, "Override the hard-coded target, e.g. 192.0.2.10:25565.")
	flag.BoolVar(&flagVerbose, "v", flagVerbose, "Verbose logging.")
	flag.Parse()

	logLevel := slog.LevelInfo
	if flagVerbose {
		logLevel = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(log)

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	ifc, err := iface.Open(cfg.Interface)
	if err != nil {
		return err
	}
	defer ifc.Close()

	fp, err := fingerprint.New(fingerprint.Profile(cfg.Protocol.Fingerprint))
	if err != nil {
		return err
	}

	target := hardCodedTarget
	if flagTarget != "" {
		addrPort, err := netip.ParseAddrPort(flagTarget)
		if err != nil {
			return fmt.Errorf("main: parsing -target: %w", err)
		}
		target = badscan.Target{IP: addrPort.Addr(), Port: addrPort.Port()}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	switch cfg.Protocol.T {
	case config.ProtocolQuery:
		return runUDP(ctx, ifc, query.New(cfg.Protocol.C.Fullstat, onQueryReply, log), fp, cfg, target)
	case config.ProtocolRaknet:
		return runUDP(ctx, ifc, raknet.New(onRaknetReply, log), fp, cfg, target)
	case config.ProtocolSLP:
		return runTCP(ctx, ifc, slp.New("test", 3), fp, cfg, target)
	default:
		return fmt.Errorf("main: unsupported protocol %q", cfg.Protocol.T)
	}
}

func runUDP(ctx context.Context, ifc *iface.Interface, proto protocol.UDPProtocol, fp *fingerprint.Fingerprint, cfg *config.Config, target badscan.Target) error {
	if target.Port == 0 {
		target.Port = proto.DefaultPort()
	}
	s := scanner.NewUDPScanner(ctx, ifc, proto, fp, cfg.Scan.Seed, nil)
	defer s.Close()
	if err := s.Scan(target); err != nil {
		return err
	}
	time.Sleep(time.Duration(cfg.Scan.WaitDelay) * time.Second)
	return nil
}

func runTCP(ctx context.Context, ifc *iface.Interface, proto protocol.TCPProtocol, fp *fingerprint.Fingerprint, cfg *config.Config, target badscan.Target) error {
	if target.Port == 0 {
		target.Port = proto.DefaultPort()
	}
	s := scanner.NewTCPScanner(ctx, ifc, proto, fp, cfg.Scan.Seed, nil)
	defer s.Close()
	if err := s.Scan(target); err != nil {
		return err
	}
	time.Sleep(time.Duration(cfg.Scan.WaitDelay) * time.Second)
	return nil
}

func onQueryReply(source badscan.Target, resp query.Response) {
	switch {
	case resp.Partial != nil:
		slog.Info("query: partial stat reply", slog.String("source", source.String()), slog.String("motd", resp.Partial.MOTD))
	case resp.Full != nil:
		slog.Info("query: full stat reply", slog.String("source", source.String()), slog.Int("players", len(resp.Full.Players)))
	}
}

func onRaknetReply(source badscan.Target, resp raknet.Response) {
	slog.Info("raknet: pong", slog.String("source", source.String()), slog.String("motd", resp.MOTD), slog.Int("players", resp.PlayerCount))
}
