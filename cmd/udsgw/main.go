// Command udsgw is a small command-line UDS client: it wires a
// transport (cansock+isotp for a real interface, or an in-memory mock
// for local dry runs) to a pkg/client.Client, issues one request, and
// prints the decoded response.
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/client"
	"github.com/nordlicht/goudsstack/pkg/config"
	"github.com/nordlicht/goudsstack/pkg/event"
	"github.com/nordlicht/goudsstack/pkg/transport/cansock"
	isotptp "github.com/nordlicht/goudsstack/pkg/transport/isotp"
	"github.com/nordlicht/goudsstack/pkg/transport/mock"
)

func main() {
	configPath := flag.String("c", "", "INI config file (server/client/transport/DID sections)")
	sidHex := flag.String("sid", "10", "service ID, hex, e.g. 10 for DiagnosticSessionControl")
	dataHex := flag.String("data", "03", "request payload after the SID, hex bytes, space-separated or packed")
	functional := flag.Bool("functional", false, "send functionally addressed")
	suppress := flag.Bool("suppress", false, "set suppressPositiveResponse on the request")
	timeoutMs := flag.Int64("timeout", 2000, "overall wall-clock timeout in milliseconds")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var fileCfg *config.Config
	var err error
	if *configPath != "" {
		fileCfg, err = config.Load(*configPath)
	} else {
		fileCfg, err = config.Load([]byte(""))
	}
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	req, err := buildRequest(*sidHex, *dataHex)
	if err != nil {
		logger.Error("bad request bytes", "err", err)
		os.Exit(1)
	}

	clk := uds.NewSystemClock()
	tp, pollExtra, closeFn, err := buildTransport(clk, fileCfg, logger)
	if err != nil {
		logger.Error("failed to set up transport", "err", err)
		os.Exit(1)
	}
	defer closeFn()

	done := make(chan struct{})
	var resp []byte
	var respErr error

	cl := client.New(clk, tp, func(ev event.Event) event.NRC {
		switch ev.Kind {
		case event.KindResponseReceived:
			resp = ev.ResponseReceived.Data
			close(done)
		case event.KindErr:
			if ev.Err.Err != nil {
				respErr = ev.Err.Err
			} else {
				respErr = ev.Err.NRC
			}
			close(done)
		}
		return event.NRCPositiveResponse
	}, fileCfg.Client, logger)

	taType := uds.AddressPhysical
	ta := fileCfg.Transport.PhysTx
	opts := client.Option(0)
	if *functional {
		taType = uds.AddressFunctional
		ta = fileCfg.Transport.FuncTx
	}
	if *suppress {
		opts |= client.OptSuppressPosResp
	}

	if err := cl.Send(ta, taType, opts, req); err != nil {
		logger.Error("send failed", "err", err)
		os.Exit(1)
	}

	deadline := time.Now().Add(time.Duration(*timeoutMs) * time.Millisecond)
	ticker := time.NewTicker(2 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			if respErr != nil {
				fmt.Fprintln(os.Stderr, "error:", respErr)
				os.Exit(1)
			}
			fmt.Printf("response: % X\n", resp)
			return
		case <-ticker.C:
			cl.Poll(clk.NowMs())
			if pollExtra != nil {
				pollExtra()
			}
			if time.Now().After(deadline) {
				fmt.Fprintln(os.Stderr, "timed out waiting for a response")
				os.Exit(1)
			}
		}
	}
}

func buildRequest(sidHex, dataHex string) ([]byte, error) {
	sid, err := hex.DecodeString(strings.ReplaceAll(sidHex, " ", ""))
	if err != nil || len(sid) != 1 {
		return nil, fmt.Errorf("sid must be exactly one hex byte: %w", err)
	}
	data, err := hex.DecodeString(strings.ReplaceAll(dataHex, " ", ""))
	if err != nil {
		return nil, fmt.Errorf("bad data hex: %w", err)
	}
	return append(sid, data...), nil
}

// buildTransport wires either a real CAN interface or an in-memory
// mock, returning an optional extra poll step the caller must also run
// each tick (cansock's dispatch loop) alongside the uds.Transport.Poll
// already reached through pkg/client.Client.Poll.
func buildTransport(clk uds.Clock, cfg *config.Config, logger *slog.Logger) (uds.Transport, func(), func(), error) {
	switch cfg.Transport.Kind {
	case "cansock":
		bus, err := cansock.Open(cfg.Transport.Iface, 64, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		tp := isotptp.New(clk, bus, cfg.Transport.PhysTx, cfg.Transport.PhysRx,
			cfg.Transport.FuncTx, cfg.Transport.FuncRx, uds.MaxSDULength, cfg.ISOTP, logger)
		if _, err := bus.Subscribe(cfg.Transport.PhysRx, tp.Listener()); err != nil {
			return nil, nil, nil, err
		}
		if _, err := bus.Subscribe(cfg.Transport.FuncRx, tp.Listener()); err != nil {
			return nil, nil, nil, err
		}
		return tp, bus.Poll, func() { _ = bus.Close() }, nil
	default:
		return mock.New(7), nil, func() {}, nil
	}
}
