// Command udssrv runs a pkg/server.Server against a demo data
// identifier table loaded from an INI config file, over either a real
// CAN interface or an in-memory mock transport.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	uds "github.com/nordlicht/goudsstack"
	"github.com/nordlicht/goudsstack/pkg/config"
	"github.com/nordlicht/goudsstack/pkg/event"
	"github.com/nordlicht/goudsstack/pkg/server"
	"github.com/nordlicht/goudsstack/pkg/transport/cansock"
	isotptp "github.com/nordlicht/goudsstack/pkg/transport/isotp"
	"github.com/nordlicht/goudsstack/pkg/transport/mock"
)

func main() {
	configPath := flag.String("c", "", "INI config file (server/client/transport/DID sections)")
	tickMs := flag.Int64("tick", 2, "poll interval in milliseconds")
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

	clk := uds.NewSystemClock()
	tp, pollExtra, closeFn, err := buildTransport(clk, fileCfg, logger)
	if err != nil {
		logger.Error("failed to set up transport", "err", err)
		os.Exit(1)
	}
	defer closeFn()

	store := newDIDStore(fileCfg.DIDs)
	reg := server.NewRegistry(logger, func(ev event.Event) event.NRC {
		return event.NRCRequestOutOfRange
	})
	store.register(reg)

	srv := server.New(clk, tp, reg.Handle, fileCfg.Server, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(time.Duration(*tickMs) * time.Millisecond)
	defer ticker.Stop()

	logger.Info("udssrv running", "session", srv.SessionType(), "dids", len(fileCfg.DIDs))
	for {
		select {
		case <-sigCh:
			logger.Info("shutting down")
			return
		case <-ticker.C:
			srv.Poll(clk.NowMs())
			if pollExtra != nil {
				pollExtra()
			}
		}
	}
}

// didStore holds the mutable backing value for every configured data
// identifier, so WriteDataByIdentifier requests have somewhere to land.
type didStore struct {
	mu     sync.Mutex
	values map[uint16][]byte
}

func newDIDStore(entries []config.DIDEntry) *didStore {
	s := &didStore{values: make(map[uint16][]byte, len(entries))}
	for _, e := range entries {
		v := make([]byte, len(e.Default))
		copy(v, e.Default)
		s.values[e.ID] = v
	}
	return s
}

func (s *didStore) register(reg *server.Registry) {
	for id := range s.values {
		id := id
		reg.AddDataIdentifier(id,
			func(w *event.Writer) event.NRC {
				s.mu.Lock()
				v := s.values[id]
				s.mu.Unlock()
				return w.Append(v)
			},
			func(data []byte) event.NRC {
				s.mu.Lock()
				s.values[id] = append([]byte(nil), data...)
				s.mu.Unlock()
				return event.NRCPositiveResponse
			},
		)
	}
}

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

