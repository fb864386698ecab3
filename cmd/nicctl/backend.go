// cmd/nicctl/backend.go
package main

import (
	"time"

	"github.com/pkg/errors"

	"github.com/tamzrod/nicplane/internal/config"
	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/monitor"
	"github.com/tamzrod/nicplane/internal/regio"
	"github.com/tamzrod/nicplane/internal/regio/mmio"
	regmodbus "github.com/tamzrod/nicplane/internal/regio/modbus"
)

// backend is an opened register backend.
// health is nil for backends without a transport.
type backend struct {
	io     regio.RegisterIO
	health monitor.Backend
	close  func() error
}

func openBackend(c config.BackendConfig, sink fault.Sink) (backend, error) {
	switch c.Kind {
	case config.BackendMMIO:
		m, err := mmio.Open(c.Resource, c.Size)
		if err != nil {
			return backend{}, err
		}
		return backend{io: m, close: m.Close}, nil

	case config.BackendModbus:
		b, err := regmodbus.Dial(regmodbus.Config{
			Endpoint: c.Endpoint,
			UnitID:   c.UnitID,
			Timeout:  time.Duration(c.TimeoutMs) * time.Millisecond,
			Sink:     sink,
		})
		if err != nil {
			return backend{}, err
		}
		return backend{io: b, health: b, close: b.Close}, nil

	case config.BackendSim:
		return backend{io: regio.NewFile(), close: func() error { return nil }}, nil
	}
	return backend{}, errors.Errorf("unknown backend kind %q", c.Kind)
}
