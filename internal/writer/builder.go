// internal/writer/builder.go
package writer

import (
	"time"

	"github.com/pkg/errors"

	cfg "github.com/tamzrod/nicplane/internal/config"
	wmodbus "github.com/tamzrod/nicplane/internal/writer/modbus"
	wredis "github.com/tamzrod/nicplane/internal/writer/redis"
)

// BuildPlan converts one device config into a publishing Plan.
// Assumes config has already passed Validate and Normalize.
func BuildPlan(d cfg.DeviceConfig) (Plan, error) {
	if d.Name == "" {
		return Plan{}, errors.New("writer: device.name required")
	}

	plan := Plan{DeviceName: d.Name}
	if d.Status == nil {
		return plan, nil
	}

	s := d.Status
	if s.Endpoint != "" {
		plan.Status = &StatusPlan{
			Endpoint:   s.Endpoint,
			UnitID:     s.UnitID,
			BaseSlot:   s.Slot,
			DeviceName: s.DeviceName,
		}
	}
	if s.Redis != nil {
		plan.Redis = &RedisPlan{Addr: s.Redis.Addr, Key: s.Redis.Key}
	}
	return plan, nil
}

// BuildWriters creates every writer the plan enables.
// The returned Multi is empty when status publishing is disabled.
func BuildWriters(plan Plan, timeout time.Duration) (Multi, func() error, error) {
	var (
		out     Multi
		closers []func() error
	)

	closeAll := func() error {
		var last error
		for _, fn := range closers {
			if err := fn(); err != nil {
				last = err
			}
		}
		return last
	}

	if plan.Status != nil {
		c, err := wmodbus.NewEndpointClient(wmodbus.Config{
			Endpoint: plan.Status.Endpoint,
			Timeout:  timeout,
		})
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, c.Close)

		sw, _ := NewDeviceStatusWriter(plan, c)
		out = append(out, sw)
	}

	if plan.Redis != nil {
		p, err := wredis.New(wredis.Config{
			Addr:       plan.Redis.Addr,
			Key:        plan.Redis.Key,
			DeviceName: plan.DeviceName,
			Timeout:    timeout,
		})
		if err != nil {
			_ = closeAll()
			return nil, nil, err
		}
		closers = append(closers, p.Close)
		out = append(out, p)
	}

	return out, closeAll, nil
}
