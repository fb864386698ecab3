// cmd/nicctl/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"
	"golang.org/x/sync/errgroup"

	"github.com/tamzrod/nicplane/internal/config"
	"github.com/tamzrod/nicplane/internal/fault"
	"github.com/tamzrod/nicplane/internal/monitor"
	"github.com/tamzrod/nicplane/internal/regio"
	"github.com/tamzrod/nicplane/internal/writer"
)

const usage = "usage: nicctl [-once] [-no-pcs] [-reset] -config FILE"

func main() {
	flag, args := flags.New(os.Args[1:], "-once", "-no-pcs", "-reset")
	parm, args := parms.New(args, "-config")

	cfgPath := parm.ByName["-config"]
	if cfgPath == "" && len(args) == 1 {
		cfgPath, args = args[0], args[1:]
	}
	if cfgPath == "" || len(args) > 0 {
		log.Fatal(usage)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	d := &cfg.Device
	sink := fault.LogSink{}

	// --------------------
	// Backend + status writers
	// --------------------

	be, err := openBackend(d.Backend, sink)
	if err != nil {
		log.Fatalf("backend open failed (device=%s): %v", d.Name, err)
	}
	defer be.close()

	plan, err := writer.BuildPlan(*d)
	if err != nil {
		log.Fatalf("writer plan failed (device=%s): %v", d.Name, err)
	}
	timeout := time.Duration(d.Backend.TimeoutMs) * time.Millisecond
	writers, closeWriters, err := writer.BuildWriters(plan, timeout)
	if err != nil {
		log.Fatalf("status writers failed (device=%s): %v", d.Name, err)
	}
	defer closeWriters()

	tracker := monitor.NewTracker()
	publish := func(what string) {
		if len(writers) == 0 {
			return
		}
		if err := writers.WriteStatus(tracker.Snapshot()); err != nil {
			log.Printf("status write failed on %s (device=%s): %v", what, d.Name, err)
		}
	}

	// --------------------
	// Bring-up
	// --------------------

	dev, err := bringup(d, be.io, sink, bringupOptions{
		reset: flag.ByName["-reset"],
		pcs:   !flag.ByName["-no-pcs"],
	})
	if err != nil {
		// leave the failure visible to status readers before exiting
		tracker.Apply(monitor.Result{Device: d.Name, At: time.Now(), Stale: regio.Err(be.io) != nil, Err: err})
		publish("bring-up")
		closeWriters()
		be.close()
		log.Fatalf("bring-up failed (device=%s): %v", d.Name, err)
	}

	mon, err := monitor.New(monitor.Config{
		Device:   d.Name,
		Interval: time.Duration(d.Safety.IntervalMs) * time.Millisecond,
	}, dev.validators())
	if err != nil {
		log.Fatalf("monitor build failed (device=%s): %v", d.Name, err)
	}
	if dev.xpcs != nil {
		mon.Link = dev.xpcs
	}
	if be.health != nil {
		mon.Backend = be.health
	}

	if flag.ByName["-once"] {
		res := mon.CheckOnce()
		tracker.Apply(res)
		publish("check")
		if res.Err != nil {
			closeWriters()
			be.close()
			log.Fatalf("validation failed (device=%s): %v", d.Name, res.Err)
		}
		log.Printf("validation ok (device=%s link=%dMb/s)", d.Name, res.LinkMbps)
		return
	}

	// --------------------
	// Supervised monitor + status loop
	// --------------------

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	out := make(chan monitor.Result)

	g.Go(func() error {
		mon.Run(ctx, out)
		return nil
	})

	// Orchestrator (loop-owned tracker + 1Hz seconds ticker)
	g.Go(func() error {
		secTicker := time.NewTicker(time.Second)
		defer secTicker.Stop()

		// Full block write on start (identity re-assert).
		publish("start")

		for {
			select {
			case <-ctx.Done():
				return nil

			case res := <-out:
				if res.Err != nil {
					log.Printf("validation failed (device=%s stale=%t): %v", d.Name, res.Stale, res.Err)
				}
				if tracker.Apply(res) {
					publish("change")
				}

			case <-secTicker.C:
				if tracker.Tick() {
					publish("tick")
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		log.Printf("stopped (device=%s): %v", d.Name, err)
	}
	log.Printf("shutdown (device=%s)", d.Name)
}
