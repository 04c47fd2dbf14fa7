// Command seqcore is the process entry point: load config, open the
// configured MIDI devices, wire them into an engine.Engine, and run
// either headless or under the monitor TUI. Grounded on the teacher's
// former root main.go wiring order (config -> devices -> manager ->
// TUI), generalized from a hardcoded single Launchpad to config's
// device list.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/grahamseamans/seqcore/config"
	"github.com/grahamseamans/seqcore/device"
	"github.com/grahamseamans/seqcore/engine"
	"github.com/grahamseamans/seqcore/logging"
	"github.com/grahamseamans/seqcore/monitor"
	"github.com/grahamseamans/seqcore/mtc"
)

func main() {
	headless := flag.Bool("headless", false, "run without the status monitor")
	debug := flag.Bool("debug", false, "enable debug logging to ~/.config/seqcore/debug.log")
	flag.Parse()

	if err := run(*headless, *debug); err != nil {
		log.Fatal(err)
	}
}

func run(headless, debug bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if debug {
		if err := logging.Enable(); err != nil {
			return fmt.Errorf("enable logging: %w", err)
		}
		defer logging.Disable()
		for _, s := range []logging.Subsystem{
			logging.Engine, logging.Device, logging.Transport, logging.MTC,
		} {
			logging.EnableSubsystem(s)
		}
	}

	devices, err := openDevices(cfg)
	if err != nil {
		return fmt.Errorf("open devices: %w", err)
	}

	e := engine.New(devices)
	e.Log = logging.F
	if err := e.Open(); err != nil {
		return fmt.Errorf("engine open: %w", err)
	}
	defer e.Close()

	wireSync(e, cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	runDone := make(chan error, 1)
	go func() { runDone <- e.Run(ctx) }()

	e.Transport.StartReq(false)

	if headless {
		<-ctx.Done()
	} else if err := monitor.Run(e); err != nil {
		cancel()
		return fmt.Errorf("monitor: %w", err)
	}

	cancel()
	<-runDone
	return nil
}

// openDevices resolves every configured port name against the system's
// MIDI drivers and wires each into a *device.Device, per §6's back-end
// contract. A device whose port cannot be found is skipped with a
// warning rather than aborting startup, matching §7's device-failure
// isolation: a partially-wired rig still runs.
func openDevices(cfg *config.Config) ([]*device.Device, error) {
	var devices []*device.Device
	for i, dc := range cfg.Devices {
		in, out := device.FindPort(dc.PortName)
		if in == nil && out == nil {
			fmt.Fprintf(os.Stderr, "seqcore: port %q not found, skipping\n", dc.PortName)
			continue
		}

		mode := device.Mode(0)
		if dc.In && in != nil {
			mode |= device.ModeIn
		}
		if dc.Out && out != nil {
			mode |= device.ModeOut
		}
		if mode == 0 {
			continue
		}

		d := device.New(device.NewMidiV2Backend(in, out), uint8(i), mode)
		d.RunningStatus = dc.RunningStatus
		d.SendClk = dc.SendClk
		d.SendMMC = dc.SendMMC
		if dc.TicRate > 0 {
			d.TicRate = uint32(dc.TicRate)
		}
		if dc.IsMTCSrc {
			d.MTC = mtc.New()
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// wireSync selects the transport's clock/MTC source device per the
// configured SyncSource, and applies the configured tempo/tick rate.
func wireSync(e *engine.Engine, cfg *config.Config) {
	if cfg.Transport.TempoBPM > 0 {
		e.Transport.ChgTempo(60 * 24_000_000 / uint32(cfg.Transport.TempoBPM*24))
	}
	if cfg.Transport.TicRate > 0 {
		e.Transport.ChgTicRate(uint32(cfg.Transport.TicRate))
	}

	switch cfg.Transport.Sync {
	case config.SyncClock:
		if src := cfg.ClockSource(); src != nil {
			if d := findDeviceByPort(e, cfg, src.PortName); d != nil {
				e.Transport.ClockSrc = d
			}
		}
	case config.SyncMTC:
		if src := cfg.MTCSource(); src != nil {
			if d := findDeviceByPort(e, cfg, src.PortName); d != nil {
				e.Transport.MTCSrc = d
			}
		}
	}
}

func findDeviceByPort(e *engine.Engine, cfg *config.Config, portName string) *device.Device {
	for i, dc := range cfg.Devices {
		if dc.PortName == portName {
			return e.Device(uint8(i))
		}
	}
	return nil
}
