package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/grahamseamans/seqcore/device"
	"github.com/grahamseamans/seqcore/engine"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	switch os.Args[1] {
	case "list":
		listPorts()
	case "detect":
		detectPort(arg(2, ""))
	case "sysex":
		sendSysex(arg(2, ""), os.Args[3:])
	case "clock":
		driveClock(arg(2, ""), argInt(3, 120), argInt(4, 5))
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI diagnostic scripts, exercising the device/engine packages directly")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                         - list all MIDI ports")
	fmt.Println("  detect <name substring>      - find a port and wrap it in a device.Device")
	fmt.Println("  sysex <port name> <hex ...>  - send raw sysex bytes via device.Device.SendRaw")
	fmt.Println("  clock <port name> <bpm> <s>  - run an engine.Engine sending it MIDI clock for s seconds")
	fmt.Println("  poll                         - poll for device hot-plug changes")
}

func arg(i int, def string) string {
	if i < len(os.Args) {
		return os.Args[i]
	}
	return def
}

func argInt(i, def int) int {
	if i >= len(os.Args) {
		return def
	}
	n, err := strconv.Atoi(os.Args[i])
	if err != nil {
		return def
	}
	return n
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

// detectPort scans for a port whose name contains substr and wraps
// whichever directions resolve under that name in a real
// device.Device via device.FindPort/device.New/device.NewMidiV2Backend
// so the rest of this tool's output reflects what the engine itself
// would see (unit, mode), not just the raw driver listing.
func detectPort(substr string) {
	if substr == "" {
		fmt.Println("usage: miditest detect <name substring>")
		return
	}
	fmt.Printf("Looking for a port matching %q...\n", substr)

	name := matchPortName(substr)
	if name == "" {
		fmt.Println("No matching port found")
		return
	}

	in, out := device.FindPort(name)
	mode := device.Mode(0)
	if in != nil {
		mode |= device.ModeIn
	}
	if out != nil {
		mode |= device.ModeOut
	}
	if mode == 0 {
		fmt.Printf("Matched %q but could not resolve a usable port\n", name)
		return
	}

	d := device.New(device.NewMidiV2Backend(in, out), 0, mode)
	fmt.Printf("Found %q: wrapped as device.Device{Unit: %d, Mode: %v}\n", name, d.Unit, d.Mode)
}

// matchPortName returns the first input or output port name whose
// lowercased form contains substr, or "" if none matches.
func matchPortName(substr string) string {
	substr = strings.ToLower(substr)
	for _, p := range midi.GetInPorts() {
		if strings.Contains(strings.ToLower(p.String()), substr) {
			return p.String()
		}
	}
	for _, p := range midi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), substr) {
			return p.String()
		}
	}
	return ""
}

// sendSysex resolves portName to a device.Device and writes raw bytes
// via Device.SendRaw, the same call path the engine uses for MMC and
// active-sensing traffic, in place of calling gomidi.SendTo directly.
func sendSysex(portName string, hexArgs []string) {
	if portName == "" || len(hexArgs) == 0 {
		fmt.Println("usage: miditest sysex <port name> <hex byte> [hex byte ...]")
		return
	}

	_, out := device.FindPort(portName)
	if out == nil {
		fmt.Printf("No output port named %q\n", portName)
		return
	}
	d := device.New(device.NewMidiV2Backend(nil, out), 0, device.ModeOut)

	raw := make([]byte, 0, len(hexArgs)+2)
	raw = append(raw, 0xF0)
	for _, h := range hexArgs {
		b, err := strconv.ParseUint(strings.TrimPrefix(h, "0x"), 16, 8)
		if err != nil {
			fmt.Printf("bad hex byte %q: %v\n", h, err)
			return
		}
		raw = append(raw, byte(b))
	}
	raw = append(raw, 0xF7)

	fmt.Printf("Sending sysex %x via device.Device.SendRaw\n", raw)
	if err := d.SendRaw(raw); err != nil {
		fmt.Printf("Error: %v\n", err)
	}
}

// driveClock opens portName as a clock-sending output device, wires
// it into a real engine.Engine, starts the transport, and lets the
// engine's own internal-timer tick loop emit MIDI clock bytes for
// seconds — an end-to-end exercise of device+engine+transport against
// live hardware rather than a hand-rolled send loop.
func driveClock(portName string, bpm, seconds int) {
	if portName == "" {
		fmt.Println("usage: miditest clock <port name> [bpm] [seconds]")
		return
	}

	_, out := device.FindPort(portName)
	if out == nil {
		fmt.Printf("No output port named %q\n", portName)
		return
	}

	d := device.New(device.NewMidiV2Backend(nil, out), 0, device.ModeOut)
	d.SendClk = true

	e := engine.New([]*device.Device{d})
	if err := e.Open(); err != nil {
		fmt.Printf("engine open: %v\n", err)
		return
	}
	defer e.Close()

	e.Transport.ChgTempo(60 * 24_000_000 / uint32(bpm*24))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	e.Transport.StartReq(false)
	fmt.Printf("Sending MIDI clock at %d bpm to %q for %ds...\n", bpm, portName, seconds)
	time.Sleep(time.Duration(seconds) * time.Second)

	e.Transport.StopReq()
	cancel()
	<-done
	fmt.Println("Done!")
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a device to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)
			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
