package config

import "testing"

func TestAddDeviceUpsertsByPortName(t *testing.T) {
	c := DefaultConfig()
	c.AddDevice(DeviceConfig{PortName: "IAC Bus 1", Out: true})
	c.AddDevice(DeviceConfig{PortName: "IAC Bus 1", Out: true, SendClk: true})

	if len(c.Devices) != 1 {
		t.Fatalf("expected upsert to keep one device, got %d", len(c.Devices))
	}
	if !c.Devices[0].SendClk {
		t.Fatalf("expected the second AddDevice to have overwritten the first")
	}
}

func TestClockSourceFindsFlaggedDevice(t *testing.T) {
	c := DefaultConfig()
	c.AddDevice(DeviceConfig{PortName: "A", Out: true})
	c.AddDevice(DeviceConfig{PortName: "B", In: true, IsClockSrc: true})

	src := c.ClockSource()
	if src == nil || src.PortName != "B" {
		t.Fatalf("expected clock source B, got %+v", src)
	}
	if c.MTCSource() != nil {
		t.Fatalf("expected no MTC source configured")
	}
}
