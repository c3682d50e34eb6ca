// Package sysres reads host and accelerator memory pressure. Queries only,
// no mutation; the residency manager polls it before load decisions.
package sysres

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Sensor reports current memory pressure.
type Sensor interface {
	// HostRAMPercent returns used host RAM as a percentage (0-100).
	HostRAMPercent() float64
	// AcceleratorMemory returns used/total accelerator memory in MB.
	// ok is false when no accelerator is present or the probe failed.
	AcceleratorMemory() (usedMB, totalMB uint64, ok bool)
}

// HostSensor probes /proc/meminfo and nvidia-smi.
type HostSensor struct {
	meminfoPath  string
	smiPath      string
	probeTimeout time.Duration
}

// NewHostSensor returns a sensor for the local machine.
func NewHostSensor() *HostSensor {
	return &HostSensor{
		meminfoPath:  "/proc/meminfo",
		smiPath:      "nvidia-smi",
		probeTimeout: 2 * time.Second,
	}
}

// HasAccelerator reports whether an accelerator probe succeeds at all.
// Used once at startup to pick the device.
func (s *HostSensor) HasAccelerator() bool {
	_, _, ok := s.AcceleratorMemory()
	return ok
}

func (s *HostSensor) HostRAMPercent() float64 {
	f, err := os.Open(s.meminfoPath)
	if err != nil {
		return 0
	}
	defer f.Close()

	var totalKB, availKB uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "MemTotal:"):
			totalKB = meminfoKB(line)
		case strings.HasPrefix(line, "MemAvailable:"):
			availKB = meminfoKB(line)
		}
		if totalKB > 0 && availKB > 0 {
			break
		}
	}
	if totalKB == 0 {
		return 0
	}
	return float64(totalKB-availKB) / float64(totalKB) * 100
}

func meminfoKB(line string) uint64 {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return 0
	}
	v, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	return v
}

func (s *HostSensor) AcceleratorMemory() (uint64, uint64, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), s.probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, s.smiPath,
		"--query-gpu=memory.used,memory.total",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, 0, false
	}

	// First GPU only; the model runs on device 0.
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	usedStr, totalStr, found := strings.Cut(line, ",")
	if !found {
		return 0, 0, false
	}
	used, err1 := strconv.ParseUint(strings.TrimSpace(usedStr), 10, 64)
	total, err2 := strconv.ParseUint(strings.TrimSpace(totalStr), 10, 64)
	if err1 != nil || err2 != nil || total == 0 {
		return 0, 0, false
	}
	return used, total, true
}
