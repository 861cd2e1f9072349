// Package sysinfo identifies the machine a run executes on.
package sysinfo

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
)

// Machine is the identity written into the run header.
type Machine struct {
	Name     string
	Hardware string
	RunID    string
}

// Describe returns the machine identity. Configured values take precedence;
// anything left empty is filled from the host.
func Describe(ctx context.Context, name, hardware string) Machine {
	m := Machine{Name: name, Hardware: hardware, RunID: uuid.NewString()}
	if m.Name == "" {
		m.Name = hostname(ctx)
	}
	if m.Hardware == "" {
		m.Hardware = hardwareSummary(ctx)
	}
	return m
}

func hostname(ctx context.Context) string {
	if info, err := host.InfoWithContext(ctx); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if h, err := os.Hostname(); err == nil {
		return h
	}
	return "unknown"
}

// hardwareSummary renders CPU model, core count and OS, e.g.
// "Intel(R) Xeon(R) CPU E5-2690 v4, 28 logical cores, linux/amd64 (ubuntu 22.04)".
func hardwareSummary(ctx context.Context) string {
	var parts []string

	model := ""
	if infos, err := cpu.InfoWithContext(ctx); err == nil && len(infos) > 0 {
		model = strings.TrimSpace(infos[0].ModelName)
	}
	if model != "" {
		parts = append(parts, model)
	}

	cores := runtime.NumCPU()
	if n, err := cpu.CountsWithContext(ctx, true); err == nil && n > 0 {
		cores = n
	}
	parts = append(parts, fmt.Sprintf("%d logical cores", cores))

	platform := runtime.GOOS + "/" + runtime.GOARCH
	if info, err := host.InfoWithContext(ctx); err == nil && info.Platform != "" {
		platform += fmt.Sprintf(" (%s %s)", info.Platform, info.PlatformVersion)
	}
	parts = append(parts, platform)

	return strings.Join(parts, ", ")
}
