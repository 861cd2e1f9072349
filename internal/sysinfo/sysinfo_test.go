package sysinfo

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestDescribe_ConfiguredValuesWin(t *testing.T) {
	m := Describe(context.Background(), "buildbox", "16 core workstation")
	if m.Name != "buildbox" || m.Hardware != "16 core workstation" {
		t.Errorf("Describe() = %+v", m)
	}
	if _, err := uuid.Parse(m.RunID); err != nil {
		t.Errorf("RunID %q is not a UUID: %v", m.RunID, err)
	}
}

func TestDescribe_FillsFromHost(t *testing.T) {
	m := Describe(context.Background(), "", "")
	if m.Name == "" {
		t.Error("Name is empty")
	}
	if !strings.Contains(m.Hardware, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Hardware = %q, want platform", m.Hardware)
	}
	if !strings.Contains(m.Hardware, "logical cores") {
		t.Errorf("Hardware = %q, want core count", m.Hardware)
	}
}

func TestDescribe_UniqueRunIDs(t *testing.T) {
	a := Describe(context.Background(), "x", "y")
	b := Describe(context.Background(), "x", "y")
	if a.RunID == b.RunID {
		t.Error("run ids repeat")
	}
}
