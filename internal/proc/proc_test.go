package proc

import (
	"strings"
	"testing"
	"time"
)

func feed(a *accumulator, lines ...string) {
	for _, l := range lines {
		if strings.HasPrefix(l, "E:") {
			a.add(Stderr, strings.TrimPrefix(l, "E:"))
		} else {
			a.add(Stdout, l)
		}
	}
}

func TestAccumulator_StderrTakesLastThreeStdoutLines(t *testing.T) {
	t.Parallel()
	a := newAccumulator(Options{})
	feed(a, "1\n", "2\n", "3\n", "4\n", "E:boom\n", "5\n")

	res := a.finish(Status{ReturnCode: 0}, 0)
	want := "2\n3\n4\nboom\n"
	if res.Errors != want {
		t.Errorf("Errors = %q, want %q", res.Errors, want)
	}
}

func TestAccumulator_WindowResetsAfterError(t *testing.T) {
	t.Parallel()
	a := newAccumulator(Options{})
	feed(a, "a\n", "E:first\n", "E:second\n")

	res := a.finish(Status{}, 0)
	want := "a\nfirst\nsecond\n"
	if res.Errors != want {
		t.Errorf("Errors = %q, want %q", res.Errors, want)
	}
}

func TestAccumulator_IgnoredStderr(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		ignore string
		line   string
		want   string
	}{
		{"default PIE", "", "ld: warning: PIE disabled\n", ""},
		{"custom ignore", "note:", "note: inlined\n", ""},
		{"custom ignore keeps PIE", "note:", "PIE\n", "PIE\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAccumulator(Options{Ignore: tt.ignore})
			a.add(Stderr, tt.line)
			if got := a.finish(Status{}, 0).Errors; got != tt.want {
				t.Errorf("Errors = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAccumulator_FallbackToLastTenStdoutLines(t *testing.T) {
	t.Parallel()
	a := newAccumulator(Options{})
	for i := 0; i < 15; i++ {
		a.add(Stdout, string(rune('a'+i))+"\n")
	}

	res := a.finish(Status{ReturnCode: 2}, 0)
	want := "f\ng\nh\ni\nj\nk\nl\nm\nn\no\nreturn code 2\n"
	if res.Errors != want {
		t.Errorf("Errors = %q, want %q", res.Errors, want)
	}
}

func TestAccumulator_SuccessHasNoSummary(t *testing.T) {
	t.Parallel()
	a := newAccumulator(Options{KeepOutput: true})
	feed(a, "built\n", "E:PIE\n")

	res := a.finish(Status{}, 0)
	if res.Errors != "" {
		t.Errorf("Errors = %q, want empty", res.Errors)
	}
	if res.Output != "built\nPIE\n" {
		t.Errorf("Output = %q", res.Output)
	}
	if res.Stdout != "built\n" || res.Stderr != "PIE\n" {
		t.Errorf("Stdout/Stderr = %q/%q", res.Stdout, res.Stderr)
	}
}

func TestAccumulator_OutputOnlyWhenKept(t *testing.T) {
	t.Parallel()
	a := newAccumulator(Options{})
	a.add(Stdout, "x\n")
	if got := a.finish(Status{}, 0).Output; got != "" {
		t.Errorf("Output = %q, want empty without KeepOutput", got)
	}
}

func TestAccumulator_Echo(t *testing.T) {
	t.Parallel()
	var echo strings.Builder
	a := newAccumulator(Options{Echo: &echo})
	feed(a, "one\n", "E:two\n")
	if echo.String() != "one\ntwo\n" {
		t.Errorf("echo = %q", echo.String())
	}
}

func TestAccumulator_TimedOut(t *testing.T) {
	t.Parallel()
	a := newAccumulator(Options{})
	res := a.finish(Status{ReturnCode: -9, TimedOut: true}, 2*time.Second)
	if !strings.HasSuffix(res.Errors, "timed out after 2s\n") {
		t.Errorf("Errors = %q", res.Errors)
	}
	if !res.Failed() {
		t.Error("Failed() = false for a timed out process")
	}
}

func TestStatus_String(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{-11, "SIGSEGV"},
		{-6, "SIGABRT"},
		{-4, "SIGILL"},
		{3, "return code 3"},
		{-15, "return code -15"},
	}
	for _, tt := range tests {
		if got := (Status{ReturnCode: tt.code}).String(); got != tt.want {
			t.Errorf("Status{%d}.String() = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestStatus_Signal(t *testing.T) {
	if _, ok := (Status{ReturnCode: 1}).Signal(); ok {
		t.Error("Signal() ok for a plain exit code")
	}
	sig, ok := (Status{ReturnCode: -11}).Signal()
	if !ok || int(sig) != 11 {
		t.Errorf("Signal() = %v, %v", sig, ok)
	}
}
