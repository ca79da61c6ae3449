package process

import (
	"context"
	"testing"
	"time"
)

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	e := New()
	res, err := e.Run(context.Background(), "", nil, 5*time.Second, []string{"echo", "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Stdout) != "hello\n" {
		t.Errorf("Stdout = %q", res.Stdout)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
}

func TestRunReportsNonZeroExit(t *testing.T) {
	e := New()
	res, err := e.Run(context.Background(), "", nil, 5*time.Second, []string{"sh", "-c", "exit 3"})
	if err != nil {
		t.Fatal(err)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
}

func TestRunTimesOut(t *testing.T) {
	e := New()
	_, err := e.Run(context.Background(), "", nil, 20*time.Millisecond, []string{"sleep", "5"})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
}
