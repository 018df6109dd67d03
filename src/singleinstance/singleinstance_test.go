package singleinstance

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

// freePort picks an unused loopback port and points the range at it.
func freePort(t *testing.T) int {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("loopback unavailable in this environment: %v", err)
	}
	port := lis.Addr().(*net.TCPAddr).Port
	lis.Close()
	t.Setenv(portStartEnv, strconv.Itoa(port))
	t.Setenv(portEndEnv, strconv.Itoa(port))
	return port
}

func startServer(t *testing.T, ctx context.Context) Server {
	t.Helper()
	srv := NewServer()
	if err := srv.Start(ctx); err != nil {
		t.Skipf("tcp listener unavailable in this environment: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestServeToggleAndStatus(t *testing.T) {
	port := freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	srv := startServer(t, ctx)
	if srv.Port() != port {
		t.Fatalf("expected port %d, got %d", port, srv.Port())
	}

	var running atomic.Bool
	go Serve(ctx, srv, func(ctx context.Context, cmd Command) (string, error) {
		switch cmd {
		case CommandToggle:
			running.Store(!running.Load())
			return fmt.Sprintf("running=%v", running.Load()), nil
		case CommandStatus:
			return fmt.Sprintf("running=%v", running.Load()), nil
		}
		return "", fmt.Errorf("unknown command %q", cmd)
	})

	client := NewClient()
	delegated, body, err := client.Send(ctx, CommandToggle)
	if err != nil || !delegated {
		t.Fatalf("toggle: delegated=%v err=%v", delegated, err)
	}
	if body != "running=true" {
		t.Errorf("unexpected toggle body %q", body)
	}

	_, body, err = client.Send(ctx, CommandStatus)
	if err != nil || body != "running=true" {
		t.Errorf("unexpected status %q err=%v", body, err)
	}

	delegated, _, err = client.Send(ctx, Command("REBOOT"))
	if !delegated || err == nil {
		t.Fatalf("expected delegated error for unknown command, got delegated=%v err=%v", delegated, err)
	}
}

func TestSecondStartReportsAlreadyRunning(t *testing.T) {
	freePort(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	startServer(t, ctx)

	if err := NewServer().Start(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if port, ok := DetectResidentPort(ctx); !ok || port == 0 {
		t.Fatal("expected the resident to be detected")
	}
}

func TestSendWithoutResident(t *testing.T) {
	freePort(t)
	delegated, _, err := NewClient().Send(context.Background(), CommandStatus)
	if delegated || err != nil {
		t.Fatalf("expected no delegation, got delegated=%v err=%v", delegated, err)
	}
}

func TestGetPortRange(t *testing.T) {
	tests := []struct {
		start, end         string
		wantStart, wantEnd int
	}{
		{"", "", defaultPortStart, defaultPortEnd},
		{"abc", "", defaultPortStart, defaultPortEnd},
		{"80", "2000", 1024, 2000},
		{"70000", "60000", 60000, 65535},
	}
	for _, tt := range tests {
		t.Setenv(portStartEnv, tt.start)
		t.Setenv(portEndEnv, tt.end)
		start, end := getPortRange()
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("range(%q,%q) = %d..%d, want %d..%d", tt.start, tt.end, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}
