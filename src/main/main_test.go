package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"dental-intake-ocr/src/analysis"
	"dental-intake-ocr/src/singleinstance"
)

type fakeClient struct {
	delegated bool
	body      string
	err       error
	sent      []singleinstance.Command
}

func (f *fakeClient) Send(ctx context.Context, cmd singleinstance.Command) (bool, string, error) {
	f.sent = append(f.sent, cmd)
	return f.delegated, f.body, f.err
}

type fakeController struct {
	snap analysis.Snapshot
	err  error
}

func (f *fakeController) Toggle(ctx context.Context) (analysis.Snapshot, error) {
	if f.err != nil {
		return analysis.Snapshot{}, f.err
	}
	f.snap.Running = !f.snap.Running
	f.snap.Label = analysis.Label(f.snap.Running)
	return f.snap, nil
}

func (f *fakeController) Snapshot(ctx context.Context) (analysis.Snapshot, error) {
	return f.snap, f.err
}

func TestNewRootCmdParsesFlags(t *testing.T) {
	opts := &mainOptions{}
	cmd := newRootCmd(opts, &fakeClient{})
	if err := cmd.ParseFlags([]string{"--api-key-path", "/tmp/key", "--listen", "127.0.0.1:9000", "--no-tray", "--no-hotkey"}); err != nil {
		t.Fatalf("ParseFlags failed: %v", err)
	}
	if opts.apiKeyPath != "/tmp/key" {
		t.Fatalf("Expected apiKeyPath=/tmp/key, got %q", opts.apiKeyPath)
	}
	if opts.listenAddr != "127.0.0.1:9000" || !opts.noTray || !opts.noHotkey {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestSubcommandsRegistered(t *testing.T) {
	cmd := newRootCmd(&mainOptions{}, &fakeClient{})
	for _, name := range []string{"toggle", "status", "form"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("expected subcommand %q, got %v (%v)", name, sub, err)
		}
	}
}

func TestToggleDelegatesToResident(t *testing.T) {
	client := &fakeClient{delegated: true, body: `{"running": true}`}
	cmd := newRootCmd(&mainOptions{}, client)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"toggle"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(client.sent) != 1 || client.sent[0] != singleinstance.CommandToggle {
		t.Fatalf("expected one TOGGLE, got %v", client.sent)
	}
	if strings.TrimSpace(out.String()) != `{"running": true}` {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestDelegateWithoutResident(t *testing.T) {
	var out bytes.Buffer
	err := delegate(context.Background(), &fakeClient{}, singleinstance.CommandStatus, &out)
	if err == nil || !strings.Contains(err.Error(), "no running instance") {
		t.Fatalf("expected no-instance error, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output, got %q", out.String())
	}
}

func TestDelegateSurfacesResidentError(t *testing.T) {
	err := delegate(context.Background(), &fakeClient{delegated: true, err: errors.New("busy")}, singleinstance.CommandToggle, &bytes.Buffer{})
	if err == nil || err.Error() != "busy" {
		t.Fatalf("expected resident error, got %v", err)
	}
}

func TestCommandHandler(t *testing.T) {
	ctrl := &fakeController{}
	handle := commandHandler(ctrl)

	body, err := handle(context.Background(), singleinstance.CommandToggle)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	var snap analysis.Snapshot
	if err := json.Unmarshal([]byte(body), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !snap.Running || snap.Label != "Stop Analysis" {
		t.Fatalf("unexpected toggle body %+v", snap)
	}

	body, err = handle(context.Background(), singleinstance.CommandStatus)
	if err != nil || !strings.Contains(body, `"running": true`) {
		t.Fatalf("unexpected status %q %v", body, err)
	}

	if _, err := handle(context.Background(), singleinstance.Command("RUN-ONCE")); err == nil {
		t.Fatal("expected error for unknown command")
	}

	ctrl.err = errors.New("analysis loop is not running")
	if _, err := handle(context.Background(), singleinstance.CommandStatus); err == nil {
		t.Fatal("expected controller error to surface")
	}
}

func TestFormURL(t *testing.T) {
	tests := []struct {
		addr string
		want string
	}{
		{"127.0.0.1:8501", "http://127.0.0.1:8501/"},
		{":8501", "http://127.0.0.1:8501/"},
		{"0.0.0.0:9000", "http://127.0.0.1:9000/"},
		{"localhost:8080", "http://localhost:8080/"},
	}
	for _, tt := range tests {
		if got := formURL(tt.addr); got != tt.want {
			t.Errorf("formURL(%q) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}
