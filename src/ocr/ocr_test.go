package ocr

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"dental-intake-ocr/src/llm"
)

type fakeClient struct {
	text  string
	err   error
	seen  [][]byte
	calls int
}

func (f *fakeClient) Extract(ctx context.Context, imageData []byte) (string, error) {
	f.calls++
	f.seen = append(f.seen, append([]byte(nil), imageData...))
	return f.text, f.err
}

func TestRunWritesFileAndUploadsIt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "screenshot.png")
	client := &fakeClient{text: `{"name":"John"}`}

	captures := [][]byte{[]byte("first-capture-bytes"), []byte("second")}
	i := 0
	e := &Extractor{Path: path, Client: client, Capture: func() ([]byte, error) {
		data := captures[i]
		i++
		return data, nil
	}}

	for range captures {
		text, err := e.Run(context.Background())
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if text != `{"name":"John"}` {
			t.Fatalf("unexpected text %q", text)
		}
	}

	if client.calls != 2 {
		t.Fatalf("expected 2 remote calls, got %d", client.calls)
	}
	if !bytes.Equal(client.seen[1], []byte("second")) {
		t.Errorf("expected second upload to carry the second capture, got %q", client.seen[1])
	}

	stored, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(stored) != "second" {
		t.Errorf("expected file overwritten by latest capture, got %q", stored)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected a single screenshot file, found %d", len(entries))
	}
}

func TestRunCaptureFailure(t *testing.T) {
	client := &fakeClient{}
	e := &Extractor{Path: filepath.Join(t.TempDir(), "s.png"), Client: client, Capture: func() ([]byte, error) {
		return nil, errors.New("no display")
	}}
	_, err := e.Run(context.Background())
	if StageOf(err) != StageCapture {
		t.Fatalf("expected capture stage, got %v", err)
	}
	if client.calls != 0 {
		t.Error("remote must not be called after capture failure")
	}
}

func TestRunFileFailure(t *testing.T) {
	e := &Extractor{Path: filepath.Join(t.TempDir(), "missing-dir", "s.png"), Client: &fakeClient{}, Capture: func() ([]byte, error) {
		return []byte("png"), nil
	}}
	_, err := e.Run(context.Background())
	if StageOf(err) != StageFile {
		t.Fatalf("expected file stage, got %v", err)
	}
}

func TestRunRemoteFailureKeepsCause(t *testing.T) {
	e := &Extractor{Path: filepath.Join(t.TempDir(), "s.png"), Client: &fakeClient{err: llm.ErrMissingAPIKey}, Capture: func() ([]byte, error) {
		return []byte("png"), nil
	}}
	_, err := e.Run(context.Background())
	if StageOf(err) != StageRemote {
		t.Fatalf("expected remote stage, got %v", err)
	}
	if !errors.Is(err, llm.ErrMissingAPIKey) {
		t.Errorf("expected cause to unwrap to ErrMissingAPIKey, got %v", err)
	}
	if !llm.IsAuthError(err) {
		t.Error("expected auth classification through CycleError")
	}
}

func TestRunCancelledBeforeUpload(t *testing.T) {
	client := &fakeClient{}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Extractor{Path: filepath.Join(t.TempDir(), "s.png"), Client: client, Capture: func() ([]byte, error) {
		cancel()
		return []byte("png"), nil
	}}
	_, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if client.calls != 0 {
		t.Error("remote must not be called once cancelled")
	}
}

func TestRecognizeImageWithoutClient(t *testing.T) {
	e := &Extractor{}
	if _, err := e.RecognizeImage(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected error without client")
	}
}
