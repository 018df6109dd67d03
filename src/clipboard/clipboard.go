package clipboard

import (
	"errors"
	"fmt"
	"sync"

	"golang.design/x/clipboard"
)

// ErrNothingToCopy is returned for empty text; the clipboard is left untouched.
var ErrNothingToCopy = errors.New("nothing to copy")

var (
	initOnce sync.Once
	initErr  error
	writeMu  sync.Mutex
)

// Init prepares the system clipboard. Safe to call more than once.
func Init() error {
	initOnce.Do(func() {
		initErr = clipboard.Init()
		if initErr != nil {
			initErr = fmt.Errorf("clipboard unavailable: %w", initErr)
		}
	})
	return initErr
}

// Write copies text (for example the last analysis results) to the clipboard.
// Writes are serialized.
func Write(text string) error {
	if text == "" {
		return ErrNothingToCopy
	}
	if err := Init(); err != nil {
		return err
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}
