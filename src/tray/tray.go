package tray

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"dental-intake-ocr/src/analysis"
	"dental-intake-ocr/src/notification"
)

const (
	appTitle       = "Dental Intake OCR"
	commandTimeout = 5 * time.Second
)

// Controller is the part of the analysis loop the tray drives.
type Controller interface {
	Toggle(ctx context.Context) (analysis.Snapshot, error)
	Snapshot(ctx context.Context) (analysis.Snapshot, error)
}

// Options wires the tray to the rest of the process.
type Options struct {
	Controller Controller
	// URL of the intake form opened by "Open Intake Form".
	URL string
	// Copy places text on the clipboard.
	Copy func(string) error
	// OnExit runs after the tray is torn down.
	OnExit func()
}

// Tray owns the system tray icon and menu.
type Tray struct {
	opts Options

	mu        sync.Mutex
	toggle    *systray.MenuItem
	copy      *systray.MenuItem
	pending   *analysis.Snapshot
	lastFault string
}

func New(opts Options) *Tray {
	return &Tray{opts: opts}
}

// Run blocks until Quit. It must be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit removes the icon and unblocks Run.
func (t *Tray) Quit() {
	systray.Quit()
}

// Update reflects a state change in the menu and tooltip. Safe before the tray is ready.
func (t *Tray) Update(snap analysis.Snapshot) {
	t.mu.Lock()
	if t.toggle == nil {
		t.pending = &snap
		t.mu.Unlock()
		return
	}
	fault := ""
	if snap.LastError != "" && !snap.Running {
		fault = snap.ActivationID + "\x00" + snap.LastError
	}
	notify := fault != "" && fault != t.lastFault
	t.lastFault = fault
	toggle, copyItem := t.toggle, t.copy
	t.mu.Unlock()

	toggle.SetTitle(snap.Label)
	systray.SetTooltip(Tooltip(snap))
	if snap.Results != "" {
		copyItem.Enable()
	} else {
		copyItem.Disable()
	}
	if notify {
		notification.ShowError("Analysis stopped", snap.LastError)
	}
}

// Tooltip summarizes the loop state for the tray icon.
func Tooltip(snap analysis.Snapshot) string {
	switch {
	case snap.Running && snap.Cycles == 1:
		return appTitle + ": analyzing (1 cycle)"
	case snap.Running:
		return fmt.Sprintf("%s: analyzing (%d cycles)", appTitle, snap.Cycles)
	case snap.LastError != "":
		return appTitle + ": " + snap.Status
	default:
		return appTitle + ": idle"
	}
}

func (t *Tray) onReady() {
	systray.SetIcon(Icon())
	systray.SetTitle(appTitle)
	systray.SetTooltip(appTitle)

	mToggle := systray.AddMenuItem(analysis.LabelStart, "Start or stop periodic screenshot analysis")
	mOpen := systray.AddMenuItem("Open Intake Form", "Open the patient intake form in a browser")
	mCopy := systray.AddMenuItem("Copy Results", "Copy the last analysis results")
	mCopy.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit the application")

	t.mu.Lock()
	t.toggle, t.copy = mToggle, mCopy
	pending := t.pending
	t.pending = nil
	t.mu.Unlock()
	if pending != nil {
		t.Update(*pending)
	}

	go func() {
		for {
			select {
			case <-mToggle.ClickedCh:
				t.handleToggle()
			case <-mOpen.ClickedCh:
				if err := OpenBrowser(t.opts.URL); err != nil {
					log.Printf("tray: open %s: %v", t.opts.URL, err)
				}
			case <-mCopy.ClickedCh:
				t.handleCopy()
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	if t.opts.OnExit != nil {
		t.opts.OnExit()
	}
}

func (t *Tray) handleToggle() {
	if t.opts.Controller == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	snap, err := t.opts.Controller.Toggle(ctx)
	if err != nil {
		log.Printf("tray: toggle: %v", err)
		return
	}
	log.Printf("tray: %s", snap.Status)
}

func (t *Tray) handleCopy() {
	if t.opts.Controller == nil || t.opts.Copy == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()
	snap, err := t.opts.Controller.Snapshot(ctx)
	if err != nil {
		log.Printf("tray: snapshot: %v", err)
		return
	}
	if err := t.opts.Copy(snap.Results); err != nil {
		log.Printf("tray: copy results: %v", err)
		return
	}
	log.Printf("tray: copied %d bytes of results", len(snap.Results))
}
