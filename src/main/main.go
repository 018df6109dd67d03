package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"dental-intake-ocr/src/analysis"
	"dental-intake-ocr/src/clipboard"
	"dental-intake-ocr/src/config"
	"dental-intake-ocr/src/hotkey"
	"dental-intake-ocr/src/intake"
	"dental-intake-ocr/src/logutil"
	"dental-intake-ocr/src/runtimeinit"
	"dental-intake-ocr/src/singleinstance"
	"dental-intake-ocr/src/tray"
	"dental-intake-ocr/src/web"
)

const commandTimeout = 5 * time.Second

func init() {
	// The tray must run on the main OS thread.
	runtime.LockOSThread()
}

type mainOptions struct {
	apiKeyPath string
	listenAddr string
	noTray     bool
	noHotkey   bool
}

// controller is the slice of the analysis loop driven from outside the loop.
type controller interface {
	Toggle(ctx context.Context) (analysis.Snapshot, error)
	Snapshot(ctx context.Context) (analysis.Snapshot, error)
}

func main() {
	enableDPIAwareness()

	opts := &mainOptions{}
	if err := newRootCmd(opts, singleinstance.NewClient()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(opts *mainOptions, client singleinstance.Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dental-intake-ocr",
		Short:         "Patient intake form with periodic screenshot analysis",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.apiKeyPath, "api-key-path", "", "Path to API key file (highest precedence)")
	cmd.Flags().StringVar(&opts.listenAddr, "listen", "", "Address for the intake form (default "+config.DefaultListenAddr+")")
	cmd.Flags().BoolVar(&opts.noTray, "no-tray", false, "Do not show the system tray icon")
	cmd.Flags().BoolVar(&opts.noHotkey, "no-hotkey", false, "Do not register the global hotkey")

	cmd.AddCommand(
		newDelegateCmd("toggle", "Start or stop analysis in the running instance", singleinstance.CommandToggle, client),
		newDelegateCmd("status", "Print the analysis state of the running instance", singleinstance.CommandStatus, client),
		newFormCmd(),
	)
	return cmd
}

func newDelegateCmd(use, short string, command singleinstance.Command, client singleinstance.Client) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetOutput(io.Discard)
			// .env may move the port range.
			_, _ = config.Load()
			ctx, cancel := context.WithTimeout(cmd.Context(), commandTimeout)
			defer cancel()
			return delegate(ctx, client, command, cmd.OutOrStdout())
		},
	}
}

func delegate(ctx context.Context, client singleinstance.Client, command singleinstance.Command, out io.Writer) error {
	delegated, body, err := client.Send(ctx, command)
	if err != nil {
		return err
	}
	if !delegated {
		return errors.New("no running instance found")
	}
	fmt.Fprintln(out, body)
	return nil
}

func newFormCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "form",
		Short: "Fill in the patient intake form on the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.SetOutput(io.Discard)
			_, err := intake.RunTerminal(cmd.OutOrStdout())
			if errors.Is(err, intake.ErrAborted) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Form cancelled.")
				return nil
			}
			return err
		},
	}
}

func serve(opts mainOptions) error {
	rt, err := runtimeinit.Bootstrap(context.Background(), runtimeinit.Options{
		LoadOptions: config.LoadOptions{
			APIKeyPathOverride: opts.apiKeyPath,
			ListenAddrOverride: opts.listenAddr,
		},
		SetupLogging: logutil.Setup,
	})
	if err != nil {
		return err
	}
	defer logutil.Close()
	defer rt.Close()
	cfg := rt.Config
	logMonitorConfiguration()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	resident := singleinstance.NewServer()
	if err := resident.Start(ctx); err != nil {
		if errors.Is(err, singleinstance.ErrAlreadyRunning) {
			start, _ := singleinstance.PortRange()
			return fmt.Errorf("already running on port %d; use the toggle or status command", start)
		}
		return fmt.Errorf("failed to claim single-instance port: %w", err)
	}
	defer resident.Close()

	gin.SetMode(gin.ReleaseMode)
	ui, err := web.New(rt.Loop)
	if err != nil {
		return fmt.Errorf("failed to build web UI: %w", err)
	}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := rt.Loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("analysis loop stopped: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := ui.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
			log.Printf("web: %v", err)
			fmt.Fprintf(os.Stderr, "Error: intake form unavailable: %v\n", err)
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		_ = singleinstance.Serve(ctx, resident, commandHandler(rt.Loop))
	}()

	pageURL := formURL(cfg.ListenAddr)
	log.Printf("Dental intake OCR initialized: form at %s, hotkey %s", pageURL, cfg.Hotkey)
	fmt.Printf("Intake form: %s\n", pageURL)

	if !opts.noHotkey && cfg.Hotkey != "" {
		if combo, err := hotkey.Parse(cfg.Hotkey); err != nil {
			log.Printf("hotkey disabled: %v", err)
		} else if err := hotkey.Listen(ctx, combo, func() { toggleAsync(rt.Loop) }); err != nil {
			log.Printf("hotkey %s disabled: %v; use the tray or the toggle command", cfg.Hotkey, err)
		}
	}

	if cfg.EnableTray && !opts.noTray {
		t := tray.New(tray.Options{
			Controller: rt.Loop,
			URL:        pageURL,
			Copy:       clipboard.Write,
			OnExit:     cancel,
		})
		rt.Loop.OnChange(t.Update)
		go func() {
			<-ctx.Done()
			t.Quit()
		}()
		t.Run()
	}

	<-ctx.Done()
	wg.Wait()
	log.Printf("shutdown complete")
	return nil
}

func toggleAsync(ctrl controller) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		snap, err := ctrl.Toggle(ctx)
		if err != nil {
			log.Printf("hotkey: toggle: %v", err)
			return
		}
		log.Printf("hotkey: %s", snap.Status)
	}()
}

// commandHandler answers delegated commands with the snapshot as JSON.
func commandHandler(ctrl controller) singleinstance.Handler {
	return func(ctx context.Context, cmd singleinstance.Command) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, commandTimeout)
		defer cancel()

		var snap analysis.Snapshot
		var err error
		switch cmd {
		case singleinstance.CommandToggle:
			snap, err = ctrl.Toggle(ctx)
		case singleinstance.CommandStatus:
			snap, err = ctrl.Snapshot(ctx)
		default:
			return "", fmt.Errorf("unknown command %q", cmd)
		}
		if err != nil {
			return "", err
		}
		body, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return "", err
		}
		return string(body), nil
	}
}

// formURL turns a listen address into a browsable URL.
func formURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr + "/"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/"
}
