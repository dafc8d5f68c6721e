package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/edaniels/golog"
	"github.com/spf13/cobra"

	"github.com/crater-detection/yolo-api/config"
)

// Version is the application version.
const Version = "0.1.0"

// cfg is what command flags bind to. Execute replaces the built-in defaults
// with .env/environment values before flags are parsed, so flags win.
var cfg = defaultConfig()

func defaultConfig() *config.Config {
	d := config.Defaults()
	return &d
}

var rootCmd = &cobra.Command{
	Use:           "yolo-api",
	Short:         "YOLO crater detection API and service launcher",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	// Ctrl+C (SIGINT) or SIGTERM cancels the command context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	*cfg = *config.Load()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(name string) golog.Logger {
	if cfg.Debug {
		return golog.NewDevelopmentLogger(name)
	}
	return golog.NewLogger(name)
}
