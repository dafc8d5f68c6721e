package cmd

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/crater-detection/yolo-api/launcher"
)

const (
	backendPort  = 5000
	frontendPort = 5173
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the detection API and the backend, stop both on Ctrl+C",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(cmd)
	},
}

func init() {
	startCmd.Flags().StringVarP(&cfg.ModelPath, "model", "m", cfg.ModelPath, "Checkpoint that must exist before the API is started")
	startCmd.Flags().IntVarP(&cfg.Port, "port", "p", cfg.Port, "Port for the detection API")
	startCmd.Flags().StringVar(&cfg.BackendDir, "backend-dir", cfg.BackendDir, "Directory of the backend package")
	startCmd.Flags().DurationVar(&cfg.GracePeriod, "grace", cfg.GracePeriod, "How long each service gets to initialize")
	startCmd.Flags().BoolVar(&cfg.SkipInstall, "skip-install", cfg.SkipInstall, "Do not run npm install before starting the backend")

	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command) error {
	logger := newLogger("launcher")
	defer func() { _ = logger.Sync() }()

	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locate executable")
	}

	l := launcher.New(defaultServices(exe, cfg.GracePeriod), logger,
		launcher.WithTitle("Crater Detection Services"),
		launcher.WithLinks(launcher.Link{Name: "Frontend", URL: localURL(frontendPort)}),
	)
	return l.Run(cmd.Context())
}

// defaultServices is the detection API (this binary in serve mode) followed
// by the backend dev server.
func defaultServices(exe string, grace time.Duration) []launcher.Service {
	api := launcher.Service{
		Name:     "YOLO API",
		Command:  []string{exe, "serve", "--model", cfg.ModelPath, "--port", strconv.Itoa(cfg.Port)},
		Requires: []string{cfg.ModelPath},
		Grace:    grace,
		URL:      localURL(cfg.Port),
	}

	backend := launcher.Service{
		Name:    "Backend",
		Dir:     cfg.BackendDir,
		Command: []string{"npm", "run", "dev"},
		Grace:   grace,
		URL:     localURL(backendPort),
	}
	if !cfg.SkipInstall {
		backend.Prepare = []string{"npm", "install"}
	}

	return []launcher.Service{api, backend}
}

func localURL(port int) string {
	return fmt.Sprintf("http://localhost:%d", port)
}
