package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/edaniels/golog"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
)

var (
	// ErrMissingArtifact means a required file was absent; nothing was spawned for that service.
	ErrMissingArtifact = errors.New("required file not found")
	// ErrNotStarted covers failed preparation, failed spawn and exit during the grace period.
	ErrNotStarted = errors.New("service could not start")
)

const (
	DefaultGrace = 3 * time.Second
	graceTick    = 100 * time.Millisecond
)

// Service is one child process the launcher owns.
type Service struct {
	Name     string
	Dir      string
	Prepare  []string // run to completion before Command, e.g. a dependency install
	Command  []string
	Env      []string
	Requires []string // files that must exist before anything is spawned
	Grace    time.Duration
	URL      string
}

// Link is an extra address printed once everything is up.
type Link struct {
	Name string
	URL  string
}

type Launcher struct {
	title    string
	services []Service
	links    []Link
	logger   golog.Logger
	out      io.Writer
	childOut io.Writer
	childErr io.Writer

	mu      sync.Mutex
	started []*Process
}

type Option func(*Launcher)

// WithOutput sets where console messages and the startup bar go.
func WithOutput(w io.Writer) Option {
	return func(l *Launcher) { l.out = w }
}

// WithChildOutput sets the stdout/stderr handed to children and prepare steps.
func WithChildOutput(stdout, stderr io.Writer) Option {
	return func(l *Launcher) {
		l.childOut = stdout
		l.childErr = stderr
	}
}

func WithLinks(links ...Link) Option {
	return func(l *Launcher) { l.links = append(l.links, links...) }
}

func WithTitle(title string) Option {
	return func(l *Launcher) { l.title = title }
}

func New(services []Service, logger golog.Logger, opts ...Option) *Launcher {
	l := &Launcher{
		title:    "services",
		services: services,
		logger:   logger,
		out:      os.Stdout,
		childOut: os.Stdout,
		childErr: os.Stderr,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start brings the services up in order. If one cannot start, every child
// already running is terminated and the error is returned.
func (l *Launcher) Start(ctx context.Context) error {
	for _, svc := range l.services {
		p, err := l.startService(ctx, svc)
		if err != nil {
			l.printf("❌ Failed to start %s\n", svc.Name)
			l.Stop()
			return err
		}

		l.mu.Lock()
		l.started = append(l.started, p)
		l.mu.Unlock()
	}
	return nil
}

func (l *Launcher) startService(ctx context.Context, svc Service) (*Process, error) {
	l.printf("🚀 Starting %s...\n", svc.Name)

	for _, path := range svc.Requires {
		if _, err := os.Stat(path); err != nil {
			l.printf("❌ Error: %s file not found!\n", path)
			l.printf("Please place your %s file where %s can find it.\n", path, svc.Name)
			return nil, errors.Wrapf(ErrMissingArtifact, "%s: %s", svc.Name, path)
		}
	}

	if len(svc.Prepare) > 0 {
		l.printf("📦 Preparing %s: %s\n", svc.Name, strings.Join(svc.Prepare, " "))
		if err := l.prepare(ctx, svc); err != nil {
			l.printf("❌ Error starting %s: %v\n", svc.Name, err)
			return nil, errors.Wrapf(ErrNotStarted, "%s: %v", svc.Name, err)
		}
	}

	p, err := startProcess(svc, l.childOut, l.childErr)
	if err != nil {
		l.printf("❌ Error starting %s: %v\n", svc.Name, err)
		return nil, errors.Wrapf(ErrNotStarted, "%v", err)
	}
	l.logger.Debugw("spawned", "service", svc.Name, "pid", p.Pid(), "command", svc.Command)

	if err := l.settle(ctx, p, svc.Grace); err != nil {
		_ = p.Terminate()
		l.printf("❌ Error starting %s: %v\n", svc.Name, err)
		return nil, err
	}
	return p, nil
}

func (l *Launcher) prepare(ctx context.Context, svc Service) error {
	cmd := exec.CommandContext(ctx, svc.Prepare[0], svc.Prepare[1:]...)
	cmd.Dir = svc.Dir
	cmd.Stdout = l.childOut
	cmd.Stderr = l.childErr
	if len(svc.Env) > 0 {
		cmd.Env = append(os.Environ(), svc.Env...)
	}
	return cmd.Run()
}

// settle waits out the fixed grace period. There is no readiness probe; a
// child only fails here if it exits before the period is over.
func (l *Launcher) settle(ctx context.Context, p *Process, grace time.Duration) error {
	if grace <= 0 {
		grace = DefaultGrace
	}
	steps := int(grace / graceTick)
	if steps < 1 {
		steps = 1
	}

	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetDescription(fmt.Sprintf("⏳ Waiting for %s", p.Name)),
		progressbar.OptionSetWriter(l.out),
		progressbar.OptionClearOnFinish(),
	)

	ticker := time.NewTicker(grace / time.Duration(steps))
	defer ticker.Stop()

	for i := 0; i < steps; i++ {
		select {
		case <-p.Done():
			_ = bar.Clear()
			return errors.Wrapf(ErrNotStarted, "%s exited during startup: %v", p.Name, p.Err())
		case <-ctx.Done():
			_ = bar.Clear()
			return ctx.Err()
		case <-ticker.C:
			_ = bar.Add(1)
		}
	}
	_ = bar.Finish()
	return nil
}

// Stop terminates every started child without waiting for them to exit.
func (l *Launcher) Stop() {
	l.mu.Lock()
	started := l.started
	l.started = nil
	l.mu.Unlock()

	for i := len(started) - 1; i >= 0; i-- {
		p := started[i]
		if err := p.Terminate(); err != nil {
			l.logger.Warnw("terminate failed", "service", p.Name, "error", err)
		}
	}
}

// Processes returns the children started so far.
func (l *Launcher) Processes() []*Process {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Process(nil), l.started...)
}

// Run starts everything, then blocks until ctx is cancelled (Ctrl+C) and
// stops the children.
func (l *Launcher) Run(ctx context.Context) error {
	l.printf("🎯 Starting %s...\n", l.title)
	l.printf("%s\n", strings.Repeat("=", 50))

	if err := l.Start(ctx); err != nil {
		return err
	}

	l.printf("✅ All services started successfully!\n")
	for _, link := range l.links {
		l.printf("🔗 %s: %s\n", link.Name, link.URL)
	}
	for _, svc := range l.services {
		if svc.URL != "" {
			l.printf("🔗 %s: %s\n", svc.Name, svc.URL)
		}
	}
	l.printf("\nPress Ctrl+C to stop all services...\n")

	<-ctx.Done()

	l.printf("\n🛑 Stopping services...\n")
	l.Stop()
	l.printf("✅ Services stopped.\n")
	return nil
}

func (l *Launcher) printf(format string, args ...interface{}) {
	fmt.Fprintf(l.out, format, args...)
}
