package probe

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	sheetprobe "github.com/wippyai/sheet-probe"
	"github.com/wippyai/sheet-probe/config"
	"github.com/wippyai/sheet-probe/report"
)

// Process exit statuses.
const (
	ExitOK      = 0
	ExitFailure = 1
)

// ErrInputNotFound is returned by Run when input checking is enabled and
// the input file is missing.
var ErrInputNotFound = stderrors.New("file does not exist")

// Opener loads and binds the provider described by cfg.
type Opener func(ctx context.Context, cfg *config.Config) (sheetprobe.Classifier, error)

// Option configures a Probe.
type Option func(*Probe)

// WithOpener replaces the backend loader.
func WithOpener(open Opener) Option {
	return func(p *Probe) {
		p.open = open
	}
}

// WithOutput routes console output. Result lines go to stdout, warnings to
// stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Probe) {
		p.stdout = stdout
		p.stderr = stderr
	}
}

// WithStyled enables terminal styling of rendered reports.
func WithStyled(styled bool) Option {
	return func(p *Probe) {
		p.styled = styled
	}
}

// WithDebounce sets how long Watch waits for changes to settle.
func WithDebounce(d time.Duration) Option {
	return func(p *Probe) {
		p.debounce = d
	}
}

// Probe runs the open, resolve, invoke, release, close sequence against one
// provider.
type Probe struct {
	cfg      *config.Config
	open     Opener
	stdout   io.Writer
	stderr   io.Writer
	format   report.Format
	debounce time.Duration
	styled   bool
}

// New validates cfg and creates a Probe.
func New(cfg *config.Config, opts ...Option) (*Probe, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	p := &Probe{
		cfg:      cfg,
		format:   format,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		debounce: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.open == nil {
		p.open = p.openBackend
	}
	return p, nil
}

// Config returns the probe's configuration.
func (p *Probe) Config() *config.Config { return p.cfg }

// Open loads and binds the configured provider. The caller closes it.
func (p *Probe) Open(ctx context.Context) (sheetprobe.Classifier, error) {
	return p.open(ctx, p.cfg)
}

// Run performs one complete probe. The returned error is nil for a completed
// round trip, including a NULL result.
func (p *Probe) Run(ctx context.Context) (err error) {
	log := Logger().With(
		zap.String("run_id", uuid.NewString()),
		zap.String("library", p.cfg.Library),
	)
	started := time.Now()

	c, err := p.open(ctx, p.cfg)
	if err != nil {
		log.Debug("provider unavailable", zap.Error(err))
		return err
	}
	log.Debug("provider bound", zap.String("backend", p.cfg.ResolveBackend()))

	defer func() {
		if cerr := c.Close(context.WithoutCancel(ctx)); cerr != nil {
			log.Warn("close provider", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
		log.Debug("run finished", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
	}()

	input := p.cfg.Input
	if p.cfg.CheckInput {
		if err := CheckInput(input); err != nil {
			return err
		}
	}

	fmt.Fprintf(p.stdout, "Classifying file: %s\n", input)

	null, err := Invoke(ctx, c, input, func(text string) error {
		if _, err := fmt.Fprintf(p.stdout, "Result: %s\n", text); err != nil {
			return err
		}
		p.render(text, log)
		return nil
	})
	if err != nil {
		return err
	}
	if null {
		fmt.Fprintln(p.stdout, "Function returned NULL")
	}
	return nil
}

// Invoke classifies path with c. handle runs while the result is still owned
// and the result is released right after, whether handle succeeds or not. A
// NULL result reports null and is never released. Text that cannot be read
// cleanly but is not empty, such as invalid UTF-8, is passed to handle before
// the read error is returned.
func Invoke(ctx context.Context, c sheetprobe.Classifier, path string, handle func(text string) error) (null bool, err error) {
	res, err := c.Classify(ctx, path)
	if err != nil {
		return false, err
	}
	if res == nil {
		return true, nil
	}

	defer func() {
		if rerr := res.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	text, err := res.Text()
	if err != nil {
		// Undecodable text is still shown, then reported.
		if text != "" {
			_ = handle(text)
		}
		return false, err
	}
	return false, handle(text)
}

// CheckInput returns an error wrapping ErrInputNotFound when path does not
// exist.
func CheckInput(path string) error {
	if _, err := os.Stat(path); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	return nil
}

// render decodes and prints the report for non-raw formats. Decode failures
// are warnings: the round trip itself succeeded.
func (p *Probe) render(text string, log *zap.Logger) {
	if p.format == report.FormatRaw {
		return
	}

	sheets, err := report.Decode(text)
	if err == nil {
		err = report.Render(p.stdout, sheets, p.format, p.styled)
	}
	if err != nil {
		log.Warn("report unavailable", zap.Error(err))
		fmt.Fprintf(p.stderr, "Warning: %v\n", err)
	}
}

// ExitCode maps the result of Run to a process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	return ExitFailure
}
