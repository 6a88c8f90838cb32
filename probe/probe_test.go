package probe

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	sheetprobe "github.com/wippyai/sheet-probe"
	"github.com/wippyai/sheet-probe/config"
	"github.com/wippyai/sheet-probe/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeProvider records every crossing of the provider boundary.
type fakeProvider struct {
	result      *string
	classifyErr error
	readErr     error
	freeErr     error
	closeErr    error
	paths       []string
	calls       int
	frees       int
	closes      int
}

func (f *fakeProvider) Classify(_ context.Context, path string) (*sheetprobe.ForeignString, error) {
	f.calls++
	f.paths = append(f.paths, path)
	if f.classifyErr != nil {
		return nil, f.classifyErr
	}
	if f.result == nil {
		return nil, nil
	}
	text := *f.result
	return sheetprobe.NewForeignString(
		func() (string, error) { return text, f.readErr },
		func() error {
			f.frees++
			return f.freeErr
		},
	), nil
}

func (f *fakeProvider) Close(context.Context) error {
	f.closes++
	return f.closeErr
}

func returning(s string) *fakeProvider { return &fakeProvider{result: &s} }

type harness struct {
	probe  *Probe
	cfg    *config.Config
	stdout *bytes.Buffer
	stderr *bytes.Buffer
	opens  int
}

// newHarness builds a probe over provider with an existing input file.
func newHarness(t *testing.T, provider *fakeProvider, mutate func(*config.Config), opts ...Option) *harness {
	t.Helper()
	input := filepath.Join(t.TempDir(), "test_data.xlsx")
	require.NoError(t, os.WriteFile(input, []byte("PK"), 0o644))

	cfg := config.DefaultConfig()
	cfg.Input = input
	if mutate != nil {
		mutate(cfg)
	}

	h := &harness{cfg: cfg, stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	opener := func(context.Context, *config.Config) (sheetprobe.Classifier, error) {
		h.opens++
		return provider, nil
	}
	opts = append([]Option{WithOpener(opener), WithOutput(h.stdout, h.stderr)}, opts...)

	p, err := New(cfg, opts...)
	require.NoError(t, err)
	h.probe = p
	return h
}

func TestRun_Result(t *testing.T) {
	provider := returning(`[{"sheet_name":"Data Sheet"}]`)
	h := newHarness(t, provider, nil)

	err := h.probe.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitOK, ExitCode(err))

	want := fmt.Sprintf("Classifying file: %s\nResult: [{\"sheet_name\":\"Data Sheet\"}]\n", h.cfg.Input)
	assert.Equal(t, want, h.stdout.String())
	assert.Empty(t, h.stderr.String())
	assert.Equal(t, []string{h.cfg.Input}, provider.paths)
	assert.Equal(t, 1, provider.frees, "result must be freed exactly once")
	assert.Equal(t, 1, provider.closes)
}

func TestRun_Null(t *testing.T) {
	provider := &fakeProvider{}
	h := newHarness(t, provider, nil)

	err := h.probe.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ExitOK, ExitCode(err))

	assert.Equal(t, fmt.Sprintf("Classifying file: %s\nFunction returned NULL\n", h.cfg.Input), h.stdout.String())
	assert.Equal(t, 1, provider.calls)
	assert.Zero(t, provider.frees, "NULL is never freed")
	assert.Equal(t, 1, provider.closes)
}

func TestRun_OpenFailures(t *testing.T) {
	loaderMsg := "./target/release/liblayout_view.so: cannot open shared object file: No such file or directory"
	tests := []struct {
		err    error
		is     func(error) bool
		name   string
		reason string
	}{
		{
			name:   "load",
			err:    errors.Load(config.DefaultLibrary, stderrors.New(loaderMsg)),
			is:     errors.IsLoad,
			reason: loaderMsg,
		},
		{
			name: "resolve",
			err: errors.SymbolNotFound(config.DefaultLibrary, sheetprobe.FreeSymbol,
				stderrors.New("liblayout_view.so: undefined symbol: free_c_string")),
			is:     errors.IsResolve,
			reason: "liblayout_view.so: undefined symbol: free_c_string",
		},
		{
			name:   "null symbol",
			err:    errors.NilSymbol(config.DefaultLibrary, sheetprobe.ClassifySymbol),
			is:     errors.IsResolve,
			reason: "[resolve] nil_pointer symbol classify_excel_sheets_c in ./target/release/liblayout_view.so: symbol resolved to a null address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout bytes.Buffer
			p, err := New(config.DefaultConfig(),
				WithOutput(&stdout, &stdout),
				WithOpener(func(context.Context, *config.Config) (sheetprobe.Classifier, error) {
					return nil, tt.err
				}),
			)
			require.NoError(t, err)

			err = p.Run(context.Background())
			require.Error(t, err)
			assert.True(t, tt.is(err))
			assert.Equal(t, tt.reason, errors.Reason(err))
			assert.Equal(t, ExitFailure, ExitCode(err))
			assert.Empty(t, stdout.String(), "nothing is invoked after an open failure")
		})
	}
}

func TestRun_CallFailure(t *testing.T) {
	provider := &fakeProvider{classifyErr: errors.Trap(errors.PhaseCall, sheetprobe.ClassifySymbol, stderrors.New("unreachable"))}
	h := newHarness(t, provider, nil)

	err := h.probe.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Zero(t, provider.frees)
	assert.Equal(t, 1, provider.closes, "provider is closed after a failed call")
}

func TestRun_ReleaseFailure(t *testing.T) {
	provider := returning("ok")
	provider.freeErr = stderrors.New("double free detected")
	h := newHarness(t, provider, nil)

	err := h.probe.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "double free detected")
	assert.Contains(t, h.stdout.String(), "Result: ok\n")
	assert.Equal(t, 1, provider.frees)
	assert.Equal(t, 1, provider.closes)
}

func TestRun_InvalidUTF8ShowsRawText(t *testing.T) {
	provider := returning("caf\xe9")
	provider.readErr = errors.InvalidUTF8(errors.PhaseDecode, []byte("caf\xe9"))
	h := newHarness(t, provider, nil)

	err := h.probe.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, &errors.Error{Phase: errors.PhaseDecode, Kind: errors.KindInvalidUTF8})
	assert.Equal(t, fmt.Sprintf("Classifying file: %s\nResult: caf\xe9\n", h.cfg.Input), h.stdout.String())
	assert.Equal(t, 1, provider.frees)
	assert.Equal(t, 1, provider.closes)
}

func TestCheckInput(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, CheckInput(dir))

	missing := filepath.Join(dir, "absent.xlsx")
	err := CheckInput(missing)
	require.ErrorIs(t, err, ErrInputNotFound)
	assert.Equal(t, "file does not exist: "+missing, err.Error())
}

func TestRun_CloseFailure(t *testing.T) {
	provider := &fakeProvider{closeErr: stderrors.New("dlclose failed")}
	h := newHarness(t, provider, nil)

	err := h.probe.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, "dlclose failed", err.Error())
	assert.Contains(t, h.stdout.String(), "Function returned NULL")
}

func TestRun_InputMissing(t *testing.T) {
	provider := returning("unused")
	h := newHarness(t, provider, func(c *config.Config) {
		c.Input = filepath.Join(filepath.Dir(c.Input), "absent.xlsx")
	})

	err := h.probe.Run(context.Background())
	require.ErrorIs(t, err, ErrInputNotFound)
	assert.Equal(t, "file does not exist: "+h.cfg.Input, errors.Reason(err))
	assert.Zero(t, provider.calls)
	assert.Equal(t, 1, provider.closes)
	assert.Empty(t, h.stdout.String())
}

func TestRun_InputCheckDisabled(t *testing.T) {
	provider := &fakeProvider{}
	h := newHarness(t, provider, func(c *config.Config) {
		c.Input = "./files/absent.xlsx"
		c.CheckInput = false
	})

	require.NoError(t, h.probe.Run(context.Background()))
	assert.Equal(t, []string{"./files/absent.xlsx"}, provider.paths)
}

func TestRun_Formats(t *testing.T) {
	result := `[{"sheet_name":"Data Sheet","first_row":0,"first_col":0,"end_row":3,"end_col":2,"total_cells":12,"data_cells":12,"density":1.0,"visible":"Visible","first_row_first_col_content":"Name","last_row_first_col_content":"Charlie"}]`

	t.Run("markdown", func(t *testing.T) {
		provider := returning(result)
		h := newHarness(t, provider, func(c *config.Config) { c.Format = "markdown" })

		require.NoError(t, h.probe.Run(context.Background()))
		assert.Contains(t, h.stdout.String(), "| Data Sheet | Visible | A1:C4 | 12/12 | 1.000 | - | Name | Charlie |")
		assert.Equal(t, 1, provider.frees)
	})

	t.Run("decode failure keeps exit zero", func(t *testing.T) {
		provider := returning("Error: Failed to open workbook")
		h := newHarness(t, provider, func(c *config.Config) { c.Format = "json" })

		err := h.probe.Run(context.Background())
		require.NoError(t, err)
		assert.Contains(t, h.stdout.String(), "Result: Error: Failed to open workbook\n")
		assert.Contains(t, h.stderr.String(), "Warning: ")
		assert.Equal(t, 1, provider.frees)
	})
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Library = ""
	_, err := New(cfg)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
}

func TestInvoke_HandlerErrorStillReleases(t *testing.T) {
	provider := returning("text")
	handlerErr := stderrors.New("stdout closed")

	null, err := Invoke(context.Background(), provider, "in.xlsx", func(string) error { return handlerErr })
	assert.False(t, null)
	assert.ErrorIs(t, err, handlerErr)
	assert.Equal(t, 1, provider.frees)
}

func TestInvoke_Null(t *testing.T) {
	provider := &fakeProvider{}
	called := false

	null, err := Invoke(context.Background(), provider, "in.xlsx", func(string) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, null)
	assert.False(t, called)
	assert.Zero(t, provider.frees)
}

func TestWatch(t *testing.T) {
	provider := returning("[]")
	h := newHarness(t, provider, func(c *config.Config) {
		c.Library = filepath.Join(filepath.Dir(c.Input), "liblayout_view.so")
	}, WithDebounce(20*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runs := make(chan error, 16)
	done := make(chan error, 1)
	go func() {
		done <- h.probe.Watch(ctx, func(err error) { runs <- err })
	}()

	waitRun := func() {
		t.Helper()
		select {
		case err := <-runs:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for a run")
		}
	}

	waitRun()
	require.NoError(t, os.WriteFile(h.cfg.Input, []byte("PK changed"), 0o644))
	waitRun()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}

	assert.GreaterOrEqual(t, h.opens, 2, "every run reopens the provider")
	assert.Equal(t, provider.calls, provider.frees)
	assert.Equal(t, h.opens, provider.closes)
}

func TestWatch_MissingInputDirectory(t *testing.T) {
	h := newHarness(t, &fakeProvider{}, func(c *config.Config) {
		c.Input = filepath.Join(t.TempDir(), "missing", "test_data.xlsx")
	})

	err := h.probe.Watch(context.Background(), func(error) {})
	assert.Error(t, err)
	assert.Zero(t, h.opens)
}
