package slapadd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/giantswarm/ldapenv/internal/sentinel"
)

const (
	// DefaultBinary is looked up in PATH when Config.Binary is empty.
	DefaultBinary = "slapadd"

	// DefaultTimeout bounds a single slapadd run.
	DefaultTimeout = 60 * time.Second

	// maxOutput caps the slapadd output kept in a LoadError.
	maxOutput = 16 * 1024
)

// ErrEmptyConfigDir is returned when the loader has no config directory.
const ErrEmptyConfigDir = sentinel.Error("slapadd config directory must not be empty")

// Payload is one LDIF file destined for a database layer.
type Payload struct {
	Layer int
	// Path is the rendered LDIF file on disk.
	Path string
	// Source describes where the payload came from, for error messages.
	Source string
}

// LoadError tags a failed slapadd run with the layer and the payload's
// position within that layer.
type LoadError struct {
	Layer        int
	PayloadIndex int
	Source       string
	Output       string
	Err          error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("load layer %d payload %d", e.Layer, e.PayloadIndex)
	if e.Source != "" {
		msg += " (" + e.Source + ")"
	}
	msg += ": " + e.Err.Error()
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Config configures a Loader.
type Config struct {
	Binary    string
	ConfigDir string
	// WorkDir is the working directory of slapadd. Empty means the
	// current directory.
	WorkDir string
	Timeout time.Duration
	Logger  *slog.Logger
	// Guard, when set, runs before every payload; a non-nil result aborts
	// the load. It lets the caller refuse to touch database files that a
	// running slapd owns.
	Guard func() error
}

// Loader runs slapadd against one instance's configuration.
type Loader struct {
	cfg Config
	log *slog.Logger
}

// New returns a Loader, filling defaults for empty fields.
func New(cfg Config) (*Loader, error) {
	if cfg.ConfigDir == "" {
		return nil, ErrEmptyConfigDir
	}
	if cfg.Binary == "" {
		cfg.Binary = DefaultBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Loader{cfg: cfg, log: log.With("process", "slapadd")}, nil
}

// LoadLayers applies payloads in ascending layer order. Payloads sharing a
// layer keep their relative order.
func (l *Loader) LoadLayers(ctx context.Context, payloads []Payload) error {
	sorted := slices.Clone(payloads)
	slices.SortStableFunc(sorted, func(a, b Payload) int {
		return cmp.Compare(a.Layer, b.Layer)
	})

	for start := 0; start < len(sorted); {
		end := start
		for end < len(sorted) && sorted[end].Layer == sorted[start].Layer {
			end++
		}
		if err := l.LoadLayer(ctx, sorted[start].Layer, sorted[start:end]); err != nil {
			return err
		}
		start = end
	}
	return nil
}

// LoadLayer applies payloads to a single layer in the given order. The Layer
// field of each payload is ignored.
func (l *Loader) LoadLayer(ctx context.Context, layer int, payloads []Payload) error {
	for i, p := range payloads {
		if l.cfg.Guard != nil {
			if err := l.cfg.Guard(); err != nil {
				return &LoadError{Layer: layer, PayloadIndex: i, Source: p.Source, Err: err}
			}
		}
		if err := ctx.Err(); err != nil {
			return &LoadError{Layer: layer, PayloadIndex: i, Source: p.Source, Err: err}
		}

		start := time.Now()
		out, err := l.run(ctx, layer, p.Path)
		if err != nil {
			return &LoadError{
				Layer:        layer,
				PayloadIndex: i,
				Source:       p.Source,
				Output:       out,
				Err:          err,
			}
		}
		l.log.Debug("loaded ldif", "layer", layer, "index", i, "file", p.Path, "elapsed", time.Since(start))
	}
	return nil
}

func (l *Loader) run(ctx context.Context, layer int, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.Timeout)
	defer cancel()

	//nolint:gosec // binary and arguments come from the instance configuration
	cmd := exec.CommandContext(ctx, l.cfg.Binary,
		"-F", l.cfg.ConfigDir,
		"-n", strconv.Itoa(layer),
		"-l", path,
	)
	cmd.Dir = l.cfg.WorkDir
	cmd.WaitDelay = time.Second

	raw, err := cmd.CombinedOutput()
	out := trimOutput(raw)
	if err == nil {
		return out, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return out, fmt.Errorf("slapadd did not finish within %s: %w", l.cfg.Timeout, ctxErr)
		}
		return out, ctxErr
	}
	return out, fmt.Errorf("slapadd %s: %w", path, err)
}

func trimOutput(raw []byte) string {
	if len(raw) > maxOutput {
		raw = raw[len(raw)-maxOutput:]
	}
	return strings.TrimSpace(string(raw))
}
