// Package stage provides configurable DSP transforms that can be chained
// into a processing pipeline. Every stage consumes buffers of signal and
// produces zero or more buffers in return, carrying whatever internal
// state it needs across chunk boundaries. Stages are built by name from
// a registry and are scoped to a single stream: a stage instance must
// never be reused across files or goroutines.
package stage

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/pipelined/audiobatch/signal"
)

// Stage is a single DSP transform with explicit internal state.
//
// Process consumes one buffer and returns zero or more buffers. Flush is
// called exactly once after the last buffer and drains any retained
// state. After Flush the stage is discarded. Output advertises the
// format of produced signal for a given input format and is called once
// before the first buffer.
type Stage interface {
	Process(signal.Buffer) ([]signal.Buffer, error)
	Flush() ([]signal.Buffer, error)
	Output(signal.Properties) signal.Properties
}

// Analyzer is implemented by two-pass stages that have to observe the
// whole stream before producing any output. The pipeline feeds the
// stream to Analyze during a dedicated pre-pass and calls FinishAnalysis
// once, before the real pass starts.
type Analyzer interface {
	Stage
	Analyze(signal.Buffer) error
	FinishAnalysis() error
}

// Params is a free-form parameter mapping for a stage. Numeric values
// may be provided as int or float64.
type Params map[string]any

// Config names a stage and its parameters.
type Config struct {
	Name   string
	Params Params
}

// BuildFunc validates params and returns a fresh stage instance.
type BuildFunc func(Params) (Stage, error)

var (
	// ErrUnknownStage is returned when a stage name is not registered.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrInvalidParameter is returned when a stage parameter is missing,
	// has a wrong type or an out-of-range value.
	ErrInvalidParameter = errors.New("invalid parameter")
)

// Registry maps stage names to build functions.
type Registry struct {
	mtx    sync.Mutex
	builds map[string]BuildFunc
}

// NewRegistry returns an empty stage registry.
func NewRegistry() *Registry {
	return &Registry{builds: make(map[string]BuildFunc)}
}

// Register adds a build function under provided name. Existing
// registration with the same name is replaced.
func (r *Registry) Register(name string, fn BuildFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.builds[name] = fn
}

// New builds a stage by name.
func (r *Registry) New(name string, p Params) (Stage, error) {
	r.mtx.Lock()
	fn, ok := r.builds[name]
	r.mtx.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, name)
	}
	return fn(p)
}

// Chain builds all configured stages in order. The first configuration
// error aborts the chain.
func (r *Registry) Chain(configs ...Config) ([]Stage, error) {
	stages := make([]Stage, 0, len(configs))
	for _, c := range configs {
		s, err := r.New(c.Name, c.Params)
		if err != nil {
			return nil, fmt.Errorf("stage %q: %w", c.Name, err)
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// Names returns the registered stage names, sorted.
func (r *Registry) Names() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	names := make([]string, 0, len(r.builds))
	for name := range r.builds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var defaultRegistry = NewRegistry()

func init() {
	defaultRegistry.Register("gain", newGain)
	defaultRegistry.Register("normalize", newNormalize)
	defaultRegistry.Register("resample", newResample)
	defaultRegistry.Register("trim", newTrim)
	defaultRegistry.Register("pad", newPad)
}

// Register adds a build function to the default registry.
func Register(name string, fn BuildFunc) {
	defaultRegistry.Register(name, fn)
}

// New builds a stage from the default registry.
func New(name string, p Params) (Stage, error) {
	return defaultRegistry.New(name, p)
}

// Chain builds stages from the default registry.
func Chain(configs ...Config) ([]Stage, error) {
	return defaultRegistry.Chain(configs...)
}

// Names returns stage names of the default registry.
func Names() []string {
	return defaultRegistry.Names()
}

// verify returns ErrInvalidParameter for any key outside the declared
// parameter schema.
func (p Params) verify(keys ...string) error {
	for key := range p {
		known := false
		for _, k := range keys {
			if key == k {
				known = true
				break
			}
		}
		if !known {
			return fmt.Errorf("%w: unknown key %q", ErrInvalidParameter, key)
		}
	}
	return nil
}

// float reads a numeric parameter. Missing key returns the default.
func (p Params) float(key string, def float64) (float64, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	default:
		return 0, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidParameter, key, v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %q must be finite", ErrInvalidParameter, key)
	}
	return f, nil
}

// integer reads an int parameter. Missing key returns the default.
func (p Params) integer(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch val := v.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		if val != math.Trunc(val) {
			return 0, fmt.Errorf("%w: %q must be an integer", ErrInvalidParameter, key)
		}
		return int(val), nil
	default:
		return 0, fmt.Errorf("%w: %q must be an integer, got %T", ErrInvalidParameter, key, v)
	}
}

// str reads a string parameter. Missing key returns the default.
func (p Params) str(key string, def string) (string, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q must be a string, got %T", ErrInvalidParameter, key, v)
	}
	return s, nil
}

// scaled returns a copy of the buffer with every sample multiplied by
// amount.
func scaled(b signal.Buffer, amount float64, seq int) signal.Buffer {
	out := signal.Alloc(b.SampleRate, b.NumChannels(), b.Size(), seq)
	for i := range b.Float64 {
		for j := range b.Float64[i] {
			out.Float64[i][j] = b.Float64[i][j] * amount
		}
	}
	return out
}

// silence appends frames of silence chunked by chunkSize and returns the
// extended slice together with the next sequence number.
func silence(dst []signal.Buffer, props signal.Properties, frames, chunkSize, seq int) ([]signal.Buffer, int) {
	if chunkSize <= 0 {
		chunkSize = 4096
	}
	for frames > 0 {
		n := frames
		if n > chunkSize {
			n = chunkSize
		}
		dst = append(dst, signal.Alloc(props.SampleRate, props.Channels, n, seq))
		seq++
		frames -= n
	}
	return dst, seq
}
