// Package format resolves audio file formats to pumps and sinks by file
// extension. The default registry covers wav, mp3, ogg vorbis and aiff;
// callers can register their own formats.
package format

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/pipelined/audiobatch/aiff"
	"github.com/pipelined/audiobatch/mp3"
	"github.com/pipelined/audiobatch/pipe"
	"github.com/pipelined/audiobatch/signal"
	"github.com/pipelined/audiobatch/vorbis"
	"github.com/pipelined/audiobatch/wav"
)

type (
	// PumpBuilder creates a pump reading the file at the path.
	PumpBuilder func(path string) (pipe.Pump, error)
	// SinkBuilder creates a sink writing the file at the path.
	SinkBuilder func(path string) (pipe.Sink, error)
)

// ErrUnsupported is returned when no pump or sink is registered for the
// extension.
var ErrUnsupported = errors.New("unsupported format")

// Registry maps normalized file extensions to pump and sink builders.
type Registry struct {
	mtx   sync.Mutex
	pumps map[string]PumpBuilder
	sinks map[string]SinkBuilder
}

// NewRegistry returns an empty format registry.
func NewRegistry() *Registry {
	return &Registry{
		pumps: make(map[string]PumpBuilder),
		sinks: make(map[string]SinkBuilder),
	}
}

func normalize(ext string) string {
	return strings.ToLower(ext)
}

// RegisterPump adds a pump builder for the extension.
func (r *Registry) RegisterPump(ext string, b PumpBuilder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.pumps[normalize(ext)] = b
}

// RegisterSink adds a sink builder for the extension.
func (r *Registry) RegisterSink(ext string, b SinkBuilder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.sinks[normalize(ext)] = b
}

// Pump resolves a pump for the file by its extension.
func (r *Registry) Pump(path string) (pipe.Pump, error) {
	ext := normalize(filepath.Ext(path))
	r.mtx.Lock()
	b, ok := r.pumps[ext]
	r.mtx.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no decoder for %q", ErrUnsupported, ext)
	}
	return b(path)
}

// Sink resolves a sink for provided extension, writing to the path. The
// extension is passed explicitly because output may be staged under a
// temporary name.
func (r *Registry) Sink(ext string, path string) (pipe.Sink, error) {
	ext = normalize(ext)
	r.mtx.Lock()
	b, ok := r.sinks[ext]
	r.mtx.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no encoder for %q", ErrUnsupported, ext)
	}
	return b(path)
}

// Extensions returns the registered pump and sink extensions, sorted.
func (r *Registry) Extensions() (pumps, sinks []string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	for ext := range r.pumps {
		pumps = append(pumps, ext)
	}
	for ext := range r.sinks {
		sinks = append(sinks, ext)
	}
	sort.Strings(pumps)
	sort.Strings(sinks)
	return pumps, sinks
}

var defaultRegistry = NewRegistry()

func init() {
	defaultRegistry.RegisterPump(".wav", func(path string) (pipe.Pump, error) {
		return wav.NewPump(path), nil
	})
	defaultRegistry.RegisterSink(".wav", func(path string) (pipe.Sink, error) {
		return wav.NewSink(path, signal.BitDepth16)
	})
	defaultRegistry.RegisterPump(".mp3", func(path string) (pipe.Pump, error) {
		return mp3.NewPump(path), nil
	})
	defaultRegistry.RegisterSink(".mp3", func(path string) (pipe.Sink, error) {
		return mp3.NewSink(path, mp3.DefaultBitRate, 2), nil
	})
	defaultRegistry.RegisterPump(".ogg", func(path string) (pipe.Pump, error) {
		return vorbis.NewPump(path), nil
	})
	defaultRegistry.RegisterPump(".oga", func(path string) (pipe.Pump, error) {
		return vorbis.NewPump(path), nil
	})
	defaultRegistry.RegisterPump(".aiff", func(path string) (pipe.Pump, error) {
		return aiff.NewPump(path), nil
	})
	defaultRegistry.RegisterPump(".aif", func(path string) (pipe.Pump, error) {
		return aiff.NewPump(path), nil
	})
	defaultRegistry.RegisterSink(".aiff", func(path string) (pipe.Sink, error) {
		return aiff.NewSink(path, signal.BitDepth16)
	})
	defaultRegistry.RegisterSink(".aif", func(path string) (pipe.Sink, error) {
		return aiff.NewSink(path, signal.BitDepth16)
	})
}

// Default returns the registry with all built-in formats.
func Default() *Registry {
	return defaultRegistry
}

// Pump resolves a pump from the default registry.
func Pump(path string) (pipe.Pump, error) {
	return defaultRegistry.Pump(path)
}

// Sink resolves a sink from the default registry.
func Sink(ext string, path string) (pipe.Sink, error) {
	return defaultRegistry.Sink(ext, path)
}
