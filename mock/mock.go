// Package mock provides pipe components for testing: a deterministic
// signal generator, a counting processor and a collecting sink.
package mock

import (
	"io"
	"math"
	"time"

	"github.com/pipelined/audiobatch/signal"
)

const (
	defaultSampleRate = 44100
	defaultChannels   = 1
)

// Pump generates signal: a sine wave of Freq when it is set, otherwise
// a constant Value. Every Pump call starts a fresh pass, so the pump
// can be used for two-pass pipelines.
type Pump struct {
	SampleRate int
	Channels   int
	// Limit is the total number of frames to produce.
	Limit int
	// Value is the constant sample value, or the amplitude when Freq is set.
	Value float64
	Freq  float64
	// Interval is slept before producing each buffer to simulate slow io.
	Interval time.Duration
	// Err, when set, is returned after ErrAfter buffers were produced.
	Err      error
	ErrAfter int

	// Flushed counts Flush calls across passes.
	Flushed int
}

func (p *Pump) props() signal.Properties {
	rate, channels := p.SampleRate, p.Channels
	if rate == 0 {
		rate = defaultSampleRate
	}
	if channels == 0 {
		channels = defaultChannels
	}
	return signal.Properties{SampleRate: rate, Channels: channels}
}

// Pump starts a new pass over the generated signal.
func (p *Pump) Pump(bufferSize int) (func() (signal.Buffer, error), signal.Properties, error) {
	props := p.props()
	pos := 0
	buffers := 0
	fn := func() (signal.Buffer, error) {
		if p.Interval > 0 {
			time.Sleep(p.Interval)
		}
		if p.Err != nil && buffers == p.ErrAfter {
			return signal.Buffer{}, p.Err
		}
		if pos >= p.Limit {
			return signal.Buffer{}, io.EOF
		}
		n := bufferSize
		if pos+n > p.Limit {
			n = p.Limit - pos
		}
		b := signal.Alloc(props.SampleRate, props.Channels, n, buffers)
		for i := 0; i < n; i++ {
			v := p.Value
			if p.Freq > 0 {
				v = p.Value * math.Sin(2*math.Pi*p.Freq*float64(pos+i)/float64(props.SampleRate))
			}
			for ch := 0; ch < props.Channels; ch++ {
				b.Float64[ch][i] = v
			}
		}
		pos += n
		buffers++
		if n < bufferSize {
			return b, io.ErrUnexpectedEOF
		}
		return b, nil
	}
	return fn, props, nil
}

// Flush ends the pass.
func (p *Pump) Flush() error {
	p.Flushed++
	return nil
}

// Processor passes buffers through and counts them.
type Processor struct {
	Messages int
	Samples  int
}

// Output implements a passthrough processor.
func (p *Processor) Output(in signal.Properties) signal.Properties {
	return in
}

// Process counts and forwards the buffer.
func (p *Processor) Process(b signal.Buffer) ([]signal.Buffer, error) {
	p.Messages++
	p.Samples += b.Size()
	return []signal.Buffer{b}, nil
}

// Flush implements a passthrough processor.
func (p *Processor) Flush() ([]signal.Buffer, error) {
	return nil, nil
}

// Sink collects signal it receives.
type Sink struct {
	Props    signal.Properties
	Data     signal.Float64
	Messages int
	Flushed  bool
	// Err, when set, is returned on the first write.
	Err error
}

// Sink starts collecting.
func (s *Sink) Sink(props signal.Properties) (func(signal.Buffer) error, error) {
	s.Props = props
	return func(b signal.Buffer) error {
		if s.Err != nil {
			return s.Err
		}
		s.Messages++
		s.Data = s.Data.Append(b.Float64)
		return nil
	}, nil
}

// Flush marks the sink finalized.
func (s *Sink) Flush() error {
	s.Flushed = true
	return nil
}
