/*
Package pipe executes DSP pipelines over a single stream of audio.

A pipeline has up to three kinds of components:

	Pump - the origin of signal;
	Processor - the manipulator of the signal;
	Sink - the destination of signal.

Pump and Sink are mandatory, there might be 0 to n Processors. The pump
decodes the stream into buffers of a fixed size, every buffer is passed
through the processor chain in order and the outputs are written to the
sink before the next buffer is decoded. This bounds memory by the chain
length and the buffer size, never by the stream length.

At the end of the stream every processor is flushed in chain order and
flushed buffers travel through the remaining downstream processors the
same way regular buffers do. The sink is finalized last: only a finalized
sink output is complete and valid.

Processors that implement Analyzer require a full pre-pass over the
decoded stream before any output can be produced. The pipe detects such
processors and performs the pre-pass with a fresh pump pass before the
real run.

The pipe is strictly sequential: buffer order within the stream is
chunk-order-dependent processor state, so there is no intra-stream
parallelism. Concurrency belongs to the caller that runs many pipes over
many streams.
*/
package pipe

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/pipelined/audiobatch/log"
	"github.com/pipelined/audiobatch/signal"
)

type (
	// Pump is a source of samples. Pump method opens a pass over the
	// source and returns a function that produces consecutive buffers.
	// A single pass is forward-only and not restartable: a new pass is
	// opened with another Pump call after Flush. Implementations should
	// use next error conventions:
	//	- nil if a full buffer was read;
	//	- io.EOF if no data was read;
	//	- io.ErrUnexpectedEOF if not a full buffer was read.
	// The latest case means that pump executed as expected, but not
	// enough data was available. This incomplete buffer still will be
	// processed and the pump will be finished gracefully. Any other
	// error is terminal for the stream and never silently truncates it.
	Pump interface {
		Pump(bufferSize int) (func() (signal.Buffer, error), signal.Properties, error)
		Flush() error
	}

	// Processor defines interface for buffer transforms. Output
	// advertises the produced format before the run starts, Process
	// consumes one buffer and returns zero or more buffers, Flush is
	// called exactly once after the last buffer and drains retained
	// state.
	Processor interface {
		Process(signal.Buffer) ([]signal.Buffer, error)
		Flush() ([]signal.Buffer, error)
		Output(signal.Properties) signal.Properties
	}

	// Analyzer is a processor that requires a dedicated pre-pass over
	// the full stream before the real pass.
	Analyzer interface {
		Processor
		Analyze(signal.Buffer) error
		FinishAnalysis() error
	}

	// Sink is a destination of samples. Sink method opens the
	// destination for a given signal format and returns a function that
	// consumes consecutive buffers. Flush finalizes the destination and
	// is mandatory: output is complete and valid only after it.
	Sink interface {
		Sink(props signal.Properties) (func(signal.Buffer) error, error)
		Flush() error
	}
)

var (
	// ErrDecode wraps terminal failures of the pump.
	ErrDecode = errors.New("decode error")
	// ErrEncode wraps irrecoverable failures of the sink.
	ErrEncode = errors.New("encode error")
)

// state identifies the phase of a pipe run.
type state int

const (
	idle state = iota
	decoding
	processing
	flushing
	closed
	failed
)

func (s state) String() string {
	switch s {
	case idle:
		return "idle"
	case decoding:
		return "decoding"
	case processing:
		return "processing"
	case flushing:
		return "flushing"
	case closed:
		return "closed"
	case failed:
		return "failed"
	}
	return "unknown"
}

// Pipe binds a pump, a processor chain and a sink for a single run.
type Pipe struct {
	pump       Pump
	processors []Processor
	sink       Sink
	bufferSize int
	state      state
	log        *logrus.Entry
}

// Option provides a way to set functional parameters to pipe.
type Option func(p *Pipe) error

// WithPump sets the pump to the pipe.
func WithPump(pump Pump) Option {
	return func(p *Pipe) error {
		p.pump = pump
		return nil
	}
}

// WithProcessors appends processors to the pipe chain.
func WithProcessors(processors ...Processor) Option {
	return func(p *Pipe) error {
		p.processors = append(p.processors, processors...)
		return nil
	}
}

// WithSink sets the sink to the pipe.
func WithSink(sink Sink) Option {
	return func(p *Pipe) error {
		p.sink = sink
		return nil
	}
}

// New creates a new pipe and applies provided options. Returned pipe is
// in idle state, ready for a single Run.
func New(bufferSize int, options ...Option) (*Pipe, error) {
	if bufferSize <= 0 {
		return nil, fmt.Errorf("non-positive buffer size %d", bufferSize)
	}
	p := &Pipe{
		bufferSize: bufferSize,
		log:        log.GetLogger().WithField("pipe", xid.New().String()),
	}
	for _, option := range options {
		if err := option(p); err != nil {
			return nil, err
		}
	}
	if p.pump == nil {
		return nil, errors.New("pipe requires a pump")
	}
	if p.sink == nil {
		return nil, errors.New("pipe requires a sink")
	}
	return p, nil
}

func (p *Pipe) setState(s state) {
	p.state = s
	p.log.Debugf("state %v", s)
}

// Run executes the pipe over the stream. It blocks until the stream is
// drained, an error occurs or the context is done. The pipe cannot be
// run again afterwards.
func (p *Pipe) Run(ctx context.Context) error {
	if err := p.prePass(ctx); err != nil {
		p.setState(failed)
		return err
	}
	if err := p.run(ctx); err != nil {
		p.setState(failed)
		return err
	}
	p.setState(closed)
	return nil
}

// prePass feeds the decoded stream to analyzer processors. Decode errors
// abort the whole run exactly as they would during the real pass.
func (p *Pipe) prePass(ctx context.Context) error {
	var analyzers []Analyzer
	for _, proc := range p.processors {
		if a, ok := proc.(Analyzer); ok {
			analyzers = append(analyzers, a)
		}
	}
	if len(analyzers) == 0 {
		return nil
	}
	p.log.Debug("pre-pass start")
	fn, _, err := p.pump.Pump(p.bufferSize)
	if err != nil {
		return decodeError(err)
	}
	execErr := func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := fn()
			last := false
			switch {
			case err == io.EOF:
				return nil
			case err == io.ErrUnexpectedEOF:
				last = true
			case err != nil:
				return decodeError(err)
			}
			for _, a := range analyzers {
				if err := a.Analyze(b); err != nil {
					return err
				}
			}
			if last {
				return nil
			}
		}
	}()
	if err := p.pump.Flush(); err != nil && execErr == nil {
		execErr = decodeError(err)
	}
	if execErr != nil {
		return execErr
	}
	for _, a := range analyzers {
		if err := a.FinishAnalysis(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipe) run(ctx context.Context) error {
	fn, props, err := p.pump.Pump(p.bufferSize)
	if err != nil {
		return decodeError(err)
	}
	output := props
	for _, proc := range p.processors {
		output = proc.Output(output)
	}
	sinkFn, err := p.sink.Sink(output)
	if err != nil {
		if flushErr := p.pump.Flush(); flushErr != nil {
			return &RunError{ErrExec: encodeError(err), ErrFlush: decodeError(flushErr)}
		}
		return encodeError(err)
	}

	execErr := p.stream(ctx, fn, sinkFn)

	// release the pump and finalize the sink regardless of the
	// execution outcome
	var flushErr error
	if err := p.pump.Flush(); err != nil {
		flushErr = decodeError(err)
	}
	if err := p.sink.Flush(); err != nil && flushErr == nil {
		flushErr = encodeError(err)
	}
	switch {
	case execErr != nil && flushErr != nil:
		return &RunError{ErrExec: execErr, ErrFlush: flushErr}
	case execErr != nil:
		return execErr
	case flushErr != nil:
		return flushErr
	}
	return nil
}

// stream moves buffers from the pump through the processor chain into
// the sink, one decoded buffer at a time.
func (p *Pipe) stream(ctx context.Context, fn func() (signal.Buffer, error), sinkFn func(signal.Buffer) error) error {
	p.setState(decoding)
	seq := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := fn()
		last := false
		switch {
		case err == io.EOF:
			return p.flush(ctx, sinkFn)
		case err == io.ErrUnexpectedEOF:
			last = true
		case err != nil:
			return decodeError(err)
		}
		b.Seq = seq
		seq++

		p.setState(processing)
		buffers := []signal.Buffer{b}
		for _, proc := range p.processors {
			if buffers, err = processAll(proc, buffers); err != nil {
				return err
			}
		}
		for _, out := range buffers {
			if err := sinkFn(out); err != nil {
				return encodeError(err)
			}
		}
		if last {
			return p.flush(ctx, sinkFn)
		}
		p.setState(decoding)
	}
}

// flush drains every processor in chain order. Buffers flushed out of a
// processor travel through the remaining downstream processors exactly
// as regular buffers would.
func (p *Pipe) flush(ctx context.Context, sinkFn func(signal.Buffer) error) error {
	p.setState(flushing)
	for i := range p.processors {
		if err := ctx.Err(); err != nil {
			return err
		}
		buffers, err := p.processors[i].Flush()
		if err != nil {
			return err
		}
		for _, proc := range p.processors[i+1:] {
			if buffers, err = processAll(proc, buffers); err != nil {
				return err
			}
		}
		for _, out := range buffers {
			if err := sinkFn(out); err != nil {
				return encodeError(err)
			}
		}
	}
	return nil
}

func processAll(proc Processor, buffers []signal.Buffer) ([]signal.Buffer, error) {
	var result []signal.Buffer
	for _, b := range buffers {
		out, err := proc.Process(b)
		if err != nil {
			return nil, err
		}
		result = append(result, out...)
	}
	return result, nil
}

// decodeError marks an error as a decode failure. Context errors pass
// through untouched, cancellation is not a codec failure.
func decodeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrDecode, err)
}

func encodeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrEncode, err)
}
