package pipe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/audiobatch/mock"
	"github.com/pipelined/audiobatch/pipe"
	"github.com/pipelined/audiobatch/signal"
	"github.com/pipelined/audiobatch/stage"
)

const bufferSize = 512

func TestPipe(t *testing.T) {
	pump := &mock.Pump{Limit: 1000, Value: 0.5}
	processor := &mock.Processor{}
	sink := &mock.Sink{}

	p, err := pipe.New(
		bufferSize,
		pipe.WithPump(pump),
		pipe.WithProcessors(processor),
		pipe.WithSink(sink),
	)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 2, processor.Messages)
	assert.Equal(t, 1000, processor.Samples)
	assert.Equal(t, 1000, sink.Data.Size())
	assert.Equal(t, 1, pump.Flushed)
	assert.True(t, sink.Flushed)
	assert.Equal(t, signal.Properties{SampleRate: 44100, Channels: 1}, sink.Props)
}

func TestPipeValidation(t *testing.T) {
	_, err := pipe.New(bufferSize, pipe.WithSink(&mock.Sink{}))
	assert.Error(t, err)
	_, err = pipe.New(bufferSize, pipe.WithPump(&mock.Pump{}))
	assert.Error(t, err)
	_, err = pipe.New(0, pipe.WithPump(&mock.Pump{}), pipe.WithSink(&mock.Sink{}))
	assert.Error(t, err)
}

// offset adds a constant to every sample. Used to observe that flushed
// buffers of upstream stages travel through downstream stages.
type offset struct {
	value float64
}

func (o *offset) Output(in signal.Properties) signal.Properties { return in }

func (o *offset) Process(b signal.Buffer) ([]signal.Buffer, error) {
	out := signal.Alloc(b.SampleRate, b.NumChannels(), b.Size(), b.Seq)
	for i := range b.Float64 {
		for j := range b.Float64[i] {
			out.Float64[i][j] = b.Float64[i][j] + o.value
		}
	}
	return []signal.Buffer{out}, nil
}

func (o *offset) Flush() ([]signal.Buffer, error) { return nil, nil }

func TestFlushCascade(t *testing.T) {
	// pad flushes trailing silence, the downstream offset must see it
	pad, err := stage.New("pad", stage.Params{"trail": 0.1})
	require.NoError(t, err)
	pump := &mock.Pump{SampleRate: 1000, Limit: 100, Value: 0.25}
	sink := &mock.Sink{}

	p, err := pipe.New(
		bufferSize,
		pipe.WithPump(pump),
		pipe.WithProcessors(pad, &offset{value: 1}),
		pipe.WithSink(sink),
	)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	require.Equal(t, 200, sink.Data.Size())
	assert.Equal(t, 1.25, sink.Data[0][0])
	// flushed silence got the offset applied downstream
	assert.Equal(t, 1.0, sink.Data[0][150])
}

func TestTwoPass(t *testing.T) {
	normalize, err := stage.New("normalize", stage.Params{"target": 1.0})
	require.NoError(t, err)
	pump := &mock.Pump{Limit: 4410, Value: 0.5, Freq: 440}
	sink := &mock.Sink{}

	p, err := pipe.New(
		bufferSize,
		pipe.WithPump(pump),
		pipe.WithProcessors(normalize),
		pipe.WithSink(sink),
	)
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))

	// pre-pass and real pass both consumed the pump
	assert.Equal(t, 2, pump.Flushed)

	peak := 0.0
	for _, v := range sink.Data[0] {
		if v > peak {
			peak = v
		}
	}
	assert.InDelta(t, 1.0, peak, 1e-6)
}

func TestDecodeError(t *testing.T) {
	corrupt := errors.New("bad frame")
	pump := &mock.Pump{Limit: 10000, Value: 0.1, Err: corrupt, ErrAfter: 2}
	sink := &mock.Sink{}

	p, err := pipe.New(bufferSize, pipe.WithPump(pump), pipe.WithSink(sink))
	require.NoError(t, err)
	err = p.Run(context.Background())
	// error after produced buffers is terminal, not a truncation
	assert.ErrorIs(t, err, pipe.ErrDecode)
	assert.Equal(t, 1, pump.Flushed)
}

func TestEncodeError(t *testing.T) {
	pump := &mock.Pump{Limit: 1000, Value: 0.1}
	sink := &mock.Sink{Err: errors.New("disk full")}

	p, err := pipe.New(bufferSize, pipe.WithPump(pump), pipe.WithSink(sink))
	require.NoError(t, err)
	err = p.Run(context.Background())
	assert.ErrorIs(t, err, pipe.ErrEncode)
}

func TestCancellation(t *testing.T) {
	pump := &mock.Pump{Limit: 1 << 30, Value: 0.1, Interval: time.Millisecond}
	sink := &mock.Sink{}

	p, err := pipe.New(bufferSize, pipe.WithPump(pump), pipe.WithSink(sink))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err = p.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	// resources are released on interruption
	assert.Equal(t, 1, pump.Flushed)
}

// TestChunkingInvariance processes the same stream with different
// buffer sizes through the same chain and expects equal output.
func TestChunkingInvariance(t *testing.T) {
	run := func(bufferSize int) signal.Float64 {
		stages, err := stage.Chain(
			stage.Config{Name: "gain", Params: stage.Params{"amount": 0.8}},
			stage.Config{Name: "resample", Params: stage.Params{"rate": 22050}},
			stage.Config{Name: "trim", Params: stage.Params{"start": 0.1, "end": 0.4}},
		)
		require.NoError(t, err)
		processors := make([]pipe.Processor, len(stages))
		for i := range stages {
			processors[i] = stages[i]
		}
		pump := &mock.Pump{Limit: 22050, Value: 0.5, Freq: 220}
		sink := &mock.Sink{}
		p, err := pipe.New(
			bufferSize,
			pipe.WithPump(pump),
			pipe.WithProcessors(processors...),
			pipe.WithSink(sink),
		)
		require.NoError(t, err)
		require.NoError(t, p.Run(context.Background()))
		return sink.Data
	}

	whole := run(22050)
	for _, size := range []int{64, 100, 512, 1000} {
		chunked := run(size)
		require.Equal(t, whole.Size(), chunked.Size(), "buffer size %d", size)
		for i := range whole[0] {
			assert.InDelta(t, whole[0][i], chunked[0][i], 1e-12, "buffer size %d, frame %d", size, i)
		}
	}
}
