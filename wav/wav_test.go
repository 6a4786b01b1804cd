package wav_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/audiobatch/mock"
	"github.com/pipelined/audiobatch/pipe"
	"github.com/pipelined/audiobatch/signal"
	"github.com/pipelined/audiobatch/wav"
)

const bufferSize = 512

func encode(t *testing.T, path string, pump pipe.Pump, bitDepth signal.BitDepth) {
	t.Helper()
	sink, err := wav.NewSink(path, bitDepth)
	require.NoError(t, err)
	p, err := pipe.New(bufferSize, pipe.WithPump(pump), pipe.WithSink(sink))
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))
}

func decode(t *testing.T, path string) *mock.Sink {
	t.Helper()
	sink := &mock.Sink{}
	p, err := pipe.New(bufferSize, pipe.WithPump(wav.NewPump(path)), pipe.WithSink(sink))
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))
	return sink
}

func TestRoundTrip(t *testing.T) {
	// 3000 frames is not a multiple of the buffer size, the last decoded
	// buffer is partial
	source := &mock.Pump{Limit: 3000, Value: 0.5, Freq: 440, Channels: 2}
	path := filepath.Join(t.TempDir(), "out.wav")
	encode(t, path, source, signal.BitDepth16)

	sink := decode(t, path)
	assert.Equal(t, signal.Properties{SampleRate: 44100, Channels: 2}, sink.Props)
	require.Equal(t, 3000, sink.Data.Size())

	expected := &mock.Sink{}
	p, err := pipe.New(bufferSize, pipe.WithPump(source), pipe.WithSink(expected))
	require.NoError(t, err)
	require.NoError(t, p.Run(context.Background()))
	for ch := range expected.Data {
		for i := range expected.Data[ch] {
			assert.InDelta(t, expected.Data[ch][i], sink.Data[ch][i], 1e-3)
		}
	}
}

func TestRoundTrip32(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	encode(t, path, &mock.Pump{Limit: 1024, Value: 0.25}, signal.BitDepth32)

	sink := decode(t, path)
	require.Equal(t, 1024, sink.Data.Size())
	assert.InDelta(t, 0.25, sink.Data[0][100], 1e-6)
}

func TestPumpErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.wav")
	require.NoError(t, os.WriteFile(garbage, []byte("RIFFnope"), 0o644))

	_, _, err := wav.NewPump(garbage).Pump(bufferSize)
	assert.ErrorIs(t, err, wav.ErrInvalidWav)

	_, _, err = wav.NewPump(filepath.Join(dir, "missing.wav")).Pump(bufferSize)
	assert.Error(t, err)
}

func TestSinkBitDepth(t *testing.T) {
	_, err := wav.NewSink("out.wav", signal.BitDepth24)
	assert.ErrorIs(t, err, wav.ErrUnsupportedBitDepth)
	_, err = wav.NewSink("out.wav", signal.BitDepth16)
	assert.NoError(t, err)
}
