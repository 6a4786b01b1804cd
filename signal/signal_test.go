package signal_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pipelined/audiobatch/signal"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate int
		data       [][]float64
		wantErr    bool
	}{
		{
			name:       "mono",
			sampleRate: 44100,
			data:       [][]float64{{0, 0.5, 1}},
		},
		{
			name:       "stereo",
			sampleRate: 48000,
			data:       [][]float64{{0, 1}, {1, 0}},
		},
		{
			name:       "empty frames",
			sampleRate: 44100,
			data:       [][]float64{{}},
		},
		{
			name:       "zero sample rate",
			sampleRate: 0,
			data:       [][]float64{{0}},
			wantErr:    true,
		},
		{
			name:       "negative sample rate",
			sampleRate: -1,
			data:       [][]float64{{0}},
			wantErr:    true,
		},
		{
			name:       "no channels",
			sampleRate: 44100,
			data:       [][]float64{},
			wantErr:    true,
		},
		{
			name:       "ragged channels",
			sampleRate: 44100,
			data:       [][]float64{{0, 1}, {0}},
			wantErr:    true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			b, err := signal.New(test.sampleRate, test.data, 0)
			if test.wantErr {
				assert.ErrorIs(t, err, signal.ErrInvalidFormat)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.sampleRate, b.SampleRate)
			assert.Equal(t, len(test.data), b.NumChannels())
		})
	}
}

func TestInterIntAsFloat64(t *testing.T) {
	ints := signal.InterInt{
		Data:        []int{1, 2, 1, 2, 1, 2, 1, 2},
		NumChannels: 2,
	}
	floats := ints.AsFloat64()
	assert.Equal(t, 2, floats.NumChannels())
	assert.Equal(t, 4, floats.Size())
	for i := range floats[0] {
		assert.Equal(t, float64(1), floats[0][i])
		assert.Equal(t, float64(2), floats[1][i])
	}
}

func TestAsInterIntRoundTrip(t *testing.T) {
	floats := signal.Float64{
		{0, 0.5, -0.5},
		{1, -1, 0},
	}
	ints := floats.AsInterInt(signal.BitDepth16)
	assert.Equal(t, 6, len(ints))
	back := signal.InterInt{Data: ints, NumChannels: 2, BitDepth: signal.BitDepth16}.AsFloat64()
	assert.Equal(t, floats.Size(), back.Size())
	for i := range floats {
		for j := range floats[i] {
			assert.InDelta(t, floats[i][j], back[i][j], 1e-3)
		}
	}
}

func TestSlice(t *testing.T) {
	floats := signal.Float64{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}}
	s := floats.Slice(1, 3)
	assert.Equal(t, signal.Float64{{1, 2, 3}, {6, 7, 8}}, s)
	s = floats.Slice(3, 10)
	assert.Equal(t, signal.Float64{{3, 4}, {8, 9}}, s)
}

func TestAppend(t *testing.T) {
	var floats signal.Float64
	floats = floats.Append(signal.Float64{{0, 1}})
	floats = floats.Append(signal.Float64{{2}})
	assert.Equal(t, signal.Float64{{0, 1, 2}}, floats)
}

func TestDurationOf(t *testing.T) {
	assert.Equal(t, time.Second, signal.DurationOf(44100, 44100))
	assert.Equal(t, 500*time.Millisecond, signal.DurationOf(44100, 22050))
}
