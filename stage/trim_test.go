package stage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/audiobatch/signal"
	"github.com/pipelined/audiobatch/stage"
)

// ramp returns samples whose value equals their global frame index.
func ramp(from, n int) []float64 {
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = float64(from + i)
	}
	return samples
}

func TestTrimMidChunk(t *testing.T) {
	// cut points at frames 250 and 900 with chunks of 300: both cuts
	// fall mid-chunk and the chunks must be split exactly at the cut
	s, err := stage.New("trim", stage.Params{"start": 0.25, "end": 0.9})
	require.NoError(t, err)

	var chunks []signal.Buffer
	for start := 0; start < 1200; start += 300 {
		chunks = append(chunks, buffer(t, 1000, ramp(start, 300)))
	}
	out := pump(t, s, chunks...)

	require.Equal(t, 650, out.Size())
	assert.Equal(t, float64(250), out[0][0])
	assert.Equal(t, float64(899), out[0][len(out[0])-1])
	for i := range out[0] {
		assert.Equal(t, float64(250+i), out[0][i])
	}
}

func TestTrimStartOnly(t *testing.T) {
	s, err := stage.New("trim", stage.Params{"start": 0.5})
	require.NoError(t, err)
	out := pump(t, s, buffer(t, 1000, ramp(0, 800)))
	require.Equal(t, 300, out.Size())
	assert.Equal(t, float64(500), out[0][0])
}

func TestTrimDropsWholeChunks(t *testing.T) {
	s, err := stage.New("trim", stage.Params{"start": 1.0, "end": 2.0})
	require.NoError(t, err)

	// the first chunk ends before the start cut and is dropped entirely
	dropped, err := s.Process(buffer(t, 1000, ramp(0, 500)))
	require.NoError(t, err)
	assert.Empty(t, dropped)

	kept, err := s.Process(buffer(t, 1000, ramp(500, 1000)))
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, 500, kept[0].Size())
	assert.Equal(t, float64(1000), kept[0].Float64[0][0])
}
