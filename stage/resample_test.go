package stage_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipelined/audiobatch/signal"
	"github.com/pipelined/audiobatch/stage"
)

// sine returns one second of a 440Hz tone at provided rate.
func sine(rate int) []float64 {
	samples := make([]float64, rate)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
	}
	return samples
}

func TestResampleRoundTrip(t *testing.T) {
	down, err := stage.New("resample", stage.Params{"rate": 22050})
	require.NoError(t, err)
	up, err := stage.New("resample", stage.Params{"rate": 44100})
	require.NoError(t, err)

	src := buffer(t, 44100, sine(44100))
	half := pump(t, down, src)
	assert.InDelta(t, 22050, half.Size(), 1)

	halfBuf, err := signal.New(22050, half, 0)
	require.NoError(t, err)
	restored := pump(t, up, halfBuf)
	assert.InDelta(t, 44100, restored.Size(), 1)
}

func TestResampleChunkingInvariance(t *testing.T) {
	samples := sine(44100)

	for _, chunkSize := range []int{64, 97, 512, 4096} {
		one, err := stage.New("resample", stage.Params{"rate": 32000})
		require.NoError(t, err)
		whole := pump(t, one, buffer(t, 44100, samples))

		chunked, err := stage.New("resample", stage.Params{"rate": 32000})
		require.NoError(t, err)
		var chunks []signal.Buffer
		for start := 0; start < len(samples); start += chunkSize {
			end := start + chunkSize
			if end > len(samples) {
				end = len(samples)
			}
			chunks = append(chunks, buffer(t, 44100, samples[start:end]))
		}
		split := pump(t, chunked, chunks...)

		require.Equal(t, whole.Size(), split.Size(), "chunk size %d", chunkSize)
		for i := range whole[0] {
			assert.InDelta(t, whole[0][i], split[0][i], 1e-12, "chunk size %d, frame %d", chunkSize, i)
		}
	}
}

func TestResampleSameRate(t *testing.T) {
	s, err := stage.New("resample", stage.Params{"rate": 44100})
	require.NoError(t, err)
	in := buffer(t, 44100, []float64{0.1, 0.2, 0.3})
	out := pump(t, s, in)
	assert.Equal(t, signal.Float64{{0.1, 0.2, 0.3}}, out)
}

func TestResampleStereo(t *testing.T) {
	s, err := stage.New("resample", stage.Params{"rate": 8000})
	require.NoError(t, err)
	in, err := signal.New(16000, [][]float64{sine(16000), sine(16000)}, 0)
	require.NoError(t, err)

	var out signal.Float64
	produced, err := s.Process(in)
	require.NoError(t, err)
	for _, p := range produced {
		assert.Equal(t, 8000, p.SampleRate)
		assert.Equal(t, 2, p.NumChannels())
		out = out.Append(p.Float64)
	}
	produced, err = s.Flush()
	require.NoError(t, err)
	for _, p := range produced {
		out = out.Append(p.Float64)
	}
	assert.InDelta(t, 8000, out.Size(), 1)
	// channels carry the same signal
	for i := range out[0] {
		assert.Equal(t, out[0][i], out[1][i])
	}
}
