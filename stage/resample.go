package stage

import (
	"fmt"

	"github.com/pipelined/audiobatch/signal"
)

// resample converts the stream to a target sample rate with linear
// interpolation over an exact rational phase. Output frame k maps to
// input position k*in/out where in/out is the reduced rate ratio; the
// fractional remainder of that division is the interpolation phase. All
// accounting is done with global frame indices, so splitting the stream
// into chunks of any size produces identical output. Frames that map
// past the last received input frame are drained in Flush.
type resample struct {
	rate     int // target rate
	srcRate  int
	channels int
	in, out  int64 // reduced ratio terms

	inCount  int64     // input frames consumed
	outCount int64     // output frames produced
	last     []float64 // most recent input frame per channel
	hasLast  bool
	seq      int
}

func newResample(p Params) (Stage, error) {
	if err := p.verify("rate"); err != nil {
		return nil, err
	}
	rate, err := p.integer("rate", 0)
	if err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: \"rate\" must be a positive integer, got %d", ErrInvalidParameter, rate)
	}
	return &resample{rate: rate}, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func (r *resample) bind(props signal.Properties) {
	if r.srcRate != 0 {
		return
	}
	r.srcRate = props.SampleRate
	r.channels = props.Channels
	g := gcd(r.srcRate, r.rate)
	r.in = int64(r.srcRate / g)
	r.out = int64(r.rate / g)
	r.last = make([]float64, r.channels)
}

func (r *resample) Output(in signal.Properties) signal.Properties {
	r.bind(in)
	return signal.Properties{SampleRate: r.rate, Channels: in.Channels}
}

// sampleAt reads the input sample at a global frame index. The index is
// either within the current chunk or points at the retained last frame
// of the previous chunk.
func (r *resample) sampleAt(b signal.Buffer, idx int64, channel int) float64 {
	if idx < r.inCount {
		return r.last[channel]
	}
	return b.Float64[channel][idx-r.inCount]
}

func (r *resample) Process(b signal.Buffer) ([]signal.Buffer, error) {
	r.bind(b.Props())
	if b.Size() == 0 {
		return nil, nil
	}
	if r.srcRate == r.rate {
		out := signal.Buffer{Float64: b.Float64, SampleRate: b.SampleRate, Seq: r.seq}
		r.seq++
		return []signal.Buffer{out}, nil
	}

	n := int64(b.Size())
	lastIdx := r.inCount + n - 1

	// count output frames whose interpolation window is fully available
	var count int64
	for k := r.outCount; ; k++ {
		pos := k * r.in
		ipos, frac := pos/r.out, pos%r.out
		if ipos < lastIdx || (frac == 0 && ipos <= lastIdx) {
			count++
			continue
		}
		break
	}

	var result []signal.Buffer
	if count > 0 {
		out := signal.Alloc(r.rate, r.channels, int(count), r.seq)
		r.seq++
		for k := int64(0); k < count; k++ {
			pos := (r.outCount + k) * r.in
			ipos, frac := pos/r.out, pos%r.out
			for ch := 0; ch < r.channels; ch++ {
				s0 := r.sampleAt(b, ipos, ch)
				if frac == 0 {
					out.Float64[ch][k] = s0
					continue
				}
				s1 := r.sampleAt(b, ipos+1, ch)
				out.Float64[ch][k] = s0 + (s1-s0)*float64(frac)/float64(r.out)
			}
		}
		result = append(result, out)
	}

	for ch := 0; ch < r.channels; ch++ {
		r.last[ch] = b.Float64[ch][n-1]
	}
	r.hasLast = true
	r.inCount += n
	r.outCount += count
	return result, nil
}

// Flush drains output frames that map into the trailing fraction of the
// last input frame. Their interpolation target does not exist, so the
// last frame value is held.
func (r *resample) Flush() ([]signal.Buffer, error) {
	if !r.hasLast || r.srcRate == r.rate {
		return nil, nil
	}
	var count int64
	for k := r.outCount; k*r.in < r.inCount*r.out; k++ {
		count++
	}
	if count == 0 {
		return nil, nil
	}
	out := signal.Alloc(r.rate, r.channels, int(count), r.seq)
	r.seq++
	for ch := 0; ch < r.channels; ch++ {
		for k := int64(0); k < count; k++ {
			out.Float64[ch][k] = r.last[ch]
		}
	}
	r.outCount += count
	return []signal.Buffer{out}, nil
}
