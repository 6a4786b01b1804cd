package stage

import (
	"fmt"
	"math"

	"github.com/pipelined/audiobatch/signal"
)

// trim keeps the part of the stream between the start and end points,
// given in seconds. Cut points are tracked with a global frame counter,
// so they don't have to align with chunk boundaries: a chunk that
// straddles a cut is split exactly at the cut.
type trim struct {
	start, end float64

	rate       int
	startFrame int64
	endFrame   int64 // -1 means until end of stream
	elapsed    int64
	seq        int
}

func newTrim(p Params) (Stage, error) {
	if err := p.verify("start", "end"); err != nil {
		return nil, err
	}
	start, err := p.float("start", 0)
	if err != nil {
		return nil, err
	}
	if start < 0 {
		return nil, fmt.Errorf("%w: \"start\" must not be negative, got %v", ErrInvalidParameter, start)
	}
	end, err := p.float("end", 0)
	if err != nil {
		return nil, err
	}
	if end != 0 && end <= start {
		return nil, fmt.Errorf("%w: \"end\" must be greater than \"start\", got %v", ErrInvalidParameter, end)
	}
	return &trim{start: start, end: end, endFrame: -1}, nil
}

func (t *trim) bind(props signal.Properties) {
	if t.rate != 0 {
		return
	}
	t.rate = props.SampleRate
	t.startFrame = int64(math.Round(t.start * float64(t.rate)))
	if t.end != 0 {
		t.endFrame = int64(math.Round(t.end * float64(t.rate)))
	}
}

func (t *trim) Output(in signal.Properties) signal.Properties {
	t.bind(in)
	return in
}

func (t *trim) Process(b signal.Buffer) ([]signal.Buffer, error) {
	t.bind(b.Props())
	n := int64(b.Size())
	from, to := t.elapsed, t.elapsed+n
	t.elapsed += n

	// intersect [from, to) with [startFrame, endFrame)
	lo, hi := from, to
	if t.startFrame > lo {
		lo = t.startFrame
	}
	if t.endFrame >= 0 && t.endFrame < hi {
		hi = t.endFrame
	}
	if lo >= hi {
		return nil, nil
	}
	out := signal.Buffer{
		Float64:    b.Slice(int(lo-from), int(hi-lo)),
		SampleRate: b.SampleRate,
		Seq:        t.seq,
	}
	t.seq++
	return []signal.Buffer{out}, nil
}

func (t *trim) Flush() ([]signal.Buffer, error) {
	return nil, nil
}
