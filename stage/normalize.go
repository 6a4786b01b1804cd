package stage

import (
	"fmt"
	"math"

	"github.com/pipelined/audiobatch/signal"
)

// normalize scales the whole stream so that its peak (or RMS) level
// matches the target. The scale can only be derived after the stream has
// been observed, so normalize is a two-pass stage: the pipeline runs its
// accumulator over the decoded stream first and only then starts the
// real pass.
type normalize struct {
	target float64
	mode   string

	// accumulator state, filled during the pre-pass
	peak  float64
	sum   float64
	count int64

	scale float64
	seq   int
}

const (
	modePeak = "peak"
	modeRMS  = "rms"
)

func newNormalize(p Params) (Stage, error) {
	if err := p.verify("target", "mode"); err != nil {
		return nil, err
	}
	target, err := p.float("target", 1.0)
	if err != nil {
		return nil, err
	}
	if target <= 0 {
		return nil, fmt.Errorf("%w: \"target\" must be positive, got %v", ErrInvalidParameter, target)
	}
	mode, err := p.str("mode", modePeak)
	if err != nil {
		return nil, err
	}
	if mode != modePeak && mode != modeRMS {
		return nil, fmt.Errorf("%w: \"mode\" must be %q or %q, got %q", ErrInvalidParameter, modePeak, modeRMS, mode)
	}
	return &normalize{target: target, mode: mode, scale: 1}, nil
}

func (n *normalize) Output(in signal.Properties) signal.Properties {
	return in
}

// Analyze accumulates the level of the stream.
func (n *normalize) Analyze(b signal.Buffer) error {
	for i := range b.Float64 {
		for _, s := range b.Float64[i] {
			if abs := math.Abs(s); abs > n.peak {
				n.peak = abs
			}
			n.sum += s * s
		}
	}
	n.count += int64(b.Size() * b.NumChannels())
	return nil
}

// FinishAnalysis derives the scale from the accumulated level. A silent
// stream keeps the scale at 1 to avoid division by zero.
func (n *normalize) FinishAnalysis() error {
	var level float64
	switch n.mode {
	case modePeak:
		level = n.peak
	case modeRMS:
		if n.count > 0 {
			level = math.Sqrt(n.sum / float64(n.count))
		}
	}
	if level > 0 {
		n.scale = n.target / level
	}
	return nil
}

func (n *normalize) Process(b signal.Buffer) ([]signal.Buffer, error) {
	out := scaled(b, n.scale, n.seq)
	n.seq++
	return []signal.Buffer{out}, nil
}

func (n *normalize) Flush() ([]signal.Buffer, error) {
	return nil, nil
}
