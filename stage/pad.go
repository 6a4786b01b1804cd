package stage

import (
	"fmt"
	"math"

	"github.com/pipelined/audiobatch/signal"
)

// pad adds silence around the stream: lead seconds before the first
// buffer and trail seconds after the last. Silence is emitted in chunks
// of the same size as the incoming buffers to keep memory bounded for
// long paddings.
type pad struct {
	lead, trail float64

	props     signal.Properties
	started   bool
	chunkSize int
	seq       int
}

func newPad(p Params) (Stage, error) {
	if err := p.verify("lead", "trail"); err != nil {
		return nil, err
	}
	lead, err := p.float("lead", 0)
	if err != nil {
		return nil, err
	}
	trail, err := p.float("trail", 0)
	if err != nil {
		return nil, err
	}
	if lead < 0 || trail < 0 {
		return nil, fmt.Errorf("%w: padding must not be negative, got lead %v trail %v", ErrInvalidParameter, lead, trail)
	}
	return &pad{lead: lead, trail: trail}, nil
}

func (p *pad) Output(in signal.Properties) signal.Properties {
	p.props = in
	return in
}

func (p *pad) frames(seconds float64) int {
	return int(math.Round(seconds * float64(p.props.SampleRate)))
}

func (p *pad) Process(b signal.Buffer) ([]signal.Buffer, error) {
	if p.props.SampleRate == 0 {
		p.props = b.Props()
	}
	var result []signal.Buffer
	if !p.started {
		p.started = true
		p.chunkSize = b.Size()
		result, p.seq = silence(result, p.props, p.frames(p.lead), p.chunkSize, p.seq)
	}
	out := signal.Buffer{Float64: b.Float64, SampleRate: b.SampleRate, Seq: p.seq}
	p.seq++
	return append(result, out), nil
}

// Flush emits the trailing silence. If the stream was empty, the leading
// silence is emitted here as well, using the format advertised before
// the run.
func (p *pad) Flush() ([]signal.Buffer, error) {
	if p.props.SampleRate == 0 {
		return nil, nil
	}
	var result []signal.Buffer
	if !p.started {
		result, p.seq = silence(result, p.props, p.frames(p.lead), p.chunkSize, p.seq)
	}
	result, p.seq = silence(result, p.props, p.frames(p.trail), p.chunkSize, p.seq)
	return result, nil
}
