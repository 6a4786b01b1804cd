package stage

import (
	"fmt"
	"math"

	"github.com/pipelined/audiobatch/signal"
)

// gain is a stateless per-sample scale. The amount is either a linear
// multiplier ("amount") or decibels ("db").
type gain struct {
	amount float64
	seq    int
}

func newGain(p Params) (Stage, error) {
	if err := p.verify("amount", "db"); err != nil {
		return nil, err
	}
	amount, err := p.float("amount", math.NaN())
	if err != nil {
		return nil, err
	}
	db, err := p.float("db", math.NaN())
	if err != nil {
		return nil, err
	}
	switch {
	case !math.IsNaN(amount) && !math.IsNaN(db):
		return nil, fmt.Errorf("%w: \"amount\" and \"db\" are mutually exclusive", ErrInvalidParameter)
	case !math.IsNaN(db):
		amount = math.Pow(10, db/20)
	case math.IsNaN(amount):
		return nil, fmt.Errorf("%w: \"amount\" is required", ErrInvalidParameter)
	}
	return &gain{amount: amount}, nil
}

func (g *gain) Output(in signal.Properties) signal.Properties {
	return in
}

func (g *gain) Process(b signal.Buffer) ([]signal.Buffer, error) {
	out := scaled(b, g.amount, g.seq)
	g.seq++
	return []signal.Buffer{out}, nil
}

func (g *gain) Flush() ([]signal.Buffer, error) {
	return nil, nil
}
