// Package vorbis reads ogg vorbis files. There is no encoder: vorbis is
// a decode-only format here.
package vorbis

import (
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"

	"github.com/pipelined/audiobatch/signal"
)

// Pump reads from an ogg vorbis file.
type Pump struct {
	path    string
	file    *os.File
	decoder *oggvorbis.Reader
	// rem holds values of a partially read frame between calls
	rem []float32
}

// NewPump creates a new vorbis pump for the file at the path.
func NewPump(path string) *Pump {
	return &Pump{path: path}
}

// Pump opens the file and starts a decode pass.
func (p *Pump) Pump(bufferSize int) (func() (signal.Buffer, error), signal.Properties, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return nil, signal.Properties{}, err
	}
	decoder, err := oggvorbis.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, signal.Properties{}, err
	}
	p.file = file
	p.decoder = decoder
	p.rem = nil
	sampleRate := decoder.SampleRate()
	channels := decoder.Channels()

	fn := func() (signal.Buffer, error) {
		want := bufferSize * channels
		vals := make([]float32, 0, want)
		vals = append(vals, p.rem...)
		p.rem = nil
		var readErr error
		for len(vals) < want {
			n, err := p.decoder.Read(vals[len(vals):want])
			vals = vals[:len(vals)+n]
			if err != nil {
				readErr = err
				break
			}
		}
		// keep only whole frames, carry the tail over to the next call
		frames := len(vals) / channels
		if tail := len(vals) % channels; tail != 0 {
			p.rem = append(p.rem, vals[len(vals)-tail:]...)
			vals = vals[:len(vals)-tail]
		}
		if frames == 0 {
			if readErr == io.EOF || readErr == nil {
				return signal.Buffer{}, io.EOF
			}
			return signal.Buffer{}, readErr
		}
		floats := signal.EmptyFloat64(channels, frames)
		for i := 0; i < frames; i++ {
			for ch := 0; ch < channels; ch++ {
				floats[ch][i] = float64(vals[i*channels+ch])
			}
		}
		b := signal.Buffer{Float64: floats, SampleRate: sampleRate}
		if readErr == io.EOF {
			return b, io.ErrUnexpectedEOF
		}
		if readErr != nil {
			return b, readErr
		}
		return b, nil
	}
	return fn, signal.Properties{SampleRate: sampleRate, Channels: channels}, nil
}

// Flush closes the file of the current pass.
func (p *Pump) Flush() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	p.decoder = nil
	p.rem = nil
	return err
}
