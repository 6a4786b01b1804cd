// Package wav reads and writes wav files.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/pipelined/audiobatch/signal"
)

type (
	// Pump reads from wav file. Every Pump call opens a fresh pass over
	// the file.
	Pump struct {
		path    string
		file    *os.File
		decoder *wav.Decoder
	}

	// Sink saves audio to wav file.
	Sink struct {
		path     string
		bitDepth signal.BitDepth
		format   int
		file     *os.File
		encoder  *wav.Encoder
	}
)

var (
	// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
	ErrUnsupportedBitDepth = errors.New("only 16 and 32 bit depth are supported")
	// ErrInvalidWav is returned when the file is not a readable wav.
	ErrInvalidWav = errors.New("wav is not valid")
)

// NewPump creates a new wav pump for the file at the path.
func NewPump(path string) *Pump {
	return &Pump{path: path}
}

// Pump opens the file and starts a decode pass.
func (p *Pump) Pump(bufferSize int) (func() (signal.Buffer, error), signal.Properties, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return nil, signal.Properties{}, err
	}

	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		if err = file.Close(); err != nil {
			return nil, signal.Properties{}, fmt.Errorf("%w, failed to close the file %v", ErrInvalidWav, p.path)
		}
		return nil, signal.Properties{}, ErrInvalidWav
	}
	if signal.BitDepth(decoder.BitDepth) != signal.BitDepth16 && signal.BitDepth(decoder.BitDepth) != signal.BitDepth32 {
		_ = file.Close()
		return nil, signal.Properties{}, ErrUnsupportedBitDepth
	}

	p.file = file
	p.decoder = decoder
	numChannels := decoder.Format().NumChannels
	sampleRate := int(decoder.SampleRate)
	bitDepth := int(decoder.BitDepth)

	ib := &audio.IntBuffer{
		Format:         decoder.Format(),
		Data:           make([]int, bufferSize*numChannels),
		SourceBitDepth: bitDepth,
	}

	fn := func() (signal.Buffer, error) {
		readSamples, err := p.decoder.PCMBuffer(ib)
		if err != nil {
			return signal.Buffer{}, err
		}
		if readSamples == 0 {
			return signal.Buffer{}, io.EOF
		}
		// prune buffer to actual size
		floats := signal.InterInt{
			Data:        ib.Data[:readSamples],
			NumChannels: numChannels,
			BitDepth:    signal.BitDepth(bitDepth),
		}.AsFloat64()
		b := signal.Buffer{Float64: floats, SampleRate: sampleRate}
		if b.Size() != bufferSize {
			return b, io.ErrUnexpectedEOF
		}
		return b, nil
	}
	return fn, signal.Properties{SampleRate: sampleRate, Channels: numChannels}, nil
}

// Flush closes the file of the current pass.
func (p *Pump) Flush() error {
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	p.decoder = nil
	return err
}

// NewSink creates new wav sink.
func NewSink(path string, bitDepth signal.BitDepth) (*Sink, error) {
	if bitDepth != signal.BitDepth16 && bitDepth != signal.BitDepth32 {
		return nil, ErrUnsupportedBitDepth
	}
	return &Sink{
		path:     path,
		bitDepth: bitDepth,
		format:   1,
	}, nil
}

// Sink creates the file and starts an encode pass.
func (s *Sink) Sink(props signal.Properties) (func(signal.Buffer) error, error) {
	f, err := os.Create(s.path)
	if err != nil {
		return nil, err
	}
	e := wav.NewEncoder(f, props.SampleRate, int(s.bitDepth), props.Channels, s.format)

	s.file = f
	s.encoder = e
	ib := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: props.Channels,
			SampleRate:  props.SampleRate,
		},
		SourceBitDepth: int(s.bitDepth),
	}

	return func(b signal.Buffer) error {
		ib.Data = b.Float64.AsInterInt(s.bitDepth)
		return s.encoder.Write(ib)
	}, nil
}

// Flush finalizes the encoder and closes the file. The output is
// complete and valid only after Flush returns without error.
func (s *Sink) Flush() error {
	if s.encoder == nil {
		return nil
	}
	if err := s.encoder.Close(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
