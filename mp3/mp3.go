// Package mp3 reads and writes mp3 files. Decoding is done with a pure
// Go decoder, encoding uses lame bindings.
package mp3

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/viert/lame"

	"github.com/pipelined/audiobatch/signal"
)

// DefaultBitRate is used when the sink bit rate is not set. It matches
// common audiobook mastering quality.
const DefaultBitRate = 224

type (
	// Pump reads from mp3 file. The decoder always produces stereo
	// 16-bit signal.
	Pump struct {
		path    string
		file    *os.File
		decoder *mp3.Decoder
		done    bool
	}

	// Sink saves audio to mp3 file.
	Sink struct {
		path    string
		bitRate int
		quality int
		file    *os.File
		writer  *lame.LameWriter
	}
)

const numChannels = 2 // go-mp3 decoder always produces stereo

// NewPump creates a new mp3 pump for the file at the path.
func NewPump(path string) *Pump {
	return &Pump{path: path}
}

// Pump opens the file and starts a decode pass.
func (p *Pump) Pump(bufferSize int) (func() (signal.Buffer, error), signal.Properties, error) {
	file, err := os.Open(p.path)
	if err != nil {
		return nil, signal.Properties{}, err
	}
	decoder, err := mp3.NewDecoder(file)
	if err != nil {
		_ = file.Close()
		return nil, signal.Properties{}, err
	}
	p.file = file
	p.decoder = decoder
	p.done = false
	sampleRate := decoder.SampleRate()

	fn := func() (signal.Buffer, error) {
		if p.done {
			return signal.Buffer{}, io.EOF
		}
		ints := make([]int, 0, bufferSize*numChannels)
		var val int16
		for len(ints) < bufferSize*numChannels && !p.done {
			if err := binary.Read(p.decoder, binary.LittleEndian, &val); err != nil {
				if err == io.EOF || err == io.ErrUnexpectedEOF {
					p.done = true
					break
				}
				return signal.Buffer{}, err
			}
			ints = append(ints, int(val))
		}
		if len(ints) == 0 {
			return signal.Buffer{}, io.EOF
		}
		if len(ints)%numChannels != 0 {
			ints = append(ints, 0)
		}
		floats := signal.InterInt{
			Data:        ints,
			NumChannels: numChannels,
			BitDepth:    signal.BitDepth16,
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

// NewSink creates new mp3 sink with provided bit rate (kbps) and
// quality (0 best to 9 worst).
func NewSink(path string, bitRate int, quality int) *Sink {
	if bitRate <= 0 {
		bitRate = DefaultBitRate
	}
	return &Sink{
		path:    path,
		bitRate: bitRate,
		quality: quality,
	}
}

// Sink creates the file and starts an encode pass.
func (s *Sink) Sink(props signal.Properties) (func(signal.Buffer) error, error) {
	f, err := os.Create(s.path)
	if err != nil {
		return nil, err
	}
	wr := lame.NewWriter(f)
	wr.Encoder.SetBitrate(s.bitRate)
	wr.Encoder.SetQuality(s.quality)
	wr.Encoder.SetNumChannels(props.Channels)
	wr.Encoder.SetInSamplerate(props.SampleRate)
	if props.Channels == 1 {
		wr.Encoder.SetMode(lame.MONO)
	} else {
		wr.Encoder.SetMode(lame.JOINT_STEREO)
	}
	wr.Encoder.InitParams()
	s.file = f
	s.writer = wr

	return func(b signal.Buffer) error {
		buf := new(bytes.Buffer)
		ints := b.Float64.AsInterInt(signal.BitDepth16)
		for i := range ints {
			if err := binary.Write(buf, binary.LittleEndian, int16(ints[i])); err != nil {
				return err
			}
		}
		if _, err := s.writer.Write(buf.Bytes()); err != nil {
			return err
		}
		return nil
	}, nil
}

// Flush finalizes the encoder and closes the file.
func (s *Sink) Flush() error {
	if s.writer == nil {
		return nil
	}
	if err := s.writer.Close(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
