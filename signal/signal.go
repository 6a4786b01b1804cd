// Package signal provides types to represent and manipulate digital signals.
// It allows to:
//   - carry chunks of samples with their declared format
//   - convert interleaved data to non-interleaved
//   - convert bit depth for int signals
package signal

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Float64 is a non-interleaved float64 signal.
type Float64 [][]float64

// Properties describe the format of a signal: the rate it was sampled at
// and the number of channels it carries.
type Properties struct {
	SampleRate int
	Channels   int
}

// Buffer is a chunk of non-interleaved samples with a declared format.
// Once produced, a buffer is never mutated: components that transform
// signal allocate new buffers.
type Buffer struct {
	Float64
	SampleRate int
	// Seq is the position of this buffer within its stream.
	Seq int
}

const (
	// BitDepth8 is 8 bit depth.
	BitDepth8 = BitDepth(8)
	// BitDepth16 is 16 bit depth.
	BitDepth16 = BitDepth(16)
	// BitDepth24 is 24 bit depth.
	BitDepth24 = BitDepth(24)
	// BitDepth32 is 32 bit depth.
	BitDepth32 = BitDepth(32)
)

// InterInt is an interleaved int signal.
type InterInt struct {
	Data        []int
	NumChannels int
	BitDepth
}

// BitDepth contains values required for int-to-float and backward conversion.
type BitDepth int

// ErrInvalidFormat is returned when a buffer is constructed with a format
// that doesn't match its sample data.
var ErrInvalidFormat = errors.New("invalid buffer format")

// New creates a buffer from non-interleaved samples and validates its
// format: sample rate must be positive, at least one channel must be
// present and all channels must have the same length.
func New(sampleRate int, data [][]float64, seq int) (Buffer, error) {
	if sampleRate <= 0 {
		return Buffer{}, fmt.Errorf("%w: sample rate %d", ErrInvalidFormat, sampleRate)
	}
	if len(data) == 0 {
		return Buffer{}, fmt.Errorf("%w: no channels", ErrInvalidFormat)
	}
	size := len(data[0])
	for i := range data {
		if len(data[i]) != size {
			return Buffer{}, fmt.Errorf("%w: channel %d has %d samples, expected %d", ErrInvalidFormat, i, len(data[i]), size)
		}
	}
	return Buffer{Float64: data, SampleRate: sampleRate, Seq: seq}, nil
}

// Alloc returns a zero-valued buffer of requested dimensions.
func Alloc(sampleRate, numChannels, size, seq int) Buffer {
	return Buffer{
		Float64:    EmptyFloat64(numChannels, size),
		SampleRate: sampleRate,
		Seq:        seq,
	}
}

// Props returns the declared format of the buffer.
func (b Buffer) Props() Properties {
	return Properties{SampleRate: b.SampleRate, Channels: b.NumChannels()}
}

// divider is used when int to float conversion is done.
func (bitDepth BitDepth) divider() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8
	case BitDepth16:
		return math.MaxInt16
	case BitDepth24:
		return 1<<23 - 1
	case BitDepth32:
		return math.MaxInt32
	default:
		return 1
	}
}

// multiplier is used when float to int conversion is done.
func (bitDepth BitDepth) multiplier() int {
	switch bitDepth {
	case BitDepth8:
		return math.MaxInt8 - 1
	case BitDepth16:
		return math.MaxInt16 - 1
	case BitDepth24:
		return 1<<23 - 2
	case BitDepth32:
		return math.MaxInt32 - 1
	default:
		return 1
	}
}

// DurationOf returns time duration of passed samples for this sample rate.
func DurationOf(sampleRate int, samples int64) time.Duration {
	return time.Duration(float64(samples) / float64(sampleRate) * float64(time.Second))
}

// AsFloat64 converts interleaved int signal to float64.
func (ints InterInt) AsFloat64() Float64 {
	if ints.Data == nil || ints.NumChannels == 0 {
		return nil
	}
	floats := make([][]float64, ints.NumChannels)
	bufSize := int(math.Ceil(float64(len(ints.Data)) / float64(ints.NumChannels)))

	// determine the divider for bit depth conversion
	divider := float64(ints.BitDepth.divider())

	for i := range floats {
		floats[i] = make([]float64, bufSize)
		pos := 0
		for j := i; j < len(ints.Data); j = j + ints.NumChannels {
			floats[i][pos] = float64(ints.Data[j]) / divider
			pos++
		}
	}
	return floats
}

// AsInterInt converts float64 signal to interleaved int.
func (floats Float64) AsInterInt(bitDepth BitDepth) []int {
	var numChannels int
	if numChannels = len(floats); numChannels == 0 {
		return nil
	}

	// determine the multiplier for bit depth conversion
	multiplier := float64(bitDepth.multiplier())

	ints := make([]int, len(floats[0])*numChannels)

	for j := range floats {
		for i := range floats[j] {
			ints[i*numChannels+j] = int(floats[j][i] * multiplier)
		}
	}
	return ints
}

// EmptyFloat64 returns an empty buffer of specified dimensions.
func EmptyFloat64(numChannels int, bufferSize int) Float64 {
	result := make([][]float64, numChannels)
	for i := range result {
		result[i] = make([]float64, bufferSize)
	}
	return result
}

// NumChannels returns number of channels in this sample slice.
func (floats Float64) NumChannels() int {
	return len(floats)
}

// Size returns number of samples per channel.
func (floats Float64) Size() int {
	if len(floats) == 0 {
		return 0
	}
	return len(floats[0])
}

// Append appends data from src to floats. Both must have the same number
// of channels, otherwise the call panics.
func (floats Float64) Append(src Float64) Float64 {
	if floats == nil {
		floats = make([][]float64, src.NumChannels())
	}
	if len(floats) != len(src) {
		panic("append buffer with different number of channels")
	}
	for i := range src {
		floats[i] = append(floats[i], src[i]...)
	}
	return floats
}

// Slice returns a subset of samples [start:start+length] per channel. The
// underlying arrays are shared with the receiver.
func (floats Float64) Slice(start, length int) Float64 {
	if floats == nil {
		return nil
	}
	result := make([][]float64, len(floats))
	for i := range floats {
		end := start + length
		if end > len(floats[i]) {
			end = len(floats[i])
		}
		result[i] = floats[i][start:end]
	}
	return result
}
