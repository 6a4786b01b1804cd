/*
Package audiobatch transforms batches of audio files.

Concept

Every file is processed by a pipeline that decodes the input into
buffers of samples, passes them through a chain of DSP stages and
encodes the result, keeping memory bounded regardless of file length:

	Pump - decodes the input file;
	Stage - transforms buffers (gain, normalize, resample, trim, pad);
	Sink - encodes the output file.

The pipe package executes one pipeline sequentially, the stage package
provides the transforms, the format package resolves codecs by file
extension and the batch package schedules many pipelines concurrently
with per-file failure isolation.

Usage

The root package offers a one-call surface for the common case:

	result, err := audiobatch.Convert(ctx, "out",
		[]stage.Config{
			{Name: "normalize", Params: stage.Params{"target": 0.9}},
			{Name: "resample", Params: stage.Params{"rate": 44100}},
		},
		"01.mp3", "02.mp3",
	)

For control over concurrency, timeouts and output paths use
batch.Runner directly.
*/
package audiobatch
