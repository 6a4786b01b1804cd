/*
Package batch schedules transformation pipelines over many audio files
concurrently.

Every job binds one input file, one output file and a stage chain. Jobs
are fully isolated: a failure of one job is captured in its outcome and
never affects sibling jobs. The number of jobs running in parallel is
bounded; within one job the pipeline executes sequentially.

Output is staged: a job writes to a temporary ".part" file next to its
output and renames it into place only after the pipeline finished and
the sink was finalized. A failed or interrupted job leaves at most the
staged file behind, never a valid-looking output.
*/
package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pipelined/audiobatch/format"
	"github.com/pipelined/audiobatch/log"
	"github.com/pipelined/audiobatch/pipe"
	"github.com/pipelined/audiobatch/signal"
	"github.com/pipelined/audiobatch/stage"
)

// Status of a finished job.
type Status int

const (
	// Success means the output file is complete and valid.
	Success Status = iota
	// Failed means the job produced no usable output.
	Failed
	// Skipped means the output already existed and the job did not run.
	Skipped
)

func (s Status) String() string {
	switch s {
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Kind classifies a job failure.
type Kind int

const (
	// Unknown failure kind.
	Unknown Kind = iota
	// UnsupportedFormat means no codec is registered for the file.
	UnsupportedFormat
	// DecodeError means the input could not be decoded.
	DecodeError
	// EncodeError means the output could not be written.
	EncodeError
	// InvalidParameter means a stage rejected its configuration.
	InvalidParameter
	// UnknownStage means a stage name is not registered.
	UnknownStage
	// InvalidFormat means a buffer with inconsistent format was built.
	InvalidFormat
	// Cancelled means the job was interrupted from outside.
	Cancelled
	// Timeout means the job exceeded its own time limit.
	Timeout
)

func (k Kind) String() string {
	switch k {
	case UnsupportedFormat:
		return "unsupported format"
	case DecodeError:
		return "decode error"
	case EncodeError:
		return "encode error"
	case InvalidParameter:
		return "invalid parameter"
	case UnknownStage:
		return "unknown stage"
	case InvalidFormat:
		return "invalid format"
	case Cancelled:
		return "cancelled"
	case Timeout:
		return "timeout"
	}
	return "unknown"
}

// kindOf derives the failure kind from the error chain.
func kindOf(err error) Kind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	case errors.Is(err, context.Canceled):
		return Cancelled
	case errors.Is(err, format.ErrUnsupported):
		return UnsupportedFormat
	case errors.Is(err, stage.ErrUnknownStage):
		return UnknownStage
	case errors.Is(err, stage.ErrInvalidParameter):
		return InvalidParameter
	case errors.Is(err, signal.ErrInvalidFormat):
		return InvalidFormat
	case errors.Is(err, pipe.ErrDecode):
		return DecodeError
	case errors.Is(err, pipe.ErrEncode):
		return EncodeError
	}
	return Unknown
}

// Job is one unit of work: transform the input file into the output
// file through the stage chain. Jobs are independent of each other.
type Job struct {
	Input  string
	Output string
	Stages []stage.Config
	// Timeout bounds this job's run. Zero means no limit.
	Timeout time.Duration
}

// Outcome of one job.
type Outcome struct {
	Status   Status
	Kind     Kind
	Err      error
	Duration time.Duration
}

// Result aggregates job outcomes in the original job order, regardless
// of completion order. It is never mutated after Run returns.
type Result []Outcome

// Ok reports whether no job failed.
func (r Result) Ok() bool {
	for i := range r {
		if r[i].Status == Failed {
			return false
		}
	}
	return true
}

// Failed returns the number of failed jobs.
func (r Result) Failed() int {
	n := 0
	for i := range r {
		if r[i].Status == Failed {
			n++
		}
	}
	return n
}

// StagedSuffix marks output files of jobs that did not finish. Such
// files must not be treated as valid output.
const StagedSuffix = ".part"

const defaultBufferSize = 512

// Runner executes batches of jobs with bounded concurrency.
type Runner struct {
	// Concurrency bounds the number of jobs running in parallel.
	// Defaults to available parallelism.
	Concurrency int
	// BufferSize is the pipeline buffer size in frames per channel.
	BufferSize int
	// SkipExisting reports jobs whose output already exists as Skipped
	// instead of overwriting.
	SkipExisting bool
	// LargestFirst starts jobs with bigger input files first. Outcome
	// order is not affected.
	LargestFirst bool
	// Registry resolves formats. Defaults to format.Default().
	Registry *format.Registry
	// Stages builds stage chains. Defaults to the built-in stages.
	Stages func(...stage.Config) ([]stage.Stage, error)
}

func (r Runner) concurrency() int {
	if r.Concurrency > 0 {
		return r.Concurrency
	}
	return runtime.GOMAXPROCS(0)
}

func (r Runner) bufferSize() int {
	if r.BufferSize > 0 {
		return r.BufferSize
	}
	return defaultBufferSize
}

func (r Runner) registry() *format.Registry {
	if r.Registry != nil {
		return r.Registry
	}
	return format.Default()
}

func (r Runner) chain(configs ...stage.Config) ([]stage.Stage, error) {
	if r.Stages != nil {
		return r.Stages(configs...)
	}
	return stage.Chain(configs...)
}

// Run executes all jobs and blocks until the last one finished. The
// returned result has one outcome per job, in job order. Cancelling the
// context interrupts running jobs at their next buffer and marks not
// yet finished jobs as cancelled.
func (r Runner) Run(ctx context.Context, jobs []Job) Result {
	l := log.GetLogger().WithField("run", xid.New().String())
	result := make(Result, len(jobs))

	order := make([]int, len(jobs))
	for i := range order {
		order[i] = i
	}
	if r.LargestFirst {
		sort.SliceStable(order, func(i, j int) bool {
			return inputSize(jobs[order[i]].Input) > inputSize(jobs[order[j]].Input)
		})
	}

	g := new(errgroup.Group)
	g.SetLimit(r.concurrency())
	for _, idx := range order {
		idx := idx
		g.Go(func() error {
			result[idx] = r.runJob(ctx, l.WithField("job", idx), jobs[idx])
			return nil
		})
	}
	_ = g.Wait()

	l.WithFields(logrus.Fields{
		"jobs":   len(jobs),
		"failed": result.Failed(),
	}).Info("batch done")
	return result
}

func inputSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}

func (r Runner) runJob(ctx context.Context, l *logrus.Entry, job Job) Outcome {
	l = l.WithFields(logrus.Fields{"input": job.Input, "output": job.Output})
	l.Info("job start")
	start := time.Now()
	outcome := r.execute(ctx, job)
	outcome.Duration = time.Since(start)

	l = l.WithField("duration", outcome.Duration)
	switch outcome.Status {
	case Failed:
		l.WithField("kind", outcome.Kind).WithError(outcome.Err).Error("job failed")
	case Skipped:
		l.Info("job skipped, output exists")
	default:
		l.Info("job done")
	}
	return outcome
}

func (r Runner) execute(ctx context.Context, job Job) Outcome {
	// configuration errors are detected before any decoding begins
	stages, err := r.chain(job.Stages...)
	if err != nil {
		return failure(err)
	}
	pump, err := r.registry().Pump(job.Input)
	if err != nil {
		return failure(err)
	}
	if r.SkipExisting {
		if _, err := os.Stat(job.Output); err == nil {
			return Outcome{Status: Skipped}
		}
	}
	staged := job.Output + StagedSuffix
	sink, err := r.registry().Sink(filepath.Ext(job.Output), staged)
	if err != nil {
		return failure(err)
	}

	processors := make([]pipe.Processor, len(stages))
	for i := range stages {
		processors[i] = stages[i]
	}
	p, err := pipe.New(
		r.bufferSize(),
		pipe.WithPump(pump),
		pipe.WithProcessors(processors...),
		pipe.WithSink(sink),
	)
	if err != nil {
		return failure(err)
	}

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	if err := p.Run(ctx); err != nil {
		// the staged file is left behind, explicitly marked incomplete
		return failure(err)
	}
	if err := os.Rename(staged, job.Output); err != nil {
		return Outcome{Status: Failed, Kind: EncodeError, Err: err}
	}
	return Outcome{Status: Success}
}

func failure(err error) Outcome {
	return Outcome{Status: Failed, Kind: kindOf(err), Err: err}
}
