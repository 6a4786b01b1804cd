package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/pipelined/audiobatch"
	"github.com/pipelined/audiobatch/batch"
	"github.com/pipelined/audiobatch/stage"
)

type convertCommand struct {
	out          string
	stages       stringList
	concurrency  int
	bufferSize   int
	timeout      time.Duration
	skipExisting bool
	largestFirst bool
	fs           *flag.FlagSet
}

func (cmd *convertCommand) Name() string {
	return "convert"
}

func (cmd *convertCommand) Help() string {
	return "Transform audio files through a stage chain"
}

func (cmd *convertCommand) Register(fs *flag.FlagSet) {
	cmd.fs = fs
	fs.StringVar(&cmd.out, "out", "", "output directory (required)")
	fs.Var(&cmd.stages, "stage", "stage to apply, as name:key=value,key=value; repeatable, applied in order")
	fs.IntVar(&cmd.concurrency, "concurrency", 0, "number of files processed in parallel, 0 for all cores")
	fs.IntVar(&cmd.bufferSize, "buffer", 0, "pipeline buffer size in frames")
	fs.DurationVar(&cmd.timeout, "timeout", 0, "per-file time limit, 0 for none")
	fs.BoolVar(&cmd.skipExisting, "skip-existing", false, "skip files whose output already exists")
	fs.BoolVar(&cmd.largestFirst, "largest-first", false, "start with the biggest input files")
	fs.Usage = func() {
		fmt.Println("Usage: audiobatch convert [flags] <input files>")
		fs.PrintDefaults()
	}
}

func (cmd *convertCommand) Run() error {
	if cmd.out == "" {
		return fmt.Errorf("missing -out required flag")
	}
	inputs := cmd.fs.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("no input files")
	}
	configs, err := parseStages(cmd.stages)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cmd.out, 0o755); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := batch.Runner{
		Concurrency:  cmd.concurrency,
		BufferSize:   cmd.bufferSize,
		SkipExisting: cmd.skipExisting,
		LargestFirst: cmd.largestFirst,
	}
	jobs := audiobatch.Jobs(cmd.out, configs, inputs...)
	for i := range jobs {
		jobs[i].Timeout = cmd.timeout
	}
	result := runner.Run(ctx, jobs)

	for i, outcome := range result {
		switch outcome.Status {
		case batch.Failed:
			fmt.Printf("%s: %v (%v): %v\n", inputs[i], outcome.Status, outcome.Kind, outcome.Err)
		default:
			fmt.Printf("%s: %v\n", inputs[i], outcome.Status)
		}
	}
	if failed := result.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(result))
	}
	return nil
}

// parseStages turns -stage flag values into stage configurations. A
// value looks like "gain:db=-3" or "normalize:mode=rms,target=0.9".
func parseStages(specs []string) ([]stage.Config, error) {
	configs := make([]stage.Config, 0, len(specs))
	for _, spec := range specs {
		c, err := parseStage(spec)
		if err != nil {
			return nil, err
		}
		configs = append(configs, c)
	}
	return configs, nil
}

func parseStage(spec string) (stage.Config, error) {
	name, rest, _ := strings.Cut(spec, ":")
	if name == "" {
		return stage.Config{}, fmt.Errorf("empty stage spec %q", spec)
	}
	c := stage.Config{Name: name}
	if rest == "" {
		return c, nil
	}
	c.Params = make(stage.Params)
	for _, pair := range strings.Split(rest, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return stage.Config{}, fmt.Errorf("stage %q: malformed parameter %q", name, pair)
		}
		c.Params[key] = parseValue(value)
	}
	return c, nil
}

// parseValue keeps numbers numeric so stages can verify types.
func parseValue(s string) any {
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
