package audiobatch

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pipelined/audiobatch/batch"
	"github.com/pipelined/audiobatch/stage"
)

// Jobs builds one job per input file, writing outputs with the same
// base name into outDir.
func Jobs(outDir string, stages []stage.Config, inputs ...string) []batch.Job {
	jobs := make([]batch.Job, 0, len(inputs))
	for _, input := range inputs {
		jobs = append(jobs, batch.Job{
			Input:  input,
			Output: filepath.Join(outDir, filepath.Base(input)),
			Stages: stages,
		})
	}
	return jobs
}

// Convert transforms all input files through the stage chain into
// outDir, keeping file names and formats. The directory is created if
// needed. Per-file failures are captured in the result, not returned.
func Convert(ctx context.Context, outDir string, stages []stage.Config, inputs ...string) (batch.Result, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	r := batch.Runner{}
	return r.Run(ctx, Jobs(outDir, stages, inputs...)), nil
}
