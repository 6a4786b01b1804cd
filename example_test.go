package audiobatch_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/pipelined/audiobatch"
	"github.com/pipelined/audiobatch/stage"
)

// Example normalizes a directory of recordings to a common loudness,
// resamples them and pads each with a short lead-in.
func Example() {
	entries, err := os.ReadDir("recordings")
	if err != nil {
		log.Fatal(err)
	}
	inputs := make([]string, 0, len(entries))
	for _, e := range entries {
		inputs = append(inputs, "recordings/"+e.Name())
	}

	stages := []stage.Config{
		{Name: "normalize", Params: stage.Params{"target": 0.9, "mode": "rms"}},
		{Name: "resample", Params: stage.Params{"rate": 22050}},
		{Name: "pad", Params: stage.Params{"lead": 0.5}},
	}
	result, err := audiobatch.Convert(context.Background(), "mastered", stages, inputs...)
	if err != nil {
		log.Fatal(err)
	}
	for i, outcome := range result {
		fmt.Printf("%s: %v\n", inputs[i], outcome.Status)
	}
}
