package main

import (
	"flag"
	"fmt"
	"strings"

	"github.com/pipelined/audiobatch/format"
	"github.com/pipelined/audiobatch/stage"
)

type formatsCommand struct{}

func (cmd *formatsCommand) Name() string {
	return "formats"
}

func (cmd *formatsCommand) Help() string {
	return "Show supported audio formats"
}

func (cmd *formatsCommand) Register(fs *flag.FlagSet) {}

func (cmd *formatsCommand) Run() error {
	pumps, sinks := format.Default().Extensions()
	fmt.Printf("Decode: %v\n", strings.Join(pumps, " "))
	fmt.Printf("Encode: %v\n", strings.Join(sinks, " "))
	return nil
}

type stagesCommand struct{}

func (cmd *stagesCommand) Name() string {
	return "stages"
}

func (cmd *stagesCommand) Help() string {
	return "Show available processing stages"
}

func (cmd *stagesCommand) Register(fs *flag.FlagSet) {}

func (cmd *stagesCommand) Run() error {
	for _, name := range stage.Names() {
		fmt.Println(name)
	}
	return nil
}
