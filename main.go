package main

import "github.com/agentic-research/hapsynth/cmd"

func main() {
	cmd.Execute()
}
