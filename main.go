package main

import "github.com/audiolibrelab/jamtrack/cmd"

func main() {
	cmd.Execute()
}
