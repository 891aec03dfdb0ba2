package main

import (
	"os"

	"github.com/soundprediction/go-evolsynth/cmd/evolsynth"
)

func main() {
	if err := evolsynth.Execute(); err != nil {
		os.Exit(1)
	}
}
