package main

import (
	"os"

	"github.com/contactkeval/option-pricer/internal/logger"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Errorf("Error: %v", err)
		os.Exit(1)
	}
}
