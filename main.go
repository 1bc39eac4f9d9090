package main

import (
	"os"

	"github.com/deploymenttheory/go-vfs/cmd"
	"github.com/deploymenttheory/go-vfs/internal/logger"
)

func main() {
	code := cmd.Execute()

	// Ensure logs are flushed before exit
	logger.Sync()
	os.Exit(code)
}
