package logger_test

import (
	"fmt"
	"os"

	"github.com/rowhpc/row/logger"
)

func ExampleNew() {
	// Set DEBUG environment variable to enable loggers
	os.Setenv("DEBUG", "state:*")
	defer os.Unsetenv("DEBUG")

	// Create a logger for a specific namespace
	log := logger.New("state:cache")

	// Check if logger is enabled
	if log.Enabled() {
		fmt.Println("Logger is enabled")
	}

	// Output: Logger is enabled
}

func ExampleLogger_Printf() {
	// Enable all loggers
	os.Setenv("DEBUG", "*")
	defer os.Unsetenv("DEBUG")

	log := logger.New("scheduler:slurm")

	// Printf uses standard fmt.Printf formatting
	log.Printf("submitted %d directories", 42)

	// Output to stderr: scheduler:slurm submitted 42 directories
}

func ExampleLogger_LazyPrintf() {
	os.Setenv("DEBUG", "workspace:*")
	defer os.Unsetenv("DEBUG")

	log := logger.New("workspace:scan")

	// The lazy function is only called if the logger is enabled
	log.LazyPrintf(func() string {
		// Building the directory listing is only worth it when logging is on
		result := "120 directories scanned"
		return fmt.Sprintf("scan complete: %s", result)
	})

	// Output to stderr: workspace:scan scan complete: 120 directories scanned
}

func ExampleNew_patterns() {
	// Example patterns for DEBUG environment variable

	// Enable all loggers
	os.Setenv("DEBUG", "*")

	// Enable all loggers in the workflow namespace
	os.Setenv("DEBUG", "workflow:*")

	// Enable multiple namespaces
	os.Setenv("DEBUG", "workflow:*,scheduler:*")

	// Enable all except specific patterns
	os.Setenv("DEBUG", "*,-workflow:test")

	// Enable namespace but exclude specific loggers
	os.Setenv("DEBUG", "scheduler:*,-scheduler:bash")

	defer os.Unsetenv("DEBUG")
}
