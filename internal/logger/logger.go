package logger

import (
	"fmt"
	"time"
)

// ANSI colors for terminal output.
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
)

func emit(color, level, tag, msg string) {
	fmt.Printf("%s %s%-5s%s [%s] %s\n", time.Now().Format("15:04:05"), color, level, reset, tag, msg)
}

// Info logs a routine progress message.
func Info(tag, msg string) { emit(cyan, "INFO", tag, msg) }

// Success logs a completed operation.
func Success(tag, msg string) { emit(green, "OK", tag, msg) }

// Warn logs a recoverable problem.
func Warn(tag, msg string) { emit(yellow, "WARN", tag, msg) }

// Error logs a failure.
func Error(tag, msg string) { emit(red, "ERROR", tag, msg) }

// Banner prints the startup banner with the build version.
func Banner(version string) {
	if version == "" {
		version = "dev"
	}
	fmt.Printf("%s%squantrisk%s %s\n", bold, cyan, reset, version)
}

// Section prints a visual separator for a named phase of output.
func Section(name string) {
	fmt.Printf("\n%s== %s ==%s\n", bold, name, reset)
}

// Stats prints a key/value pair aligned for scanning.
func Stats(key string, value interface{}) {
	fmt.Printf("  %-24s %v\n", key, value)
}
