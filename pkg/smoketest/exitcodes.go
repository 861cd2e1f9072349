// Package smoketest provides public constants for tools that drive the
// smoketest harness, such as CI wrappers.
package smoketest

// Exit codes returned by the smoketest CLI.
const (
	// ExitSuccess indicates every selected test passed.
	ExitSuccess = 0

	// ExitFailure indicates at least one build, execution or verification
	// error was recorded in the report.
	ExitFailure = 1

	// ExitConfigError indicates an invalid configuration file or invalid flags.
	ExitConfigError = 2

	// ExitEnvError indicates a setup failure detected before any test ran
	// (missing git or cmake, invalid source path, missing manifest).
	ExitEnvError = 3
)
