package main

// CLIResult is the JSON envelope every subcommand's non-text output uses,
// matching the teacher's single-shape command/results/error wrapper.
type CLIResult struct {
	Command string `json:"command"`
	Results any    `json:"results"`
	Error   string `json:"error,omitempty"`
}
