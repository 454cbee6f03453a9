package main

// Exit codes for the fetch and batch commands.
const (
	ExitSuccess   = 0 // At least one article downloaded or already present
	ExitNoResults = 1 // Search returned zero identifiers
	ExitFailed    = 2 // Every attempt failed, or a configuration error
)
