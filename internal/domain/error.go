package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")

	// LLM service errors
	ErrNotConfigured      = errors.New("llm service not configured")
	ErrServiceUnavailable = errors.New("llm service unavailable after retries")

	// Course tracker errors
	ErrNoAssignments    = errors.New("no assignments")
	ErrExtractionFailed = errors.New("failed to extract course details")
	ErrScrapeFailed     = errors.New("failed to scrape url")
)
