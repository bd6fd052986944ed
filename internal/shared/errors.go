package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrLibraryNotFound    = fmt.Errorf("library not found")
	ErrCandidateLookup    = fmt.Errorf("candidate lookup failed")
	ErrPlaylistWrite      = fmt.Errorf("playlist write failed")

	// Input validation errors
	ErrMalformedInput  = fmt.Errorf("malformed input")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")

	// Job and report errors
	ErrJobNotFound    = fmt.Errorf("job not found")
	ErrJobFinalized   = fmt.Errorf("job already finished")
	ErrPlaylistBusy   = fmt.Errorf("playlist already has an import in progress")
	ErrReportNotFound = fmt.Errorf("report not found or expired")
)
