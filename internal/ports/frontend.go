package ports

// Frontend is a long running entry point into the analyzer, such as the HTTP
// API or the SMTP content filter
type Frontend interface {
	// Start begins serving in the background
	Start() error

	// Stop shuts the frontend down
	Stop() error
}
