package core

import (
	"context"
)

// MailTransport defines the interface for the mailbox backend
type MailTransport interface {
	// FetchLatest returns up to limit messages, newest first
	FetchLatest(ctx context.Context, limit int) ([]*Message, error)

	// FetchMessage returns a single message by id
	FetchMessage(ctx context.Context, id string) (*Message, error)

	// MessageCount returns the number of messages in the mailbox
	MessageCount(ctx context.Context) (int, error)

	// ModifySubject replaces the subject of a message. This is not atomic:
	// the message is re-appended and the original expunged.
	ModifySubject(ctx context.Context, id string, subject string) (bool, error)

	// Ping checks connectivity
	Ping(ctx context.Context) error
}

// AssessmentRequest is the context handed to the AI backend
type AssessmentRequest struct {
	Text    string
	Subject string
	From    string
	Headers HeaderFindings
	Links   []LinkFinding
}

// AIAssessor defines the interface for interacting with AI backends.
// The returned text is expected, but not guaranteed, to contain a JSON object.
type AIAssessor interface {
	Assess(ctx context.Context, req *AssessmentRequest) (string, error)

	// Name identifies the backend in logs and health reports
	Name() string
}

// HeaderInspector derives header findings from a message
type HeaderInspector interface {
	Analyze(msg *Message) HeaderFindings
}

// LinkInspector extracts and scores links from body text
type LinkInspector interface {
	Analyze(text string) []LinkFinding
}

// ComputeFunc runs the analysis pipeline for one message
type ComputeFunc func(ctx context.Context) (*AnalysisResult, error)

// AnalysisCache memoizes pipeline results by message id
type AnalysisCache interface {
	// GetOrCompute returns the fresh cached result for id or runs compute and stores it.
	// The boolean reports a cache hit.
	GetOrCompute(ctx context.Context, id string, compute ComputeFunc) (*AnalysisResult, bool, error)

	// Invalidate drops the entry for id
	Invalidate(id string)

	// Entries returns a snapshot of the cached entries
	Entries() []*CacheEntry

	// Len returns the number of cached entries
	Len() int
}

// AuditLog records security relevant events
type AuditLog interface {
	RecordAnalysis(ctx context.Context, result *AnalysisResult) error
	RecordSubjectChange(ctx context.Context, id, oldSubject, newSubject, riskLevel string) error
	RecordSecurityEvent(ctx context.Context, eventType string, details map[string]string) error
	Ping(ctx context.Context) error
}

// AnalysisObserver receives pipeline outcomes, e.g. for metrics
type AnalysisObserver interface {
	ObserveAnalysis(result *AnalysisResult, cacheHit bool)
	ObserveFailure(stage string)
}
