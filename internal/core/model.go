package core

import (
	"net/textproto"
	"time"
)

// Risk levels derived from the composite score
const (
	RiskHigh   = "high"
	RiskMedium = "medium"
	RiskLow    = "low"
)

// Finding values shared by the analyzers and the combiner
const (
	StatusOK      = "ok"
	StatusUnknown = "unknown"
	DKIMPresent   = "present"
	DKIMMissing   = "missing"
	DMARCPass     = "pass"
	DMARCFail     = "fail"
)

// Message represents an email message fetched from the mailbox
type Message struct {
	ID          string
	Subject     string
	From        string
	Headers     map[string][]string
	Body        string
	HTMLParts   []string
	Attachments []Attachment

	// Err is set when the transport could not parse the raw message;
	// such a message carries only its ID
	Err error
}

// Attachment describes a MIME part with an attachment disposition
type Attachment struct {
	Filename    string
	ContentType string
}

// Header returns the first value of the named header, matched case-insensitively
func (m *Message) Header(name string) string {
	values := m.HeaderValues(name)
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// HeaderValues returns all values of the named header
func (m *Message) HeaderValues(name string) []string {
	if m.Headers == nil {
		return nil
	}
	if values, ok := m.Headers[textproto.CanonicalMIMEHeaderKey(name)]; ok {
		return values
	}
	// Headers built by hand may not use canonical keys
	for key, values := range m.Headers {
		if textproto.CanonicalMIMEHeaderKey(key) == textproto.CanonicalMIMEHeaderKey(name) {
			return values
		}
	}
	return nil
}

// HeaderFindings holds the results of the header and MIME structure checks
type HeaderFindings struct {
	SPF                  string   `json:"spf"`
	DKIM                 string   `json:"dkim"`
	DMARC                string   `json:"dmarc"`
	FromDomain           string   `json:"from_domain"`
	FromLookalike        string   `json:"from_lookalike"`
	ReplyTo              string   `json:"reply_to"`
	ReturnPath           string   `json:"return_path"`
	ReplyPathWarning     string   `json:"reply_path_warning"`
	Attachments          []string `json:"attachments"`
	DangerousAttachments []string `json:"dangerous_attachments"`
	EncryptedAttachments []string `json:"encrypted_attachments"`
	ToCount              int      `json:"to_count"`
	CcCount              int      `json:"cc_count"`
	BccCount             int      `json:"bcc_count"`
	RecipientWarning     string   `json:"recipient_warning"`
	HeaderAnomalies      []string `json:"header_anomalies"`
	ExternalImages       []string `json:"external_images"`
	TrackingPixels       []string `json:"tracking_pixels"`
}

// LinkFinding represents a URL found in the message body and its risk contribution
type LinkFinding struct {
	URL       string `json:"url"`
	Host      string `json:"domain"`
	Punycode  bool   `json:"is_punycode"`
	RiskScore int    `json:"risk_score"`
}

// CompositeScore is the fused risk score of a message
type CompositeScore struct {
	Score       int     `json:"score"`
	RiskLevel   string  `json:"risk_level"`
	HeaderScore int     `json:"header_score"`
	LinkScore   int     `json:"link_score"`
	AIScore     float64 `json:"ai_score"`
	Penalty     int     `json:"penalty"`
}

// AnalysisResult is the full pipeline output for one message
type AnalysisResult struct {
	MessageID  string         `json:"uid"`
	Subject    string         `json:"subject"`
	From       string         `json:"from_addr"`
	Headers    HeaderFindings `json:"headers"`
	Links      []LinkFinding  `json:"links"`
	AI         AIResult       `json:"analysis"`
	Final      CompositeScore `json:"final"`
	AnalyzedAt time.Time      `json:"analyzed_at"`
}

// MessageReport is the per-message entry of a batch analysis.
// Exactly one of Result and Error is set.
type MessageReport struct {
	MessageID string          `json:"uid"`
	Result    *AnalysisResult `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// CacheEntry is an immutable memoized analysis result
type CacheEntry struct {
	MessageID string
	Result    *AnalysisResult
	CreatedAt time.Time
	seq       uint64
}

// NewCacheEntry creates a cache entry; seq orders entries created at the same instant
func NewCacheEntry(id string, result *AnalysisResult, createdAt time.Time, seq uint64) *CacheEntry {
	return &CacheEntry{
		MessageID: id,
		Result:    result,
		CreatedAt: createdAt,
		seq:       seq,
	}
}

// Before reports whether e was created before other
func (e *CacheEntry) Before(other *CacheEntry) bool {
	if e.CreatedAt.Equal(other.CreatedAt) {
		return e.seq < other.seq
	}
	return e.CreatedAt.Before(other.CreatedAt)
}

// SubjectChange is the outcome of a subject modification request
type SubjectChange struct {
	Success        bool   `json:"success"`
	AlreadyApplied bool   `json:"already_applied,omitempty"`
	NewSubject     string `json:"new_subject,omitempty"`
	Subject        string `json:"subject,omitempty"`
	Error          string `json:"error,omitempty"`
}

// HealthReport describes the state of the service and its dependencies
type HealthReport struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

// ThreatCount is a threat category and its number of occurrences
type ThreatCount struct {
	Threat string `json:"threat"`
	Count  int    `json:"count"`
}

// Stats aggregates the currently cached analysis results
type Stats struct {
	Total        int           `json:"total"`
	HighRisk     int           `json:"high_risk"`
	MediumRisk   int           `json:"medium_risk"`
	LowRisk      int           `json:"low_risk"`
	AverageScore float64       `json:"average_score"`
	TopThreats   []ThreatCount `json:"top_threats"`
}
