package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultAITimeout bounds a single AI backend call
const DefaultAITimeout = 30 * time.Second

// Health states reported by RiskAnalysisService.Health
const (
	HealthOK          = "ok"
	HealthDegraded    = "degraded"
	HealthUnavailable = "unavailable"
	HealthDisabled    = "disabled"
)

// RiskAnalysisService is the core service for email risk analysis
type RiskAnalysisService struct {
	transport MailTransport
	assessor  AIAssessor
	headers   HeaderInspector
	links     LinkInspector
	cache     AnalysisCache
	audit     AuditLog
	observer  AnalysisObserver
	logger    *zap.Logger
	version   string
	now       func() time.Time
	aiTimeout time.Duration
}

// NewRiskAnalysisService creates a new risk analysis service.
// audit and observer may be nil.
func NewRiskAnalysisService(
	transport MailTransport,
	assessor AIAssessor,
	headers HeaderInspector,
	links LinkInspector,
	cache AnalysisCache,
	audit AuditLog,
	observer AnalysisObserver,
	logger *zap.Logger,
	version string,
) *RiskAnalysisService {
	return &RiskAnalysisService{
		transport: transport,
		assessor:  assessor,
		headers:   headers,
		links:     links,
		cache:     cache,
		audit:     audit,
		observer:  observer,
		logger:    logger,
		version:   version,
		now:       time.Now,
		aiTimeout: DefaultAITimeout,
	}
}

// SetAITimeout bounds each AI backend call; non-positive values are ignored
func (s *RiskAnalysisService) SetAITimeout(d time.Duration) {
	if d > 0 {
		s.aiTimeout = d
	}
}

// SetClock replaces the time source used for AnalyzedAt
func (s *RiskAnalysisService) SetClock(now func() time.Time) {
	s.now = now
}

// Analyze fetches the latest messages and analyses each of them. A transport
// failure fails the whole batch; a failing message only fails its own report.
func (s *RiskAnalysisService) Analyze(ctx context.Context, limit int) ([]MessageReport, error) {
	if limit <= 0 {
		return nil, &ValidationError{Field: "limit", Reason: "must be positive"}
	}

	messages, err := s.transport.FetchLatest(ctx, limit)
	if err != nil {
		s.observeFailure("transport")
		return nil, transportError("fetch", err)
	}

	reports := make([]MessageReport, 0, len(messages))
	for _, msg := range messages {
		report := MessageReport{MessageID: msg.ID}
		result, err := s.analyzeIsolated(ctx, msg)
		if err != nil {
			s.logger.Warn("Failed to analyze message",
				zap.String("uid", msg.ID),
				zap.Error(err))
			report.Error = err.Error()
		} else {
			report.Result = result
		}
		reports = append(reports, report)
	}

	return reports, nil
}

// analyzeIsolated analyses one message of a batch, turning a panic into that
// message's error
func (s *RiskAnalysisService) analyzeIsolated(ctx context.Context, msg *Message) (result *AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Message analysis panicked",
				zap.String("uid", msg.ID),
				zap.Any("panic", r))
			s.observeFailure("panic")
			result, err = nil, fmt.Errorf("analysis panicked: %v", r)
		}
	}()

	return s.AnalyzeMessage(ctx, msg)
}

// AnalyzeMessage runs the pipeline for one message through the cache.
// Messages without an id bypass the cache.
func (s *RiskAnalysisService) AnalyzeMessage(ctx context.Context, msg *Message) (*AnalysisResult, error) {
	if msg == nil {
		return nil, &ValidationError{Field: "message", Reason: "is nil"}
	}
	if msg.Err != nil {
		return nil, fmt.Errorf("failed to parse message %s: %w", msg.ID, msg.Err)
	}

	compute := func(ctx context.Context) (*AnalysisResult, error) {
		return s.runPipeline(ctx, msg)
	}

	var (
		result *AnalysisResult
		hit    bool
		err    error
	)
	if msg.ID == "" || s.cache == nil {
		result, err = compute(ctx)
	} else {
		result, hit, err = s.cache.GetOrCompute(ctx, msg.ID, compute)
	}
	if err != nil {
		return nil, err
	}

	if hit {
		s.logger.Debug("Cache hit for message", zap.String("uid", msg.ID))
	}
	if s.observer != nil {
		s.observer.ObserveAnalysis(result, hit)
	}
	return result, nil
}

// AnalyzeLatest resolves the newest message and analyses it through the cache
func (s *RiskAnalysisService) AnalyzeLatest(ctx context.Context) (*AnalysisResult, error) {
	messages, err := s.transport.FetchLatest(ctx, 1)
	if err != nil {
		s.observeFailure("transport")
		return nil, transportError("fetch", err)
	}
	if len(messages) == 0 {
		return nil, ErrMessageNotFound
	}
	return s.AnalyzeMessage(ctx, messages[0])
}

// MessageCount returns the number of messages in the mailbox
func (s *RiskAnalysisService) MessageCount(ctx context.Context) (int, error) {
	count, err := s.transport.MessageCount(ctx)
	if err != nil {
		s.observeFailure("transport")
		return 0, transportError("count", err)
	}
	return count, nil
}

func (s *RiskAnalysisService) runPipeline(ctx context.Context, msg *Message) (*AnalysisResult, error) {
	headers := s.headers.Analyze(msg)
	links := s.links.Analyze(msg.Body)

	if err := validateLinks(links); err != nil {
		s.observeFailure("validation")
		return nil, err
	}

	ai := s.assess(ctx, msg, headers, links)
	if err := ctx.Err(); err != nil {
		// Do not memoize a result degraded by cancellation
		return nil, err
	}

	result := &AnalysisResult{
		MessageID:  msg.ID,
		Subject:    msg.Subject,
		From:       msg.From,
		Headers:    headers,
		Links:      links,
		AI:         ai,
		Final:      CombineScores(headers, links, ai),
		AnalyzedAt: s.now(),
	}

	s.logger.Info("Message analyzed",
		zap.String("uid", msg.ID),
		zap.String("from", msg.From),
		zap.Int("score", result.Final.Score),
		zap.String("risk_level", result.Final.RiskLevel),
		zap.Bool("ai_degraded", ai.IsDegraded()))

	if s.audit != nil {
		if err := s.audit.RecordAnalysis(ctx, result); err != nil {
			s.logger.Error("Failed to record analysis", zap.String("uid", msg.ID), zap.Error(err))
		}
	}

	return result, nil
}

// assess calls the AI backend; every failure degrades to a zero-score result
func (s *RiskAnalysisService) assess(ctx context.Context, msg *Message, headers HeaderFindings, links []LinkFinding) AIResult {
	if s.assessor == nil {
		return Degraded("", &AIBackendError{Backend: "none", Err: errors.New("no AI backend configured")})
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.aiTimeout)
	defer cancel()

	raw, err := s.assessor.Assess(aiCtx, &AssessmentRequest{
		Text:    msg.Body,
		Subject: msg.Subject,
		From:    msg.From,
		Headers: headers,
		Links:   links,
	})
	if err != nil {
		s.observeFailure("ai")
		if ctx.Err() == nil && errors.Is(aiCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", s.aiTimeout, err)
		}
		var berr *AIBackendError
		if !errors.As(err, &berr) {
			err = &AIBackendError{Backend: s.assessor.Name(), Err: err}
		}
		s.logger.Warn("AI backend call failed",
			zap.String("uid", msg.ID),
			zap.String("backend", s.assessor.Name()),
			zap.Error(err))
		return Degraded(raw, err)
	}

	result := ParseAIResult(raw)
	if result.IsDegraded() {
		s.observeFailure("parse")
		s.logger.Warn("AI response could not be parsed",
			zap.String("uid", msg.ID),
			zap.String("reason", result.Degraded.Reason))
	}
	return result
}

func validateLinks(links []LinkFinding) error {
	for i, link := range links {
		if link.RiskScore < 0 || link.RiskScore > 100 {
			return &ValidationError{
				Field:  fmt.Sprintf("links[%d].risk_score", i),
				Reason: fmt.Sprintf("%d out of range 0..100", link.RiskScore),
			}
		}
	}
	return nil
}

// ModifySubject prefixes the subject of a message with the marker for level.
// A subject that already carries a marker is left untouched.
func (s *RiskAnalysisService) ModifySubject(ctx context.Context, id string, level string) (*SubjectChange, error) {
	if id == "" {
		return nil, &ValidationError{Field: "uid", Reason: "is required"}
	}

	msg, err := s.transport.FetchMessage(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMessageNotFound) {
			return &SubjectChange{Success: false, Error: ErrMessageNotFound.Error()}, nil
		}
		s.observeFailure("transport")
		return nil, transportError("fetch", err)
	}

	if HasRiskPrefix(msg.Subject) {
		s.logger.Info("Subject already carries a risk marker",
			zap.String("uid", id),
			zap.String("subject", msg.Subject))
		return &SubjectChange{
			Success:        false,
			AlreadyApplied: true,
			Subject:        msg.Subject,
			Error:          "subject already has risk prefix",
		}, nil
	}

	newSubject := RiskPrefix(level) + msg.Subject
	ok, err := s.transport.ModifySubject(ctx, id, newSubject)
	if err != nil {
		s.observeFailure("transport")
		return nil, transportError("modify_subject", err)
	}
	if !ok {
		return &SubjectChange{Success: false, Error: "subject modification failed"}, nil
	}

	// The message was re-appended; its cached analysis is stale
	if s.cache != nil {
		s.cache.Invalidate(id)
	}

	s.logger.Info("Subject modified",
		zap.String("uid", id),
		zap.String("risk_level", level),
		zap.String("new_subject", newSubject))

	if s.audit != nil {
		if err := s.audit.RecordSubjectChange(ctx, id, msg.Subject, newSubject, level); err != nil {
			s.logger.Error("Failed to record subject change", zap.String("uid", id), zap.Error(err))
		}
	}

	return &SubjectChange{Success: true, NewSubject: newSubject}, nil
}

// Health reports the state of every dependency
func (s *RiskAnalysisService) Health(ctx context.Context) *HealthReport {
	report := &HealthReport{
		Status:   HealthOK,
		Version:  s.version,
		Services: make(map[string]string),
	}

	if err := s.transport.Ping(ctx); err != nil {
		s.logger.Warn("Mail transport health check failed", zap.Error(err))
		report.Services["imap"] = HealthUnavailable
	} else {
		report.Services["imap"] = HealthOK
	}

	if s.assessor == nil {
		report.Services["ai"] = HealthDisabled
	} else {
		report.Services["ai"] = HealthOK
	}

	if s.cache == nil {
		report.Services["cache"] = HealthDisabled
	} else {
		report.Services["cache"] = HealthOK
	}

	if s.audit == nil {
		report.Services["audit"] = HealthDisabled
	} else if err := s.audit.Ping(ctx); err != nil {
		s.logger.Warn("Audit log health check failed", zap.Error(err))
		report.Services["audit"] = HealthUnavailable
	} else {
		report.Services["audit"] = HealthOK
	}

	for _, state := range report.Services {
		if state == HealthUnavailable {
			report.Status = HealthDegraded
			break
		}
	}
	return report
}

// Stats aggregates the currently cached analysis results
func (s *RiskAnalysisService) Stats() Stats {
	if s.cache == nil {
		return ComputeStats(nil)
	}
	entries := s.cache.Entries()
	results := make([]*AnalysisResult, 0, len(entries))
	for _, entry := range entries {
		results = append(results, entry.Result)
	}
	return ComputeStats(results)
}

// transportError wraps err unless the transport already reported a TransportError
func transportError(op string, err error) error {
	var terr *TransportError
	if errors.As(err, &terr) {
		return err
	}
	return &TransportError{Op: op, Err: err}
}

func (s *RiskAnalysisService) observeFailure(stage string) {
	if s.observer != nil {
		s.observer.ObserveFailure(stage)
	}
}
