package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DegradedMarker is the error marker carried by degraded AI results
const DegradedMarker = "invalid JSON from AI backend"

// AIFinding is a well-formed assessment returned by the AI backend
type AIFinding struct {
	Classification string   `json:"classification"`
	RiskLevel      string   `json:"risk_level"`
	Score          float64  `json:"score"`
	Reasons        []string `json:"reasons"`
}

// DegradedAIFinding stands in for an assessment that could not be obtained or parsed
type DegradedAIFinding struct {
	Error  string `json:"error"`
	Raw    string `json:"raw"`
	Reason string `json:"exception"`
}

// AIResult is either a parsed finding or a degraded one, never both
type AIResult struct {
	Finding  *AIFinding
	Degraded *DegradedAIFinding
}

// OK wraps a parsed finding
func OK(finding AIFinding) AIResult {
	return AIResult{Finding: &finding}
}

// Degraded builds a degraded result from the raw text and the failure
func Degraded(raw string, err error) AIResult {
	reason := ""
	if err != nil {
		reason = err.Error()
	}
	return AIResult{Degraded: &DegradedAIFinding{
		Error:  DegradedMarker,
		Raw:    raw,
		Reason: reason,
	}}
}

// IsDegraded reports whether the result carries no usable finding
func (r AIResult) IsDegraded() bool {
	return r.Finding == nil
}

// Score returns the AI score, 0 for degraded results
func (r AIResult) Score() float64 {
	if r.Finding == nil {
		return 0
	}
	return r.Finding.Score
}

// Reasons returns the reasons of a parsed finding
func (r AIResult) Reasons() []string {
	if r.Finding == nil {
		return nil
	}
	return r.Finding.Reasons
}

// MarshalJSON renders whichever variant is set
func (r AIResult) MarshalJSON() ([]byte, error) {
	if r.Finding != nil {
		return json.Marshal(r.Finding)
	}
	if r.Degraded != nil {
		return json.Marshal(r.Degraded)
	}
	return json.Marshal(Degraded("", errors.New("no assessment")).Degraded)
}

// aiPayload mirrors the JSON object requested from the AI backend
type aiPayload struct {
	Classification string   `json:"classification" validate:"required"`
	RiskLevel      string   `json:"risk_level" validate:"required"`
	Score          *float64 `json:"score" validate:"required,gte=0,lte=100"`
	Reasons        []string `json:"reasons" validate:"required"`
}

var aiValidate = newAIValidator()

func newAIValidator() *validator.Validate {
	v := validator.New()
	// Report JSON field names in validation errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ParseAIResult interprets the raw AI response. It never fails: any decode or
// validation problem yields a degraded result carrying the raw text.
func ParseAIResult(raw string) AIResult {
	payload, err := decodeAIPayload(raw)
	if err != nil {
		return Degraded(raw, &ParseError{Raw: raw, Err: err})
	}

	if err := aiValidate.Struct(payload); err != nil {
		return Degraded(raw, &ParseError{Raw: raw, Err: describeValidation(err)})
	}

	reasons := make([]string, len(payload.Reasons))
	copy(reasons, payload.Reasons)

	return OK(AIFinding{
		Classification: payload.Classification,
		RiskLevel:      payload.RiskLevel,
		Score:          *payload.Score,
		Reasons:        reasons,
	})
}

// decodeAIPayload decodes the response, falling back to the outermost {...} slice
func decodeAIPayload(raw string) (*aiPayload, error) {
	var payload aiPayload
	err := json.Unmarshal([]byte(raw), &payload)
	if err == nil {
		return &payload, nil
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in response: %w", err)
	}

	payload = aiPayload{}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &payload); err != nil {
		return nil, fmt.Errorf("failed to decode JSON object: %w", err)
	}
	return &payload, nil
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &ValidationError{
		Field:  fe.Field(),
		Reason: fmt.Sprintf("failed %q check", fe.Tag()),
	}
}
