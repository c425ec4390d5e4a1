package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// DecisionErrorKind classifies why a model response was rejected.
type DecisionErrorKind string

const (
	DecisionErrEmpty             DecisionErrorKind = "empty"
	DecisionErrInvalidJSON       DecisionErrorKind = "invalid_json"
	DecisionErrMissingField      DecisionErrorKind = "missing_field"
	DecisionErrInvalidAction     DecisionErrorKind = "invalid_action"
	DecisionErrInvalidPercentage DecisionErrorKind = "invalid_percentage"
)

// DecisionError typed parse failure of a model response.
type DecisionError struct {
	Kind   DecisionErrorKind
	Detail string
	Raw    string
}

func (e *DecisionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("decision rejected: %s", e.Kind)
	}
	return fmt.Sprintf("decision rejected: %s: %s", e.Kind, e.Detail)
}

// Decision validated trading decision.
type Decision struct {
	Action     Action `json:"decision"`
	Percentage int    `json:"percentage"`
	Reason     string `json:"reason"`
}

// rawDecision keeps pointers so absent fields can be told apart from zero values.
type rawDecision struct {
	Decision   *string  `json:"decision"`
	Percentage *float64 `json:"percentage"`
	Reason     *string  `json:"reason"`
}

// ParseDecision builds a validated decision from the model output.
// A failure is always a *DecisionError.
func ParseDecision(raw string) (Decision, error) {
	response := sanitizeDecisionPayload(raw)
	if response == "" {
		return Decision{}, &DecisionError{Kind: DecisionErrEmpty, Raw: raw}
	}

	if !json.Valid([]byte(response)) {
		return Decision{}, &DecisionError{Kind: DecisionErrInvalidJSON, Detail: "invalid JSON structure", Raw: raw}
	}

	var rd rawDecision
	if err := json.Unmarshal([]byte(response), &rd); err != nil {
		return Decision{}, &DecisionError{Kind: DecisionErrInvalidJSON, Detail: errors.Wrap(err, "JSON unmarshal error").Error(), Raw: raw}
	}

	return rd.validate(raw)
}

func sanitizeDecisionPayload(raw string) string {
	response := strings.TrimSpace(raw)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

func (rd rawDecision) validate(raw string) (Decision, error) {
	switch {
	case rd.Decision == nil:
		return Decision{}, &DecisionError{Kind: DecisionErrMissingField, Detail: "decision field is required", Raw: raw}
	case rd.Percentage == nil:
		return Decision{}, &DecisionError{Kind: DecisionErrMissingField, Detail: "percentage field is required", Raw: raw}
	case rd.Reason == nil:
		return Decision{}, &DecisionError{Kind: DecisionErrMissingField, Detail: "reason field is required", Raw: raw}
	}

	action := Action(*rd.Decision)
	if !action.Valid() {
		return Decision{}, &DecisionError{Kind: DecisionErrInvalidAction, Detail: *rd.Decision, Raw: raw}
	}

	pct := *rd.Percentage
	if pct != math.Trunc(pct) || pct < 0 || pct > 100 {
		return Decision{}, &DecisionError{
			Kind:   DecisionErrInvalidPercentage,
			Detail: fmt.Sprintf("%v (must be an integer 0-100)", pct),
			Raw:    raw,
		}
	}

	return Decision{Action: action, Percentage: int(pct), Reason: *rd.Reason}, nil
}
