// Package mapper turns the classifier's untrusted text response into a
// validated decision. Mapping is all-or-nothing: a single malformed or
// unknown element rejects the whole response.
package mapper

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/nhle/mailbot/internal/model"
	"github.com/nhle/mailbot/internal/vocabulary"
)

// Reason classifies why a response was rejected.
type Reason string

const (
	ReasonParseError       Reason = "parse_error"
	ReasonUnknownAction    Reason = "unknown_action"
	ReasonMissingParameter Reason = "missing_parameter"
	ReasonInvalidParameter Reason = "invalid_parameter"
)

// Rejection explains why a response produced no decision.
type Rejection struct {
	Reason Reason

	// Index is the offending element position, or -1 when the payload
	// as a whole could not be parsed.
	Index int

	Action    string
	Parameter string
	Value     string

	// Err is the underlying decode error for ReasonParseError.
	Err error
}

func (r *Rejection) Error() string {
	switch r.Reason {
	case ReasonParseError:
		return fmt.Sprintf("parse error: %v", r.Err)
	case ReasonUnknownAction:
		return fmt.Sprintf("element %d: unknown action %q", r.Index, r.Action)
	case ReasonMissingParameter:
		return fmt.Sprintf("element %d: action %q missing parameter %q",
			r.Index, r.Action, r.Parameter)
	case ReasonInvalidParameter:
		return fmt.Sprintf("element %d: action %q has invalid %s %q",
			r.Index, r.Action, r.Parameter, r.Value)
	default:
		return string(r.Reason)
	}
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// MarshalZerologObject lets a rejection be embedded in a log event.
func (r *Rejection) MarshalZerologObject(e *zerolog.Event) {
	e.Str("reason", string(r.Reason))
	if r.Index >= 0 {
		e.Int("index", r.Index)
	}
	if r.Action != "" {
		e.Str("action", r.Action)
	}
	if r.Parameter != "" {
		e.Str("parameter", r.Parameter)
	}
	if r.Value != "" {
		e.Str("value", r.Value)
	}
	if r.Err != nil {
		e.AnErr("cause", r.Err)
	}
}

// IsRejection reports whether err (or any error in its chain) is a
// *Rejection.
func IsRejection(err error) bool {
	var rej *Rejection
	return errors.As(err, &rej)
}

// Map parses raw and validates every element against the vocabulary.
// It returns either a decision (possibly empty) or a rejection, never
// both. It does not panic on any input.
func Map(raw string) (*model.Decision, *Rejection) {
	elements, err := Parse(raw)
	if err != nil {
		return nil, &Rejection{Reason: ReasonParseError, Index: -1, Err: err}
	}
	return Validate(elements)
}

// wireElement keeps "action" as a pointer so a missing key can be told
// apart from an empty string.
type wireElement struct {
	Action     *string           `json:"action"`
	Parameters map[string]string `json:"parameters"`
}

type wireEnvelope struct {
	Actions *[]wireElement `json:"actions"`
}

// Parse decodes either {"actions": [...]} or a bare [...] into wire
// elements. Every element needs a string "action"; "parameters" is
// optional but its values must be strings.
func Parse(raw string) ([]model.WireAction, error) {
	data := bytes.TrimSpace([]byte(raw))
	if len(data) == 0 {
		return nil, errors.New("empty response")
	}

	var items []wireElement
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, fmt.Errorf("decoding action array: %w", err)
		}
	case '{':
		var env wireEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			return nil, fmt.Errorf("decoding action object: %w", err)
		}
		if env.Actions == nil {
			return nil, errors.New(`missing "actions" array`)
		}
		items = *env.Actions
	default:
		var probe any
		if err := json.Unmarshal(data, &probe); err != nil {
			return nil, fmt.Errorf("decoding response: %w", err)
		}
		return nil, fmt.Errorf("unexpected JSON %T, want array or object", probe)
	}

	elements := make([]model.WireAction, len(items))
	for i, it := range items {
		if it.Action == nil {
			return nil, fmt.Errorf("element %d: missing \"action\"", i)
		}
		elements[i] = model.WireAction{Action: *it.Action, Parameters: it.Parameters}
	}
	return elements, nil
}

// Validate checks decoded elements against the vocabulary and builds the
// decision, preserving element order.
func Validate(elements []model.WireAction) (*model.Decision, *Rejection) {
	actions := make([]model.Action, 0, len(elements))
	for i, el := range elements {
		spec, ok := vocabulary.Lookup(el.Action)
		if !ok {
			return nil, &Rejection{Reason: ReasonUnknownAction, Index: i, Action: el.Action}
		}

		var value string
		if spec.RequiresParam() {
			v, present := el.Parameters[spec.Param]
			if !present {
				return nil, &Rejection{
					Reason:    ReasonMissingParameter,
					Index:     i,
					Action:    el.Action,
					Parameter: spec.Param,
				}
			}
			if !spec.Allows(v) {
				return nil, &Rejection{
					Reason:    ReasonInvalidParameter,
					Index:     i,
					Action:    el.Action,
					Parameter: spec.Param,
					Value:     v,
				}
			}
			value = v
		}

		actions = append(actions, vocabulary.Build(spec, value))
	}
	return &model.Decision{Actions: actions}, nil
}
