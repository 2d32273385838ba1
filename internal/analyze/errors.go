package analyze

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnparseableJSON means no JSON document could be found in a model reply.
	ErrUnparseableJSON = errors.New("model did not return parseable JSON")
	// ErrUnexpectedShape means the reply parsed but lacked the required array.
	ErrUnexpectedShape = errors.New("model JSON in unexpected format")
)

// Stage names one model call in the pipeline.
type Stage string

const (
	StageDetect    Stage = "detect"
	StageRecommend Stage = "recommend"
)

// ParseError describes a model reply that could not be used.
type ParseError struct {
	Stage Stage
	// Kind is ErrUnparseableJSON or ErrUnexpectedShape.
	Kind error
	// Raw is the model reply as received.
	Raw string
	// Cleaned is the extracted JSON text, when extraction succeeded.
	Cleaned string
	// Parsed is the decoded document, when it parsed but had the wrong shape.
	Parsed json.RawMessage
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Kind)
}

func (e *ParseError) Unwrap() error {
	return e.Kind
}

// Message is the client-facing description of the failure.
func (e *ParseError) Message() string {
	subject := "Feature detection"
	if e.Stage == StageRecommend {
		subject = "Final recommendation"
	}
	if errors.Is(e.Kind, ErrUnexpectedShape) {
		return subject + " JSON in unexpected format."
	}
	return subject + " model did not return parseable JSON."
}
