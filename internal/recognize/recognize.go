// Package recognize classifies captured waste images. The production client
// talks to an OpenAI-compatible vision endpoint; a simulator stands in when
// no credentials are configured.
package recognize

import (
	"context"
	"errors"
	"strings"
)

// Sentinel errors for recognition calls.
var (
	ErrImageMissing = errors.New("image file does not exist")
	ErrEmptyResult  = errors.New("recognition returned no result")
)

// Fallbacks used when the model omits a field. Category is always a
// three-level hierarchy joined by '-'.
const (
	UnknownCategory   = "Other-Miscellaneous-Unknown"
	categoryPadding   = "-Unspecified-Unknown"
	noComposition     = "composition unavailable"
	noDegradation     = "degradation time unavailable"
	noRecyclingAdvice = "recycling guidance unavailable"
)

// Result is a structured waste classification. Confidence is optional;
// zero means the model did not report one.
type Result struct {
	Category        string  `json:"category"`
	Composition     string  `json:"composition"`
	DegradationTime string  `json:"degradation_time"`
	RecyclingValue  string  `json:"recycling_value"`
	Description     string  `json:"description"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// Recognizer classifies the image at path. Implementations must honor
// context cancellation; a nil result without error never occurs.
type Recognizer interface {
	Recognize(ctx context.Context, imagePath string) (*Result, error)
}

// normalize fills missing fields and enforces the three-level category
// hierarchy: an empty category becomes UnknownCategory, a category with
// fewer than two separators is padded out.
func normalize(r Result) *Result {
	r.Category = strings.TrimSpace(r.Category)
	switch {
	case r.Category == "":
		r.Category = UnknownCategory
	case strings.Count(r.Category, "-") < 2:
		r.Category += categoryPadding
	}

	r.Composition = orDefault(r.Composition, noComposition)
	r.DegradationTime = orDefault(r.DegradationTime, noDegradation)
	r.RecyclingValue = orDefault(r.RecyclingValue, noRecyclingAdvice)
	r.Description = describe(r)

	return &r
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// describe builds a one-line summary from the fields the model actually
// provided.
func describe(r Result) string {
	var parts []string
	if r.Composition != noComposition {
		parts = append(parts, "composition: "+r.Composition)
	}
	if r.DegradationTime != noDegradation {
		parts = append(parts, "degradation: "+r.DegradationTime)
	}
	if r.RecyclingValue != noRecyclingAdvice {
		parts = append(parts, "recycling: "+r.RecyclingValue)
	}
	if len(parts) == 0 {
		return "no composition or recycling details available"
	}
	return strings.Join(parts, "; ")
}
