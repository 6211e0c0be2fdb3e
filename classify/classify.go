// Package classify wraps the text-classification model behind a small
// adapter interface so the web layer never talks to the model service
// directly.
package classify

import (
	"context"
	"errors"
)

// Known labels the model emits.
const (
	LabelHealthy    = "Control Sano (CO)"
	LabelColorectal = "Cáncer Colorrectal (CRC)"
)

// ErrUnavailable reports that the model could not produce a label,
// whatever the underlying cause. Callers degrade gracefully instead of
// failing the request.
var ErrUnavailable = errors.New("classify: model unavailable")

// Classifier labels a free-text clinical history.
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}
