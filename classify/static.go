package classify

import "context"

// Static always answers with the same label. Used in development when
// no model service runs, and as a test double.
type Static struct {
	Label string
	Err   error
}

func (s Static) Classify(context.Context, string) (string, error) {
	if s.Err != nil {
		return "", s.Err
	}
	if s.Label == "" {
		return LabelHealthy, nil
	}
	return s.Label, nil
}
