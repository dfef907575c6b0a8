package extract

import (
	"fmt"

	"perapera/internal/document"
	"perapera/internal/services"
)

// Status tags the outcome of a walker.
type Status int

const (
	StatusFound Status = iota
	StatusNotApplicable
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotApplicable:
		return "not_applicable"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the tagged outcome of one extraction.
type Result struct {
	Status   Status
	Document *document.AssetDocument
	// Skipped counts sub-structures that were dropped with a warning.
	Skipped int
	Reason  string
	err     error
}

// Found wraps a successfully extracted document.
func Found(doc *document.AssetDocument, skipped int) Result {
	return Result{Status: StatusFound, Document: doc, Skipped: skipped}
}

// NotApplicable reports that the expected structure is absent.
func NotApplicable(reason string) Result {
	return Result{Status: StatusNotApplicable, Reason: reason}
}

// Failed reports that extraction broke.
func Failed(err error) Result {
	return Result{Status: StatusFailed, err: err, Reason: err.Error()}
}

// Err converts the result into a pipeline error. Found results return nil; a
// missing structure maps to services.ErrStructuralMismatch.
func (r Result) Err() error {
	switch r.Status {
	case StatusFound:
		return nil
	case StatusNotApplicable:
		return services.Wrap(services.ErrStructuralMismatch, "extract", "walk", r.Reason, nil)
	default:
		if r.err == nil {
			return services.Wrap(services.ErrDecode, "extract", "walk", r.Reason, nil)
		}
		return r.err
	}
}
