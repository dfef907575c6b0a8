package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrIndexLookup         = errors.New("index lookup failed")
	ErrDownload            = errors.New("download failed")
	ErrDecode              = errors.New("decode failed")
	ErrStructuralMismatch  = errors.New("structural mismatch")
	ErrPartialSubstructure = errors.New("partial substructure error")
	ErrConfiguration       = errors.New("configuration error")
	ErrValidation          = errors.New("validation error")
)

// Outcome is the per-asset result recorded by batch runs.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrDecode
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns the taxonomy name of err for user-facing reports. Work cut
// short by cancellation reports as Canceled whatever marker it carries.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "Canceled"
	case errors.Is(err, ErrIndexLookup):
		return "IndexLookupFailed"
	case errors.Is(err, ErrDownload):
		return "DownloadFailed"
	case errors.Is(err, ErrStructuralMismatch):
		return "StructuralMismatch"
	case errors.Is(err, ErrPartialSubstructure):
		return "PartialSubstructureError"
	case errors.Is(err, ErrConfiguration):
		return "ConfigurationError"
	case errors.Is(err, ErrValidation):
		return "ValidationError"
	default:
		return "DecodeFailed"
	}
}

// OutcomeFor maps a pipeline error to the outcome a batch run should record.
// A structural mismatch means there was nothing to extract and is not a failure.
func OutcomeFor(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrStructuralMismatch):
		return OutcomeSkipped
	default:
		return OutcomeFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
