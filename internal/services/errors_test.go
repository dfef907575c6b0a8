package services_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"perapera/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrDownload, "contentstore", "fetch", "http 503", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrDownload) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"contentstore", "fetch", "http 503"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestKindAndOutcome(t *testing.T) {
	cases := []struct {
		err     error
		kind    string
		outcome services.Outcome
	}{
		{nil, "", services.OutcomeSuccess},
		{services.Wrap(services.ErrIndexLookup, "index", "resolve", "missing", nil), "IndexLookupFailed", services.OutcomeFailed},
		{services.Wrap(services.ErrDownload, "store", "fetch", "", errors.New("io")), "DownloadFailed", services.OutcomeFailed},
		{services.Wrap(services.ErrDecode, "bundle", "parse", "bad header", nil), "DecodeFailed", services.OutcomeFailed},
		{services.Wrap(services.ErrStructuralMismatch, "extract", "story", "no BlockList", nil), "StructuralMismatch", services.OutcomeSkipped},
		{errors.New("plain"), "DecodeFailed", services.OutcomeFailed},
		{context.Canceled, "Canceled", services.OutcomeFailed},
		{services.Wrap(services.ErrDownload, "store", "fetch", "", context.Canceled), "Canceled", services.OutcomeFailed},
		{services.Wrap(services.ErrDownload, "store", "fetch", "", context.DeadlineExceeded), "DownloadFailed", services.OutcomeFailed},
	}
	for _, tc := range cases {
		if got := services.Kind(tc.err); got != tc.kind {
			t.Fatalf("Kind(%v) = %q want %q", tc.err, got, tc.kind)
		}
		if got := services.OutcomeFor(tc.err); got != tc.outcome {
			t.Fatalf("OutcomeFor(%v) = %q want %q", tc.err, got, tc.outcome)
		}
	}
}
