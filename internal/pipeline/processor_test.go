package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/document"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/inference"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/parse"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/prompt"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/testutil"
)

// stubCaller returns a canned response or error and counts calls.
type stubCaller struct {
	resp  inference.RawResponse
	err   error
	calls int
}

func (s *stubCaller) Call(ctx context.Context, p prompt.Prompt, model string, temperature float32) (inference.RawResponse, error) {
	s.calls++
	return s.resp, s.err
}

func newTestProcessor(caller inference.Caller) *Processor {
	return NewProcessor(
		document.NewLoader(document.Config{}, nil),
		prompt.NewBuilder(0),
		caller,
		parse.NewValidator(nil),
		nil,
	)
}

func testConfig(t *testing.T, fields ...string) *entity.ExtractionConfig {
	t.Helper()
	cfg, err := entity.NewExtractionConfig("general", fields)
	if err != nil {
		t.Fatalf("NewExtractionConfig: %v", err)
	}
	return cfg
}

func TestExtractSuccess(t *testing.T) {
	stub := &stubCaller{resp: inference.RawResponse{
		Content:  `{"extracted_data": {"name": "Jane Doe", "date": "2024-01-01"}, "confidence_scores": {"name": 0.95, "date": 0.9}}`,
		Model:    "gpt-4o-mini",
		Attempts: 1,
	}}
	p := newTestProcessor(stub)
	cfg := testConfig(t, "name", "date")

	res := p.Extract(context.Background(), testutil.MinimalPDF("Name: Jane Doe", "Date: 2024-01-01"), "form.pdf", cfg)
	if res == nil {
		t.Fatal("Extract returned nil")
	}
	if res.Status != constants.StatusSuccess {
		t.Fatalf("status = %s (%s: %s)", res.Status, res.ErrorKind, res.ErrorMessage)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
	if f := res.Field("name"); f == nil || f.Value != "Jane Doe" {
		t.Errorf("name field = %+v", f)
	}
	if f := res.Field("date"); f == nil || f.Value != "2024-01-01" {
		t.Errorf("date field = %+v", f)
	}
	if res.Document == nil || res.Document.PageCount != 2 {
		t.Errorf("document = %+v", res.Document)
	}
	if res.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Error("result ID not assigned")
	}
}

func TestExtractEmptyDocumentSkipsInference(t *testing.T) {
	stub := &stubCaller{}
	p := newTestProcessor(stub)

	res := p.Extract(context.Background(), nil, "empty.pdf", testConfig(t, "name"))
	if res.Status != constants.StatusFailed {
		t.Fatalf("status = %s, want FAILED", res.Status)
	}
	if res.ErrorKind != string(document.KindEmpty) {
		t.Errorf("kind = %q, want %q", res.ErrorKind, document.KindEmpty)
	}
	if stub.calls != 0 {
		t.Errorf("inference called %d times on an unloadable document", stub.calls)
	}
	if res.ErrorMessage == "" {
		t.Error("failed result should carry a message")
	}
}

func TestExtractPartialMissingField(t *testing.T) {
	stub := &stubCaller{resp: inference.RawResponse{
		Content:  `{"extracted_data": {"name": "Jane Doe"}}`,
		Attempts: 1,
	}}
	p := newTestProcessor(stub)

	res := p.Extract(context.Background(), testutil.MinimalPDF("Name: Jane Doe"), "form.pdf", testConfig(t, "name", "date"))
	if res.Status != constants.StatusPartial {
		t.Fatalf("status = %s, want PARTIAL", res.Status)
	}
	f := res.Field("date")
	if f == nil || f.Value != constants.NotFoundValue {
		t.Errorf("date field = %+v, want Not found", f)
	}
	if f != nil && f.Confidence != nil {
		t.Errorf("missing field confidence = %v, want nil", *f.Confidence)
	}
}

func TestExtractInferenceFailure(t *testing.T) {
	stub := &stubCaller{
		resp: inference.RawResponse{Attempts: 3},
		err:  &inference.Error{Kind: inference.KindTimeout, Attempts: 3, LastMessage: "context deadline exceeded"},
	}
	p := newTestProcessor(stub)

	res := p.Extract(context.Background(), testutil.MinimalPDF("hello"), "form.pdf", testConfig(t, "name"))
	if res.Status != constants.StatusFailed {
		t.Fatalf("status = %s, want FAILED", res.Status)
	}
	if res.ErrorKind != string(inference.KindTimeout) {
		t.Errorf("kind = %q, want Timeout", res.ErrorKind)
	}
	if res.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", res.Attempts)
	}
	if res.Document == nil {
		t.Error("loaded document should survive an inference failure")
	}
}

func TestExtractFlatObjectResponseIsSuccess(t *testing.T) {
	stub := &stubCaller{resp: inference.RawResponse{
		Content:  `{"name": "Jane Doe", "date": "2024-01-01"}`,
		Attempts: 1,
	}}
	p := newTestProcessor(stub)

	res := p.Extract(context.Background(), testutil.MinimalPDF("one", "two", "three"), "form.pdf", testConfig(t, "name", "date"))
	if res.Status != constants.StatusSuccess {
		t.Fatalf("status = %s (%s: %s), want SUCCESS", res.Status, res.ErrorKind, res.ErrorMessage)
	}
	if f := res.Field("name"); f == nil || f.Value != "Jane Doe" {
		t.Errorf("name field = %+v", f)
	}
	if f := res.Field("date"); f == nil || f.Value != "2024-01-01" {
		t.Errorf("date field = %+v", f)
	}
}

func TestExtractCancelled(t *testing.T) {
	stub := &stubCaller{
		resp: inference.RawResponse{Attempts: 1},
		err:  fmt.Errorf("inference call cancelled after 1 attempt(s): %w", context.Canceled),
	}
	p := newTestProcessor(stub)

	res := p.Extract(context.Background(), testutil.MinimalPDF("hello"), "form.pdf", testConfig(t, "name"))
	if res.Status != constants.StatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", res.Status)
	}
	if res.ErrorMessage == "" {
		t.Error("cancelled result should carry a message")
	}
}

func TestExtractParentDeadlineIsCancelled(t *testing.T) {
	stub := &stubCaller{
		resp: inference.RawResponse{Attempts: 1},
		err:  fmt.Errorf("inference call cancelled after 1 attempt(s): %w", context.DeadlineExceeded),
	}
	p := newTestProcessor(stub)

	res := p.Extract(context.Background(), testutil.MinimalPDF("hello"), "form.pdf", testConfig(t, "name"))
	if res.Status != constants.StatusCancelled {
		t.Fatalf("status = %s (kind %q), want CANCELLED", res.Status, res.ErrorKind)
	}
	if res.ErrorKind != "" {
		t.Errorf("kind = %q, want empty for an external deadline", res.ErrorKind)
	}
	if res.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", res.Attempts)
	}
}

func TestExtractUnparsableResponse(t *testing.T) {
	stub := &stubCaller{resp: inference.RawResponse{Content: "no structure here at all", Attempts: 1}}
	p := newTestProcessor(stub)

	res := p.Extract(context.Background(), testutil.MinimalPDF("hello"), "form.pdf", testConfig(t, "name"))
	if res.Status != constants.StatusFailed {
		t.Fatalf("status = %s, want FAILED", res.Status)
	}
	if res.ErrorKind != string(parse.KindUnparsable) {
		t.Errorf("kind = %q, want %q", res.ErrorKind, parse.KindUnparsable)
	}
}

func TestExtractIdempotent(t *testing.T) {
	content := testutil.MinimalPDF("Name: Jane Doe")
	cfg := testConfig(t, "name")
	mk := func() *entity.ExtractionResult {
		stub := &stubCaller{resp: inference.RawResponse{
			Content:  `{"extracted_data": {"name": "Jane Doe"}, "confidence_scores": {"name": 0.9}}`,
			Attempts: 1,
		}}
		return newTestProcessor(stub).Extract(context.Background(), content, "form.pdf", cfg)
	}

	a, b := mk(), mk()
	if a.Status != b.Status {
		t.Errorf("status differs: %s vs %s", a.Status, b.Status)
	}
	if diff := cmp.Diff(a.Fields, b.Fields); diff != "" {
		t.Errorf("fields differ between identical runs (-first +second):\n%s", diff)
	}
	if a.PromptTruncated != b.PromptTruncated || a.Attempts != b.Attempts {
		t.Error("run metadata differs between identical runs")
	}
	if a.ID == b.ID {
		t.Error("each run should get its own result ID")
	}
}
