package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/IgnacyBartnik/LLM-PDF-extractor/constants"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/common"
	"github.com/IgnacyBartnik/LLM-PDF-extractor/internal/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), Config{DSN: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	return store
}

func TestRebind(t *testing.T) {
	s := &Store{postgres: false}
	got := s.rebind("INSERT INTO t (a, b) VALUES ($1, $12) WHERE c = $2")
	want := "INSERT INTO t (a, b) VALUES (?, ?) WHERE c = ?"
	if got != want {
		t.Errorf("rebind = %q, want %q", got, want)
	}

	pg := &Store{postgres: true}
	if q := pg.rebind("SELECT $1"); q != "SELECT $1" {
		t.Errorf("postgres rebind changed the query: %q", q)
	}
}

func TestResultRoundTrip(t *testing.T) {
	store := newTestStore(t)
	repo := NewResultRepository(store, nil)
	ctx := context.Background()

	conf := float32(0.92)
	res := &entity.ExtractionResult{
		ID:       uuid.New(),
		Filename: "claim.pdf",
		FileSize: 2048,
		Document: &entity.FormDocument{Filename: "claim.pdf", FileSize: 2048, PageCount: 3},
		Fields: []entity.ExtractedField{
			{Name: "claim_number", Value: "CLM-1234", Confidence: &conf, Evidence: "header"},
			{Name: "incident_date", Value: constants.NotFoundValue, Recovered: false},
		},
		Status:    constants.StatusPartial,
		Model:     "gpt-4o-mini",
		Attempts:  2,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
		Elapsed:   1500 * time.Millisecond,
	}
	if err := repo.SaveResult(ctx, res); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	got, err := repo.GetResult(ctx, res.ID)
	if err != nil {
		t.Fatalf("GetResult: %v", err)
	}
	if got.Status != constants.StatusPartial || got.Attempts != 2 || got.Filename != "claim.pdf" {
		t.Errorf("header mismatch: %+v", got)
	}
	if got.Document == nil || got.Document.PageCount != 3 {
		t.Errorf("page count not restored: %+v", got.Document)
	}
	if !got.CreatedAt.Equal(res.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, res.CreatedAt)
	}
	if got.Elapsed != res.Elapsed {
		t.Errorf("elapsed = %v, want %v", got.Elapsed, res.Elapsed)
	}
	if diff := cmp.Diff(res.Fields, got.Fields); diff != "" {
		t.Errorf("fields mismatch (-saved +loaded):\n%s", diff)
	}
}

func TestGetResultNotFound(t *testing.T) {
	store := newTestStore(t)
	repo := NewResultRepository(store, nil)

	_, err := repo.GetResult(context.Background(), uuid.New())
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestListResultsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	repo := NewResultRepository(store, nil)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	for i := 0; i < 3; i++ {
		res := &entity.ExtractionResult{
			ID:        uuid.New(),
			Filename:  "doc.pdf",
			Status:    constants.StatusSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.SaveResult(ctx, res); err != nil {
			t.Fatalf("SaveResult #%d: %v", i, err)
		}
	}

	got, err := repo.ListResults(ctx, 2)
	if err != nil {
		t.Fatalf("ListResults: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want limit 2", len(got))
	}
	if !got[0].CreatedAt.After(got[1].CreatedAt) {
		t.Errorf("not newest first: %v then %v", got[0].CreatedAt, got[1].CreatedAt)
	}
}

func TestSeedDefaultsIdempotent(t *testing.T) {
	store := newTestStore(t)
	repo := NewTemplateRepository(store, nil)
	ctx := context.Background()

	if err := repo.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	if err := repo.SeedDefaults(ctx); err != nil {
		t.Fatalf("SeedDefaults (second run): %v", err)
	}

	tpls, err := repo.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(tpls) != len(DefaultTemplates()) {
		t.Errorf("templates = %d, want %d", len(tpls), len(DefaultTemplates()))
	}

	tpl, err := repo.GetTemplate(ctx, "insurance_claim")
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if len(tpl.Fields) != 5 || tpl.Fields[0] != "claim_number" {
		t.Errorf("insurance_claim fields = %v", tpl.Fields)
	}

	cfg, err := tpl.Config()
	if err != nil {
		t.Fatalf("template Config: %v", err)
	}
	if cfg.TemplateName != "insurance_claim" || cfg.TemplateHint == "" {
		t.Errorf("config from template = %+v", cfg)
	}
}

func TestCreateTemplateValidation(t *testing.T) {
	store := newTestStore(t)
	repo := NewTemplateRepository(store, nil)
	ctx := context.Background()

	err := repo.CreateTemplate(ctx, &entity.FormTypeTemplate{Name: "bad"})
	if !errors.Is(err, common.ErrInvalidInput) {
		t.Errorf("err = %v, want ErrInvalidInput", err)
	}

	tpl := &entity.FormTypeTemplate{Name: "w2", Fields: []string{"employer", "wages"}}
	if err := repo.CreateTemplate(ctx, tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if err := repo.CreateTemplate(ctx, tpl); !errors.Is(err, common.ErrConflict) {
		t.Errorf("duplicate template err = %v, want ErrConflict", err)
	}

	_, err = repo.GetTemplate(ctx, "missing")
	if !errors.Is(err, common.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
