package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"mailreel/internal/store"
	"mailreel/internal/testsupport"
)

func sampleArtifact(id string, created time.Time) store.Artifact {
	return store.Artifact{
		MessageID:        id,
		Locator:          filepath.Join("/videos", id+".mp4"),
		DurationSeconds:  7.5,
		Width:            1080,
		Height:           1920,
		CreatedAt:        created,
		ThumbnailLocator: filepath.Join("/videos", id+".jpg"),
		Background:       "work",
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("unexpected health: %#v", health)
	}
	if health.SchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", health.SchemaVersion)
	}
	if !health.IntegrityCheck {
		t.Fatalf("integrity check failed: %s", health.Error)
	}
}

func TestReopenKeepsData(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := first.UpsertArtifact(ctx, sampleArtifact("m1", time.Now())); err != nil {
		t.Fatalf("UpsertArtifact failed: %v", err)
	}
	first.Close()

	second := testsupport.MustOpenStore(t, cfg)
	exists, err := second.Exists(ctx, "m1")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Fatal("expected m1 to persist across reopen")
	}
}

func TestUpsertArtifactIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	original := sampleArtifact("m1", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	if err := st.UpsertArtifact(ctx, original); err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}
	changed := original
	changed.Locator = "/elsewhere/m1.mp4"
	changed.DurationSeconds = 99
	if err := st.UpsertArtifact(ctx, changed); err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	got, err := st.GetArtifact(ctx, "m1")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected artifact")
	}
	if got.Locator != original.Locator || got.DurationSeconds != original.DurationSeconds {
		t.Fatalf("artifact was mutated: %#v", got)
	}
	if !got.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, original.CreatedAt)
	}
	if got.Background != "work" || got.ThumbnailLocator == "" {
		t.Fatalf("optional columns not round-tripped: %#v", got)
	}

	summary, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if summary.Artifacts != 1 {
		t.Fatalf("expected 1 artifact, got %d", summary.Artifacts)
	}
}

func TestUpsertArtifactRequiresID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if err := st.UpsertArtifact(context.Background(), store.Artifact{Locator: "x"}); err == nil {
		t.Fatal("expected error for empty message id")
	}
}

func TestListKnownIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		if err := st.UpsertArtifact(ctx, sampleArtifact(id, time.Now())); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	known, err := st.ListKnownIDs(ctx)
	if err != nil {
		t.Fatalf("ListKnownIDs failed: %v", err)
	}
	if len(known) != 3 {
		t.Fatalf("expected 3 ids, got %d", len(known))
	}
	for _, id := range []string{"a", "b", "c"} {
		if _, ok := known[id]; !ok {
			t.Fatalf("missing id %s", id)
		}
	}
}

func TestListArtifactsNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("m%d", i)
		if err := st.UpsertArtifact(ctx, sampleArtifact(id, base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	artifacts, err := st.ListArtifacts(ctx, 3)
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(artifacts))
	}
	if artifacts[0].MessageID != "m4" || artifacts[2].MessageID != "m2" {
		t.Fatalf("unexpected order: %s, %s, %s", artifacts[0].MessageID, artifacts[1].MessageID, artifacts[2].MessageID)
	}
}

func TestDeleteArtifactAllowsRerender(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.UpsertArtifact(ctx, sampleArtifact("m1", time.Now())); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	removed, err := st.DeleteArtifact(ctx, "m1")
	if err != nil {
		t.Fatalf("DeleteArtifact failed: %v", err)
	}
	if !removed {
		t.Fatal("expected a row to be removed")
	}
	removed, err = st.DeleteArtifact(ctx, "m1")
	if err != nil {
		t.Fatalf("second delete failed: %v", err)
	}
	if removed {
		t.Fatal("second delete should report nothing removed")
	}

	got, err := st.GetArtifact(ctx, "m1")
	if err != nil {
		t.Fatalf("GetArtifact failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil artifact after delete, got %#v", got)
	}
}

func TestRecordAndListFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.RecordFailure(ctx, store.Failure{MessageID: "m1", BatchID: "b1", Stage: "assemble", ErrorKind: "permanent", Error: "mux failed"}); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if err := st.RecordFailure(ctx, store.Failure{MessageID: "m2", Stage: "assemble", ErrorKind: "transient"}); err != nil {
		t.Fatalf("RecordFailure failed: %v", err)
	}
	if err := st.RecordFailure(ctx, store.Failure{}); err == nil {
		t.Fatal("expected error for empty failure")
	}

	failures, err := st.ListFailures(ctx, 10)
	if err != nil {
		t.Fatalf("ListFailures failed: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].MessageID != "m2" || failures[1].Error != "mux failed" || failures[1].BatchID != "b1" {
		t.Fatalf("unexpected failures: %#v", failures)
	}
	if failures[0].CreatedAt.IsZero() {
		t.Fatal("expected created_at to default to now")
	}

	summary, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if summary.Failures != 2 || summary.Artifacts != 0 {
		t.Fatalf("unexpected summary %#v", summary)
	}
}

func TestSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	dbPath := st.Path()

	raw, err := store.OpenPath(dbPath)
	if err != nil {
		t.Fatalf("OpenPath failed: %v", err)
	}
	if err := raw.ForceSchemaVersionForTest(context.Background(), 99); err != nil {
		t.Fatalf("force version: %v", err)
	}
	raw.Close()

	if _, err := store.OpenPath(dbPath); !errors.Is(err, store.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
