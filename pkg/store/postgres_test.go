//go:build integration

package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quernlabs/quern/pkg/models"
)

// pgvectorImage ships PostgreSQL 16 with the vector extension compiled in.
const pgvectorImage = "pgvector/pgvector:pg16"

// pgHarness holds the shared Postgres container and its connection
// parameters. Started lazily on first use so the SQLite tests in this
// package never touch Docker.
type pgHarness struct {
	container testcontainers.Container
	config    PostgresConfig
}

var sharedPG *pgHarness

// TestMain tears down the shared container after the run. SQLite-only
// runs never start one.
func TestMain(m *testing.M) {
	code := m.Run()
	if sharedPG != nil && sharedPG.container != nil {
		_ = sharedPG.container.Terminate(context.Background())
	}
	os.Exit(code)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// startPostgres returns the shared harness, starting a pgvector
// container on first call. POSTGRES_HOST switches to an external
// database for environments without Docker.
func startPostgres(t *testing.T) *pgHarness {
	t.Helper()

	if sharedPG != nil {
		return sharedPG
	}

	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		port := 5432
		if p := os.Getenv("POSTGRES_PORT"); p != "" {
			_, _ = fmt.Sscanf(p, "%d", &port)
		}
		sharedPG = &pgHarness{
			config: PostgresConfig{
				Host:     host,
				Port:     port,
				Database: envOr("POSTGRES_DATABASE", "quern_test"),
				User:     envOr("POSTGRES_USER", "quern_test"),
				Password: envOr("POSTGRES_PASSWORD", "quern_test"),
				SSLMode:  "disable",
			},
		}
		return sharedPG
	}

	ctx := context.Background()

	// Postgres logs the ready line twice during startup (bootstrap and
	// final), so wait for the second occurrence.
	container, err := postgres.Run(ctx,
		pgvectorImage,
		postgres.WithDatabase("quern_test"),
		postgres.WithUsername("quern_test"),
		postgres.WithPassword("quern_test"),
		testcontainers.WithWaitStrategyAndDeadline(5*time.Minute,
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2),
			wait.ForListeningPort("5432/tcp"),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get container port: %v", err)
	}

	sharedPG = &pgHarness{
		container: container,
		config: PostgresConfig{
			Host:     host,
			Port:     port.Int(),
			Database: "quern_test",
			User:     "quern_test",
			Password: "quern_test",
			SSLMode:  "disable",
		},
	}
	return sharedPG
}

// setupPostgresStore creates a store against the shared database and
// clears all rows so every test starts from an empty corpus.
func setupPostgresStore(t *testing.T) *GORMStore {
	t.Helper()

	harness := startPostgres(t)
	store, err := New(&Config{
		Type:             DatabaseTypePostgres,
		Postgres:         harness.config,
		VectorDimensions: DefaultVectorDimensions,
	})
	if err != nil {
		t.Fatalf("failed to create postgres store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	err = store.db.Exec(
		`TRUNCATE TABLE processing_metrics, chunks, documents, processing_profiles CASCADE`,
	).Error
	if err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
	return store
}

// axisVec returns a unit vector along the given axis at the migrated
// dimension. Cosine distances between axis vectors are exact, which
// keeps ranking assertions stable.
func axisVec(i int) []float32 {
	v := make([]float32, DefaultVectorDimensions)
	v[i] = 1
	return v
}

// mixVec returns the normalized sum of two axis unit vectors, cosine
// similarity 1/sqrt(2) against either axis.
func mixVec(i, j int) []float32 {
	v := make([]float32, DefaultVectorDimensions)
	v[i] = 0.70710678
	v[j] = 0.70710678
	return v
}

// seedPostgresCorpus inserts one visible document with three chunks at
// known angles to axis 0, plus a pending and an inactive document whose
// chunks sit exactly on the query axes and must never surface.
func seedPostgresCorpus(t *testing.T, store *GORMStore) (visibleDoc string) {
	t.Helper()
	ctx := context.Background()
	profileID := seedProfile(t, store)

	complete := func(id string) {
		t.Helper()
		if err := store.UpdateDocumentStatus(ctx, id,
			[]models.DocumentStatus{models.StatusPending}, models.StatusCompleted, nil); err != nil {
			t.Fatalf("failed to complete document: %v", err)
		}
	}

	visible, err := store.CreateDocument(ctx, testDocument(profileID, "11110000111100001111000011110000"))
	if err != nil {
		t.Fatal(err)
	}
	fox := &models.Chunk{
		ChunkIndex: 0, Content: "the quick brown fox",
		Embedding: embedding(axisVec(0)...), QualityScore: 0.9, ChunkType: "text",
	}
	if err := fox.SetBreadcrumbs([]string{"Animals", "Mammals"}); err != nil {
		t.Fatal(err)
	}
	fence := &models.Chunk{
		ChunkIndex: 1, Content: "jumps over the fence",
		Embedding: embedding(mixVec(0, 1)...), QualityScore: 0.7, ChunkType: "text",
	}
	dog := &models.Chunk{
		ChunkIndex: 2, Content: "lazy dog sleeps",
		Embedding: embedding(axisVec(1)...), QualityScore: 0.3, ChunkType: "table",
	}
	if err := store.ReplaceChunks(ctx, visible, []*models.Chunk{fox, fence, dog}); err != nil {
		t.Fatal(err)
	}
	complete(visible)

	pending, err := store.CreateDocument(ctx, testDocument(profileID, "22220000222200002222000022220000"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceChunks(ctx, pending, []*models.Chunk{
		{ChunkIndex: 0, Content: "pending content", Embedding: embedding(axisVec(0)...), QualityScore: 1},
	}); err != nil {
		t.Fatal(err)
	}

	inactive, err := store.CreateDocument(ctx, testDocument(profileID, "33330000333300003333000033330000"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.ReplaceChunks(ctx, inactive, []*models.Chunk{
		{ChunkIndex: 0, Content: "inactive content", Embedding: embedding(axisVec(1)...), QualityScore: 1},
	}); err != nil {
		t.Fatal(err)
	}
	complete(inactive)
	if err := store.SetDocumentAvailability(ctx, inactive, false); err != nil {
		t.Fatal(err)
	}

	return visible
}

// TestPostgresVectorSearch pins the production retrieval path: cosine
// ranking through the hnsw index, ts_rank_cd keyword scoring over the
// generated tsvector column, and filters pushed into SQL. The SQLite
// surrogate approximates these; this is the behavior that ships.
func TestPostgresVectorSearch(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	visibleDoc := seedPostgresCorpus(t, store)

	t.Run("semantic ranks through the ann index", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, VectorSearchRequest{
			Embedding: axisVec(0),
			TopK:      10,
			Mode:      SearchModeSemantic,
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 visible chunks, got %d", len(results))
		}
		order := []string{"the quick brown fox", "jumps over the fence", "lazy dog sleeps"}
		for i, want := range order {
			if results[i].Content != want {
				t.Errorf("position %d: expected %q, got %q", i, want, results[i].Content)
			}
		}
		if results[0].Score < 0.99 {
			t.Errorf("expected identical vector to score ~1, got %f", results[0].Score)
		}
		if math.Abs(results[1].Score-0.7071) > 0.001 {
			t.Errorf("expected mixed vector to score ~0.7071, got %f", results[1].Score)
		}
		if results[2].Score > 0.01 {
			t.Errorf("expected orthogonal vector to score ~0, got %f", results[2].Score)
		}
		if results[0].DocumentID != visibleDoc {
			t.Errorf("expected visible document, got %s", results[0].DocumentID)
		}
		if len(results[0].Breadcrumbs) != 2 || results[0].Breadcrumbs[0] != "Animals" {
			t.Error("expected breadcrumbs decoded from jsonb")
		}
		if results[0].VectorScore != nil {
			t.Error("expected no component scores in semantic mode")
		}
	})

	t.Run("keyword ranking stems through english config", func(t *testing.T) {
		// "sleeping dogs" stems to 'sleep & dog', which matches "lazy
		// dog sleeps" and nothing else. The in-memory surrogate would
		// miss this; only real tsquery stemming finds it.
		results, err := store.VectorSearch(ctx, VectorSearchRequest{
			Embedding: axisVec(0),
			Query:     "sleeping dogs",
			TopK:      10,
			Mode:      SearchModeHybrid,
			Alpha:     0,
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		if results[0].Content != "lazy dog sleeps" {
			t.Errorf("expected stemmed keyword match first at alpha 0, got %q", results[0].Content)
		}
		if results[0].KeywordScore == nil || *results[0].KeywordScore <= 0 || *results[0].KeywordScore >= 1 {
			t.Fatalf("expected ts_rank_cd score in (0,1), got %v", results[0].KeywordScore)
		}
		if *results[0].VectorScore > 0.01 {
			t.Errorf("expected orthogonal vector component ~0, got %f", *results[0].VectorScore)
		}
	})

	t.Run("hybrid blends components by alpha", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, VectorSearchRequest{
			Embedding: axisVec(0),
			Query:     "sleeping dogs",
			TopK:      10,
			Mode:      SearchModeHybrid,
			Alpha:     0.5,
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 3 {
			t.Fatalf("expected 3 results, got %d", len(results))
		}
		// ts_rank_cd scores sit well below 0.5, so the vector side
		// dominates at alpha 0.5 and the pure-vector order holds.
		if results[0].Content != "the quick brown fox" {
			t.Errorf("expected vector order at alpha 0.5, got %q first", results[0].Content)
		}
		for _, r := range results {
			if r.VectorScore == nil || r.KeywordScore == nil {
				t.Fatal("expected component scores in hybrid mode")
			}
			want := 0.5*(*r.VectorScore) + 0.5*(*r.KeywordScore)
			if math.Abs(r.Score-want) > 1e-6 {
				t.Errorf("chunk %q: score %f does not match blend %f", r.Content, r.Score, want)
			}
		}
	})

	t.Run("jsonb breadcrumbs filter", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, VectorSearchRequest{
			Embedding:          axisVec(0),
			TopK:               10,
			Mode:               SearchModeSemantic,
			BreadcrumbsContain: "Mammals",
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 1 || results[0].Content != "the quick brown fox" {
			t.Error("expected only breadcrumbed chunk")
		}
	})

	t.Run("quality and type filters", func(t *testing.T) {
		min := 0.5
		results, err := store.VectorSearch(ctx, VectorSearchRequest{
			Embedding:       axisVec(0),
			TopK:            10,
			Mode:            SearchModeSemantic,
			MinQualityScore: &min,
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 2 {
			t.Errorf("expected 2 chunks above quality 0.5, got %d", len(results))
		}

		results, err = store.VectorSearch(ctx, VectorSearchRequest{
			Embedding:  axisVec(0),
			TopK:       10,
			Mode:       SearchModeSemantic,
			ChunkTypes: []string{"table"},
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 1 || results[0].ChunkType != "table" {
			t.Error("expected only table chunk")
		}
	})

	t.Run("visibility excludes pending and inactive", func(t *testing.T) {
		// Query along axis 1, where both hidden chunks sit exactly.
		results, err := store.VectorSearch(ctx, VectorSearchRequest{
			Embedding: axisVec(1),
			TopK:      10,
			Mode:      SearchModeSemantic,
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		for _, r := range results {
			if r.DocumentID != visibleDoc {
				t.Errorf("hidden document %s surfaced in results", r.DocumentID)
			}
		}
		if len(results) != 3 {
			t.Errorf("expected only the 3 visible chunks, got %d", len(results))
		}
	})

	t.Run("topk bounds results", func(t *testing.T) {
		results, err := store.VectorSearch(ctx, VectorSearchRequest{
			Embedding: axisVec(0),
			TopK:      1,
			Mode:      SearchModeSemantic,
		})
		if err != nil {
			t.Fatalf("search failed: %v", err)
		}
		if len(results) != 1 || results[0].Content != "the quick brown fox" {
			t.Error("expected single closest chunk")
		}
	})

	t.Run("dimension mismatch rejected before sql", func(t *testing.T) {
		_, err := store.VectorSearch(ctx, VectorSearchRequest{
			Embedding: []float32{1, 0},
			TopK:      5,
			Mode:      SearchModeSemantic,
		})
		if !errors.Is(err, models.ErrDimensionMismatch) {
			t.Errorf("expected ErrDimensionMismatch, got %v", err)
		}
	})
}

// TestPostgresSchema covers the constraints the migration owns: the
// pinned vector dimension, unique indexes, jsonb columns, and the
// upsert and cascade paths that behave differently on Postgres.
func TestPostgresSchema(t *testing.T) {
	store := setupPostgresStore(t)
	ctx := context.Background()
	profileID := seedProfile(t, store)

	t.Run("rejects mismatched vector dimension config", func(t *testing.T) {
		harness := startPostgres(t)
		_, err := New(&Config{
			Type:             DatabaseTypePostgres,
			Postgres:         harness.config,
			VectorDimensions: 64,
		})
		if err == nil {
			t.Fatal("expected dimension mismatch against migrated column")
		}
		if !strings.Contains(err.Error(), "dimension") {
			t.Errorf("expected dimension error, got %v", err)
		}
	})

	t.Run("unique hash and source enforced by index", func(t *testing.T) {
		if _, err := store.CreateDocument(ctx, testDocument(profileID, "aaaa9999aaaa9999aaaa9999aaaa9999")); err != nil {
			t.Fatalf("failed to create document: %v", err)
		}
		_, err := store.CreateDocument(ctx, testDocument(profileID, "aaaa9999aaaa9999aaaa9999aaaa9999"))
		if !errors.Is(err, models.ErrDuplicateDocument) {
			t.Errorf("expected ErrDuplicateDocument, got %v", err)
		}

		other := testDocument(profileID, "aaaa9999aaaa9999aaaa9999aaaa9999")
		other.Source = string(models.SourceExternal)
		if _, err := store.CreateDocument(ctx, other); err != nil {
			t.Errorf("expected distinct source to succeed: %v", err)
		}
	})

	t.Run("unique profile name enforced by index", func(t *testing.T) {
		profile := &models.ProcessingProfile{Name: "Conformance"}
		if err := profile.SetConfig(models.DefaultProfileConfig()); err != nil {
			t.Fatal(err)
		}
		if _, err := store.CreateProfile(ctx, profile); err != nil {
			t.Fatalf("failed to create profile: %v", err)
		}

		dup := &models.ProcessingProfile{Name: "Conformance"}
		if err := dup.SetConfig(models.DefaultProfileConfig()); err != nil {
			t.Fatal(err)
		}
		_, err := store.CreateProfile(ctx, dup)
		if !errors.Is(err, models.ErrDuplicateProfile) {
			t.Errorf("expected ErrDuplicateProfile, got %v", err)
		}
	})

	t.Run("chunk roundtrip preserves structured columns", func(t *testing.T) {
		docID, err := store.CreateDocument(ctx, testDocument(profileID, "bbbb9999bbbb9999bbbb9999bbbb9999"))
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}

		heading := "Results"
		page := 3
		chunk := &models.Chunk{
			ChunkIndex:   0,
			Content:      "measured throughput",
			Embedding:    embedding(axisVec(2)...),
			Heading:      &heading,
			TokenCount:   12,
			QualityScore: 0.8,
			HasTitle:     true,
			Completeness: "complete",
		}
		if err := chunk.SetLocation(&models.ChunkLocation{Page: &page}); err != nil {
			t.Fatal(err)
		}
		if err := chunk.SetBreadcrumbs([]string{"Report", "Results"}); err != nil {
			t.Fatal(err)
		}
		if err := chunk.SetQualityFlags([]string{"short"}); err != nil {
			t.Fatal(err)
		}
		if err := store.ReplaceChunks(ctx, docID, []*models.Chunk{chunk}); err != nil {
			t.Fatalf("failed to insert chunk: %v", err)
		}

		got, err := store.ListChunks(ctx, docID)
		if err != nil {
			t.Fatalf("failed to list chunks: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 chunk, got %d", len(got))
		}
		if got[0].Heading == nil || *got[0].Heading != "Results" {
			t.Error("expected heading preserved")
		}
		loc, err := got[0].GetLocation()
		if err != nil || loc == nil || loc.Page == nil || *loc.Page != 3 {
			t.Errorf("expected page location preserved, got %v (%v)", loc, err)
		}
		crumbs, err := got[0].GetBreadcrumbs()
		if err != nil || len(crumbs) != 2 || crumbs[1] != "Results" {
			t.Errorf("expected breadcrumbs preserved, got %v (%v)", crumbs, err)
		}
		flags, err := got[0].GetQualityFlags()
		if err != nil || len(flags) != 1 || flags[0] != "short" {
			t.Errorf("expected quality flags preserved, got %v (%v)", flags, err)
		}
		if len(got[0].Embedding.Slice()) != DefaultVectorDimensions {
			t.Errorf("expected full embedding back, got %d dims", len(got[0].Embedding.Slice()))
		}
	})

	t.Run("metrics upsert uses on conflict", func(t *testing.T) {
		docID, err := store.CreateDocument(ctx, testDocument(profileID, "cccc9999cccc9999cccc9999cccc9999"))
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}
		if err := store.UpsertMetrics(ctx, &models.ProcessingMetrics{DocumentID: docID, TotalChunks: 3}); err != nil {
			t.Fatalf("failed to upsert: %v", err)
		}
		if err := store.UpsertMetrics(ctx, &models.ProcessingMetrics{DocumentID: docID, TotalChunks: 7}); err != nil {
			t.Fatalf("failed to re-upsert: %v", err)
		}
		metrics, err := store.GetMetrics(ctx, docID)
		if err != nil {
			t.Fatalf("failed to get metrics: %v", err)
		}
		if metrics.TotalChunks != 7 {
			t.Errorf("expected overwritten metrics, got %d", metrics.TotalChunks)
		}
	})

	t.Run("cascade delete removes dependents", func(t *testing.T) {
		path := "ab/abcdef"
		doc := testDocument(profileID, "dddd9999dddd9999dddd9999dddd9999")
		doc.StoragePath = &path
		docID, err := store.CreateDocument(ctx, doc)
		if err != nil {
			t.Fatalf("failed to create document: %v", err)
		}
		if err := store.ReplaceChunks(ctx, docID, []*models.Chunk{
			{ChunkIndex: 0, Content: "x", Embedding: embedding(axisVec(0)...)},
		}); err != nil {
			t.Fatalf("failed to insert chunks: %v", err)
		}
		if err := store.UpsertMetrics(ctx, &models.ProcessingMetrics{DocumentID: docID, TotalChunks: 1}); err != nil {
			t.Fatalf("failed to upsert metrics: %v", err)
		}

		storagePath, err := store.DeleteDocumentCascade(ctx, docID)
		if err != nil {
			t.Fatalf("failed to cascade delete: %v", err)
		}
		if storagePath == nil || *storagePath != path {
			t.Error("expected storage path returned for unlink")
		}
		if count, _ := store.CountChunks(ctx, docID); count != 0 {
			t.Errorf("expected chunks removed, got %d", count)
		}
		if _, err := store.GetMetrics(ctx, docID); !errors.Is(err, models.ErrMetricsNotFound) {
			t.Errorf("expected metrics removed, got %v", err)
		}
	})
}
