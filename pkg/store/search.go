package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pgvector/pgvector-go"

	"github.com/quernlabs/quern/pkg/models"
)

// defaultTopK is the result count when the request leaves TopK unset.
const defaultTopK = 5

// hybridCandidatePool bounds the vector-ordered candidate set that
// hybrid mode re-ranks. The ANN index drives the inner query; combined
// scoring happens over this pool only.
const hybridCandidatePool = 50

// VectorSearch runs a ranked retrieval over visible chunks. Visibility
// is fixed: only chunks whose document is COMPLETED and active match.
//
// On PostgreSQL ranking runs in SQL against the pgvector column and the
// generated tsvector column. On SQLite, which has neither, the visible
// chunks are scored in memory; that backend is meant for development
// and tests, not large corpora.
func (s *GORMStore) VectorSearch(ctx context.Context, req VectorSearchRequest) ([]*SearchResult, error) {
	if len(req.Embedding) != s.config.VectorDimensions {
		return nil, fmt.Errorf("query embedding has %d dimensions, store expects %d: %w",
			len(req.Embedding), s.config.VectorDimensions, models.ErrDimensionMismatch)
	}
	if req.TopK <= 0 {
		req.TopK = defaultTopK
	}
	if req.Mode == "" {
		req.Mode = SearchModeSemantic
	}
	if !req.Mode.IsValid() {
		return nil, fmt.Errorf("unsupported search mode %q", req.Mode)
	}

	if s.isPostgres() {
		return s.searchPostgres(ctx, req)
	}
	return s.searchSQLite(ctx, req)
}

// searchRow is the scan target shared by both SQL paths.
type searchRow struct {
	ChunkID      string
	DocumentID   string
	Filename     string
	ChunkIndex   int
	Content      string
	Heading      *string
	Location     string
	Breadcrumbs  string
	ChunkType    string
	QualityScore float64
	VectorScore  float64
	KeywordScore float64
}

func (s *GORMStore) searchPostgres(ctx context.Context, req VectorSearchRequest) ([]*SearchResult, error) {
	vec := pgvector.NewVector(req.Embedding)

	var filterSQL strings.Builder
	filterArgs := []any{}
	if req.BreadcrumbsContain != "" {
		// jsonb_exists instead of the ? operator, which would collide
		// with placeholder substitution.
		filterSQL.WriteString(" AND jsonb_exists(c.breadcrumbs, ?)")
		filterArgs = append(filterArgs, req.BreadcrumbsContain)
	}
	if req.MinQualityScore != nil {
		filterSQL.WriteString(" AND c.quality_score >= ?")
		filterArgs = append(filterArgs, *req.MinQualityScore)
	}
	if len(req.ChunkTypes) > 0 {
		filterSQL.WriteString(" AND c.chunk_type IN ?")
		filterArgs = append(filterArgs, req.ChunkTypes)
	}

	var rows []searchRow
	switch req.Mode {
	case SearchModeSemantic:
		query := `
			SELECT c.id AS chunk_id, c.document_id, d.filename, c.chunk_index, c.content,
			       c.heading, c.location, c.breadcrumbs::text AS breadcrumbs, c.chunk_type, c.quality_score,
			       1 - (c.embedding <=> ?) AS vector_score
			FROM chunks c
			JOIN documents d ON d.id = c.document_id
			WHERE d.status = ? AND d.is_active = true` + filterSQL.String() + `
			ORDER BY c.embedding <=> ?
			LIMIT ?`
		args := append([]any{vec, string(models.StatusCompleted)}, filterArgs...)
		args = append(args, vec, req.TopK)
		if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
			return nil, err
		}
		results := make([]*SearchResult, 0, len(rows))
		for i := range rows {
			results = append(results, rowToResult(&rows[i], rows[i].VectorScore, false))
		}
		return results, nil

	case SearchModeHybrid:
		pool := hybridCandidatePool
		if req.TopK > pool {
			pool = req.TopK
		}
		// Inner query walks the ANN index; the outer re-ranks the pool
		// by the convex combination. ts_rank_cd flag 32 maps the rank
		// into [0,1) so both components share a scale.
		query := `
			SELECT * FROM (
				SELECT c.id AS chunk_id, c.document_id, d.filename, c.chunk_index, c.content,
				       c.heading, c.location, c.breadcrumbs::text AS breadcrumbs, c.chunk_type, c.quality_score,
				       1 - (c.embedding <=> ?) AS vector_score,
				       ts_rank_cd(c.search_vector, plainto_tsquery('english', ?), 32) AS keyword_score
				FROM chunks c
				JOIN documents d ON d.id = c.document_id
				WHERE d.status = ? AND d.is_active = true` + filterSQL.String() + `
				ORDER BY c.embedding <=> ?
				LIMIT ?
			) pool
			ORDER BY ? * vector_score + (1 - ?) * keyword_score DESC
			LIMIT ?`
		args := append([]any{vec, req.Query, string(models.StatusCompleted)}, filterArgs...)
		args = append(args, vec, pool, req.Alpha, req.Alpha, req.TopK)
		if err := s.db.WithContext(ctx).Raw(query, args...).Scan(&rows).Error; err != nil {
			return nil, err
		}
		results := make([]*SearchResult, 0, len(rows))
		for i := range rows {
			score := req.Alpha*rows[i].VectorScore + (1-req.Alpha)*rows[i].KeywordScore
			results = append(results, rowToResult(&rows[i], score, true))
		}
		return results, nil
	}
	return nil, fmt.Errorf("unsupported search mode %q", req.Mode)
}

// searchSQLite scores the visible chunk set in memory. Cheap filters run
// in SQL; cosine similarity and the keyword surrogate run in Go.
func (s *GORMStore) searchSQLite(ctx context.Context, req VectorSearchRequest) ([]*SearchResult, error) {
	q := s.db.WithContext(ctx).
		Table("chunks c").
		Select("c.id AS chunk_id, c.document_id, d.filename, c.chunk_index, c.content, "+
			"c.heading, c.location, c.breadcrumbs, c.chunk_type, c.quality_score, c.embedding").
		Joins("JOIN documents d ON d.id = c.document_id").
		Where("d.status = ? AND d.is_active = ?", string(models.StatusCompleted), true)
	if req.MinQualityScore != nil {
		q = q.Where("c.quality_score >= ?", *req.MinQualityScore)
	}
	if len(req.ChunkTypes) > 0 {
		q = q.Where("c.chunk_type IN ?", req.ChunkTypes)
	}

	var rows []struct {
		ChunkID      string
		DocumentID   string
		Filename     string
		ChunkIndex   int
		Content      string
		Heading      *string
		Location     string
		Breadcrumbs  string
		ChunkType    string
		QualityScore float64
		Embedding    pgvector.Vector
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}

	queryTerms := tokenize(req.Query)
	results := make([]*SearchResult, 0, len(rows))
	for i := range rows {
		r := &rows[i]

		if req.BreadcrumbsContain != "" && !breadcrumbsContain(r.Breadcrumbs, req.BreadcrumbsContain) {
			continue
		}

		row := searchRow{
			ChunkID:      r.ChunkID,
			DocumentID:   r.DocumentID,
			Filename:     r.Filename,
			ChunkIndex:   r.ChunkIndex,
			Content:      r.Content,
			Heading:      r.Heading,
			Location:     r.Location,
			Breadcrumbs:  r.Breadcrumbs,
			ChunkType:    r.ChunkType,
			QualityScore: r.QualityScore,
			VectorScore:  cosineSimilarity(req.Embedding, r.Embedding.Slice()),
		}
		var score float64
		hybrid := req.Mode == SearchModeHybrid
		if hybrid {
			row.KeywordScore = keywordOverlap(queryTerms, r.Content)
			score = req.Alpha*row.VectorScore + (1-req.Alpha)*row.KeywordScore
		} else {
			score = row.VectorScore
		}
		results = append(results, rowToResult(&row, score, hybrid))
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if len(results) > req.TopK {
		results = results[:req.TopK]
	}
	return results, nil
}

// rowToResult converts a scanned row into the API result shape. JSON
// columns that fail to parse are surfaced as empty rather than failing
// the whole search.
func rowToResult(row *searchRow, score float64, hybrid bool) *SearchResult {
	result := &SearchResult{
		ChunkID:      row.ChunkID,
		DocumentID:   row.DocumentID,
		Filename:     row.Filename,
		ChunkIndex:   row.ChunkIndex,
		Content:      row.Content,
		Heading:      row.Heading,
		ChunkType:    row.ChunkType,
		QualityScore: row.QualityScore,
		Score:        score,
	}

	chunk := models.Chunk{Location: row.Location, Breadcrumbs: row.Breadcrumbs}
	if loc, err := chunk.GetLocation(); err == nil {
		result.Location = loc
	}
	if crumbs, err := chunk.GetBreadcrumbs(); err == nil {
		result.Breadcrumbs = crumbs
	}

	if hybrid {
		v := row.VectorScore
		k := row.KeywordScore
		result.VectorScore = &v
		result.KeywordScore = &k
	}
	return result
}

// cosineSimilarity returns the cosine of the angle between a and b, or
// zero when either vector has no magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// tokenize lowercases and splits query text on non-letter, non-digit runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}

// keywordOverlap is the SQLite keyword surrogate: the fraction of query
// terms present in the chunk content, in [0,1].
func keywordOverlap(queryTerms []string, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	lower := strings.ToLower(content)
	matched := 0
	for _, term := range queryTerms {
		if strings.Contains(lower, term) {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

// breadcrumbsContain reports whether the serialized breadcrumb array
// holds the given element.
func breadcrumbsContain(serialized, needle string) bool {
	chunk := models.Chunk{Breadcrumbs: serialized}
	crumbs, err := chunk.GetBreadcrumbs()
	if err != nil {
		return false
	}
	for _, crumb := range crumbs {
		if crumb == needle {
			return true
		}
	}
	return false
}
