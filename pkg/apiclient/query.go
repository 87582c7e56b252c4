package apiclient

// QueryRequest is a search request. Nil TopK and Alpha take the server
// defaults; Mode is "semantic" or "hybrid".
type QueryRequest struct {
	Query   string        `json:"query"`
	TopK    *int          `json:"topK,omitempty"`
	Mode    string        `json:"mode,omitempty"`
	Alpha   *float64      `json:"alpha,omitempty"`
	Filters *QueryFilters `json:"filters,omitempty"`
}

// QueryFilters narrows a search to matching chunks.
type QueryFilters struct {
	BreadcrumbsContain string   `json:"breadcrumbsContain,omitempty"`
	MinQualityScore    *float64 `json:"minQualityScore,omitempty"`
	ChunkTypes         []string `json:"chunkTypes,omitempty"`
}

// SearchResult is one ranked chunk. Component scores are populated in
// hybrid mode only.
type SearchResult struct {
	ChunkID      string         `json:"chunkId"`
	DocumentID   string         `json:"documentId"`
	Filename     string         `json:"filename"`
	ChunkIndex   int            `json:"chunkIndex"`
	Content      string         `json:"content"`
	Heading      *string        `json:"heading,omitempty"`
	Location     *ChunkLocation `json:"location,omitempty"`
	Breadcrumbs  []string       `json:"breadcrumbs,omitempty"`
	ChunkType    string         `json:"chunkType"`
	QualityScore float64        `json:"qualityScore"`
	Score        float64        `json:"score"`
	VectorScore  *float64       `json:"vectorScore,omitempty"`
	KeywordScore *float64       `json:"keywordScore,omitempty"`
}

// QueryResponse carries the ranked results and the mode that actually ran.
// Alpha is echoed in hybrid mode.
type QueryResponse struct {
	Results []SearchResult `json:"results"`
	Mode    string         `json:"mode"`
	Alpha   *float64       `json:"alpha,omitempty"`
}

// Query runs a search against the chunk corpus.
func (c *Client) Query(req *QueryRequest) (*QueryResponse, error) {
	return createResource[QueryResponse](c, "/api/query", req)
}
