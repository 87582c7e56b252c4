package apiclient

import (
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Document is one ingested document as the API reports it. ChunkCount is
// only populated by the detail endpoint.
type Document struct {
	ID               string     `json:"id"`
	Filename         string     `json:"filename"`
	MIMEType         string     `json:"mimeType,omitempty"`
	FileSize         int64      `json:"fileSize"`
	Format           string     `json:"format"`
	FormatCategory   *string    `json:"formatCategory,omitempty"`
	ContentHash      string     `json:"contentHash"`
	Source           string     `json:"source"`
	Status           string     `json:"status"`
	IsActive         bool       `json:"isActive"`
	ConnectionState  string     `json:"connectionState"`
	FailReason       *string    `json:"failReason,omitempty"`
	RetryCount       int        `json:"retryCount"`
	PageCount        *int       `json:"pageCount,omitempty"`
	OCRApplied       bool       `json:"ocrApplied"`
	ProcessingTimeMs *int64     `json:"processingTimeMs,omitempty"`
	ProfileID        string     `json:"profileId"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	ProcessedAt      *time.Time `json:"processedAt,omitempty"`
	ChunkCount       int64      `json:"chunkCount,omitempty"`
}

// DocumentList is a page of documents plus corpus-wide status counts.
type DocumentList struct {
	Documents []Document       `json:"documents"`
	Total     int64            `json:"total"`
	Counts    map[string]int64 `json:"counts"`
}

// ChunkLocation points a chunk back into its source document.
type ChunkLocation struct {
	Page    *int    `json:"page,omitempty"`
	Slide   *int    `json:"slide,omitempty"`
	Sheet   *string `json:"sheet,omitempty"`
	Chapter *string `json:"chapter,omitempty"`
}

// Chunk is one retrieval chunk with its parsed metadata.
type Chunk struct {
	ID           string         `json:"id"`
	DocumentID   string         `json:"documentId"`
	ChunkIndex   int            `json:"chunkIndex"`
	Content      string         `json:"content"`
	CharStart    *int           `json:"charStart,omitempty"`
	CharEnd      *int           `json:"charEnd,omitempty"`
	Heading      *string        `json:"heading,omitempty"`
	Location     *ChunkLocation `json:"location,omitempty"`
	Breadcrumbs  []string       `json:"breadcrumbs,omitempty"`
	TokenCount   int            `json:"tokenCount"`
	QualityScore float64        `json:"qualityScore"`
	QualityFlags []string       `json:"qualityFlags,omitempty"`
	ChunkType    string         `json:"chunkType"`
	Completeness string         `json:"completeness,omitempty"`
	HasTitle     bool           `json:"hasTitle"`
}

// DocumentContent is the structured content view of a completed document.
type DocumentContent struct {
	DocumentID string  `json:"documentId"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Chunks     []Chunk `json:"chunks"`
}

// BulkResult reports a bulk operation: how many documents changed and which
// IDs were skipped, with a reason per skip.
type BulkResult struct {
	Updated int           `json:"updated"`
	Failed  []BulkFailure `json:"failed"`
}

// BulkFailure is one skipped ID in a bulk operation.
type BulkFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ListDocumentsOptions filters and pages the document listing. Zero values
// are omitted from the query string.
type ListDocumentsOptions struct {
	Status          string
	IsActive        *bool
	ConnectionState string
	SourceType      string
	Format          string
	FormatCategory  string
	Search          string
	SortBy          string
	SortOrder       string
	Limit           int
	Offset          int
}

func (o *ListDocumentsOptions) query() string {
	if o == nil {
		return ""
	}
	q := url.Values{}
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("status", o.Status)
	set("connectionState", o.ConnectionState)
	set("sourceType", o.SourceType)
	set("format", o.Format)
	set("formatCategory", o.FormatCategory)
	set("search", o.Search)
	set("sortBy", o.SortBy)
	set("sortOrder", o.SortOrder)
	if o.IsActive != nil {
		q.Set("isActive", strconv.FormatBool(*o.IsActive))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListDocuments returns documents matching the options.
func (c *Client) ListDocuments(opts *ListDocumentsOptions) (*DocumentList, error) {
	return getResource[DocumentList](c, "/api/documents"+opts.query())
}

// GetDocument returns one document with its chunk count.
func (c *Client) GetDocument(id string) (*Document, error) {
	return getResource[Document](c, resourcePath("/api/documents/%s", url.PathEscape(id)))
}

// UploadDocument uploads a file for ingestion and returns the accepted document.
func (c *Client) UploadDocument(filename string, content io.Reader) (*Document, error) {
	var doc Document
	if err := c.doMultipartFile("/api/documents", filename, content, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// GetDocumentContent returns the processed content of a completed document
// with its chunk inventory.
func (c *Client) GetDocumentContent(id string) (*DocumentContent, error) {
	return getResource[DocumentContent](c, resourcePath("/api/documents/%s/content?format=json", url.PathEscape(id)))
}

// GetDocumentMarkdown returns the processed content as raw markdown.
func (c *Client) GetDocumentMarkdown(id string) (string, error) {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+resourcePath("/api/documents/%s/content", url.PathEscape(id)), nil)
	if err != nil {
		return "", err
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", decodeAPIError(resp.StatusCode, body)
	}
	return string(body), nil
}

// SetDocumentAvailability toggles whether a document is served by search.
func (c *Client) SetDocumentAvailability(id string, active bool) (*Document, error) {
	var doc Document
	body := map[string]bool{"isActive": active}
	if err := c.patch(resourcePath("/api/documents/%s/availability", url.PathEscape(id)), body, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document and its chunks.
func (c *Client) DeleteDocument(id string) error {
	return c.delete(resourcePath("/api/documents/%s", url.PathEscape(id)), nil)
}

// RetryDocument re-enqueues a failed document for processing.
func (c *Client) RetryDocument(id string) (*Document, error) {
	var doc Document
	if err := c.post(resourcePath("/api/documents/%s/retry", url.PathEscape(id)), nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// BulkSetAvailability toggles availability for many documents at once.
func (c *Client) BulkSetAvailability(ids []string, active bool) (*BulkResult, error) {
	var result BulkResult
	body := map[string]any{"documentIds": ids, "isActive": active}
	if err := c.patch("/api/documents/bulk/availability", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// BulkDeleteDocuments removes many documents at once.
func (c *Client) BulkDeleteDocuments(ids []string) (*BulkResult, error) {
	var result BulkResult
	body := map[string]any{"documentIds": ids}
	if err := c.post("/api/documents/bulk/delete", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
