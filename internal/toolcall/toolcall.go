// Package toolcall binds the RAG facade's operations onto the Model
// Context Protocol tool-call surface: upload_file, list_files,
// search_documents, get_server_status, force_reindex.
package toolcall

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ragforge/corerag/internal/config"
	corerrors "github.com/ragforge/corerag/internal/errors"
	"github.com/ragforge/corerag/internal/rag"
	"github.com/ragforge/corerag/internal/search"
	"github.com/ragforge/corerag/pkg/version"
)

// Server bridges the RAG facade to MCP tool calls over stdio.
type Server struct {
	mcp     *mcp.Server
	facade  *rag.Facade
	cfg     *config.Config
	logger  *slog.Logger
	startAt time.Time
}

// New wires the five tool-call operations onto an mcp.Server.
func New(facade *rag.Facade, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		facade:  facade,
		cfg:     cfg,
		logger:  logger,
		startAt: time.Now(),
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    cfg.ServerName,
		Version: version.Version,
	}, nil)

	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "upload_file",
		Description: "Save a file into the document store and index it for search.",
	}, s.handleUploadFile)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_files",
		Description: "List indexed documents, optionally filtered by file type and paginated.",
	}, s.handleListFiles)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "search_documents",
		Description: "Run a semantic, keyword, or hybrid search over the indexed documents.",
	}, s.handleSearchDocuments)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_server_status",
		Description: "Report server health, uptime, and document counts.",
	}, s.handleGetServerStatus)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "force_reindex",
		Description: "Re-synchronize the index against the documents directory.",
	}, s.handleForceReindex)
}

// Serve runs the server over stdio until ctx is canceled.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// UploadFileInput is the upload_file tool's argument.
type UploadFileInput struct {
	Content  []byte `json:"content" jsonschema:"raw file bytes"`
	FileName string `json:"file_name" jsonschema:"destination file name"`
}

// OKResult is the {ok, message} result shape shared by upload_file and force_reindex.
type OKResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func (s *Server) handleUploadFile(ctx context.Context, req *mcp.CallToolRequest, in UploadFileInput) (*mcp.CallToolResult, OKResult, error) {
	if strings.TrimSpace(in.FileName) == "" {
		return nil, OKResult{}, corerrors.Validation(corerrors.CodeUnknownOption, "file_name is required", nil)
	}

	dest := filepath.Join(s.cfg.DocumentsDir, filepath.Base(in.FileName))
	if err := os.MkdirAll(s.cfg.DocumentsDir, 0o755); err != nil {
		return nil, OKResult{}, corerrors.FileProcessing(corerrors.CodeFileUnreadable, "create documents dir", err)
	}
	if err := os.WriteFile(dest, in.Content, 0o644); err != nil {
		return nil, OKResult{}, corerrors.FileProcessing(corerrors.CodeFileUnreadable, "write uploaded file", err)
	}

	if err := s.facade.AddDocuments(ctx, []string{dest}); err != nil {
		return nil, OKResult{OK: false, Message: err.Error()}, nil
	}
	return nil, OKResult{OK: true, Message: "indexed " + in.FileName}, nil
}

// ListFilesInput is the list_files tool's argument.
type ListFilesInput struct {
	FileType string `json:"file_type,omitempty" jsonschema:"filter by extension, e.g. .md"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of entries, default 50"`
	Offset   int    `json:"offset,omitempty" jsonschema:"pagination offset"`
}

// FileEntry is one row of the list_files result.
type FileEntry struct {
	DocID      string `json:"doc_id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	UploadedAt int64  `json:"uploaded_at"`
}

// ListFilesOutput is the list_files tool's result.
type ListFilesOutput struct {
	Files []FileEntry `json:"files"`
}

func (s *Server) handleListFiles(ctx context.Context, req *mcp.CallToolRequest, in ListFilesInput) (*mcp.CallToolResult, ListFilesOutput, error) {
	docs, err := s.facade.ListDocuments(ctx)
	if err != nil {
		return nil, ListFilesOutput{}, err
	}

	entries := make([]FileEntry, 0, len(docs))
	for docID, meta := range docs {
		ext := strings.ToLower(filepath.Ext(meta.FilePath))
		if in.FileType != "" && ext != strings.ToLower(in.FileType) {
			continue
		}
		entries = append(entries, FileEntry{
			DocID:      docID,
			Name:       meta.FileName,
			Path:       meta.FilePath,
			Type:       ext,
			Size:       meta.FileSize,
			UploadedAt: meta.FileModTime,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].DocID < entries[j].DocID })

	limit := in.Limit
	if limit <= 0 {
		limit = 50
	}
	start := in.Offset
	if start > len(entries) {
		start = len(entries)
	}
	end := start + limit
	if end > len(entries) {
		end = len(entries)
	}

	return nil, ListFilesOutput{Files: entries[start:end]}, nil
}

// SearchDocumentsInput is the search_documents tool's argument.
type SearchDocumentsInput struct {
	Query          string   `json:"query" jsonschema:"the search query"`
	TopK           int      `json:"top_k,omitempty" jsonschema:"maximum number of results"`
	Semantic       bool     `json:"semantic,omitempty" jsonschema:"force semantic-only search"`
	Hybrid         bool     `json:"hybrid,omitempty" jsonschema:"force hybrid search"`
	SemanticWeight float64  `json:"semantic_weight,omitempty" jsonschema:"unused placeholder for weighted fusion tuning"`
	FileTypes      []string `json:"file_types,omitempty" jsonschema:"filter results by file extension"`
}

// SearchResultEntry is one ranked hit in a search_documents result.
type SearchResultEntry struct {
	DocID    string  `json:"doc_id"`
	Ordinal  int     `json:"ordinal"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
	FileName string  `json:"file_name"`
	FilePath string  `json:"file_path"`
}

// SearchDocumentsOutput is the search_documents tool's result.
type SearchDocumentsOutput struct {
	Results []SearchResultEntry `json:"results"`
	Total   int                 `json:"total"`
}

func (s *Server) handleSearchDocuments(ctx context.Context, req *mcp.CallToolRequest, in SearchDocumentsInput) (*mcp.CallToolResult, SearchDocumentsOutput, error) {
	searchType := search.TypeKeyword
	switch {
	case in.Hybrid:
		searchType = search.TypeHybrid
	case in.Semantic:
		searchType = search.TypeSemantic
	}

	topK := in.TopK
	if topK <= 0 {
		topK = s.cfg.TopKDefault
	}

	results, err := s.facade.Search(ctx, in.Query, search.Options{TopK: topK, Type: searchType})
	if err != nil {
		return nil, SearchDocumentsOutput{}, err
	}

	typeFilter := make(map[string]struct{}, len(in.FileTypes))
	for _, t := range in.FileTypes {
		typeFilter[strings.ToLower(t)] = struct{}{}
	}

	out := make([]SearchResultEntry, 0, len(results))
	for _, r := range results {
		if len(typeFilter) > 0 {
			ext := strings.ToLower(filepath.Ext(r.Record.Metadata.FilePath))
			if _, ok := typeFilter[ext]; !ok {
				continue
			}
		}
		out = append(out, SearchResultEntry{
			DocID:    r.Record.DocID,
			Ordinal:  r.Record.Ordinal,
			Text:     r.Record.Text,
			Score:    r.Score,
			FileName: r.Record.Metadata.FileName,
			FilePath: r.Record.Metadata.FilePath,
		})
	}

	return nil, SearchDocumentsOutput{Results: out, Total: len(out)}, nil
}

// GetServerStatusInput is the (parameter-less) get_server_status argument.
type GetServerStatusInput struct{}

// GetServerStatusOutput is the get_server_status tool's result.
type GetServerStatusOutput struct {
	Status          string   `json:"status"`
	UptimeSeconds   int64    `json:"uptime_s"`
	DocumentsCount  int      `json:"documents_count"`
	ModelsLoaded    []string `json:"models_loaded"`
}

func (s *Server) handleGetServerStatus(ctx context.Context, req *mcp.CallToolRequest, in GetServerStatusInput) (*mcp.CallToolResult, GetServerStatusOutput, error) {
	info, err := s.facade.Info(ctx)
	if err != nil {
		return nil, GetServerStatusOutput{}, err
	}

	status := "ready"
	if info.State != rag.StateReady || !info.VectorStoreOK || !info.EmbeddingClientOK {
		status = "degraded"
	}

	var models []string
	if info.EmbeddingClientOK {
		models = []string{s.cfg.EmbeddingModel}
	}

	return nil, GetServerStatusOutput{
		Status:         status,
		UptimeSeconds:  int64(time.Since(s.startAt).Seconds()),
		DocumentsCount: info.DocumentCount,
		ModelsLoaded:   models,
	}, nil
}

// ForceReindexInput is the force_reindex tool's argument.
type ForceReindexInput struct {
	ClearCache bool `json:"clear_cache,omitempty" jsonschema:"drop all records before resyncing"`
}

func (s *Server) handleForceReindex(ctx context.Context, req *mcp.CallToolRequest, in ForceReindexInput) (*mcp.CallToolResult, OKResult, error) {
	if in.ClearCache {
		if err := s.facade.ClearAll(ctx); err != nil {
			return nil, OKResult{OK: false, Message: err.Error()}, nil
		}
	}
	if err := s.facade.Sync(ctx, s.cfg.DocumentsDir); err != nil {
		return nil, OKResult{OK: false, Message: err.Error()}, nil
	}
	return nil, OKResult{OK: true, Message: "reindex complete"}, nil
}
