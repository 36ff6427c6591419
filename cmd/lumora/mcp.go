package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	lumora "github.com/jward/lumora"
	"github.com/jward/lumora/internal/errs"
	"github.com/jward/lumora/internal/tool"
)

var flagAutoIndex bool

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the tool surface over MCP stdio",
	Long:  "Registers the eight tool-surface operations as MCP tools and serves them over stdio for an editor or agent to call.",
	RunE:  runMCP,
}

func init() {
	mcpCmd.Flags().BoolVar(&flagAutoIndex, "auto-index", true, "run a full index before serving if the database is missing")
}

// mcpServer bundles the MCP server together with the adapter and engine it
// dispatches to, so tool handlers can close over s instead of globals.
type mcpServer struct {
	adapter *tool.Adapter
	engine  *lumora.Engine
	server  *mcp.Server
}

func runMCP(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errs.Wrap(errs.KindIO, "getwd", err)
	}
	repoRoot := findRepoRoot(cwd)
	dbPath := resolveDBPath(repoRoot)

	if _, statErr := os.Stat(dbPath); os.IsNotExist(statErr) {
		if !flagAutoIndex {
			return errs.Wrap(errs.KindIO, "open graph store", fmt.Errorf("database not found: %s (run 'lumora index' first, or pass --auto-index)", dbPath))
		}
		if mkErr := os.MkdirAll(filepath.Dir(dbPath), 0o755); mkErr != nil {
			return errs.Wrap(errs.KindIO, "create state dir", mkErr)
		}
		bootstrap, newErr := lumora.New(dbPath, repoRoot)
		if newErr != nil {
			return errs.Wrap(errs.KindIO, "open graph store", newErr)
		}
		if _, idxErr := bootstrap.IndexDirectory(cmd.Context(), true); idxErr != nil {
			bootstrap.Close()
			return errs.Wrap(errs.KindStore, "auto-index", idxErr)
		}
		bootstrap.Close()
	}

	engine, err := lumora.New(dbPath, repoRoot)
	if err != nil {
		return errs.Wrap(errs.KindIO, "open graph store", err)
	}
	defer engine.Close()

	s := &mcpServer{
		adapter: tool.New(lumora.NewRunner(engine)),
		engine:  engine,
		server:  mcp.NewServer(&mcp.Implementation{Name: "lumora", Version: "0.1.0"}, nil),
	}
	s.registerTools()

	return s.server.Run(cmd.Context(), &mcp.StdioTransport{})
}

func (s *mcpServer) registerTools() {
	listProps := map[string]*jsonschema.Schema{
		"limit":             {Type: "integer", Description: "pagination limit"},
		"offset":            {Type: "integer", Description: "pagination offset"},
		"order":             {Type: "string", Description: "score_desc|line_asc|line_desc"},
		"file_glob":         {Type: "string", Description: "restrict to files matching this glob"},
		"language":          {Type: "string", Description: "restrict to this language"},
		"max_age_hours":     {Type: "number", Description: "restrict to files indexed within this many hours"},
		"verbosity":         {Type: "string", Description: "compact|normal|debug"},
		"include_freshness": {Type: "boolean", Description: "include per-file indexed_at timestamps"},
	}
	withList := func(extra map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
		props := make(map[string]*jsonschema.Schema, len(listProps)+len(extra))
		for k, v := range listProps {
			props[k] = v
		}
		for k, v := range extra {
			props[k] = v
		}
		return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
	}

	s.server.AddTool(&mcp.Tool{
		Name:        "index_repository",
		Description: "Scan and (re)index the repository, extracting and resolving changed files.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"full": {Type: "boolean", Description: "treat every file as changed"},
			},
		},
	}, s.handleIndexRepository)

	s.server.AddTool(&mcp.Tool{
		Name:        "symbol_definitions",
		Description: "List Entities declared under a selector's name.",
		InputSchema: withList(map[string]*jsonschema.Schema{
			"selector": {Type: "string", Description: "file:<path> | symbol:<name> | symbol_name:<lang>:<name>"},
		}, "selector"),
	}, s.handleSymbolDefinitions)

	s.server.AddTool(&mcp.Tool{
		Name:        "symbol_references",
		Description: "List References whose target matches a selector.",
		InputSchema: withList(map[string]*jsonschema.Schema{
			"selector":   {Type: "string", Description: "symbol selector"},
			"calls_only": {Type: "boolean"},
			"dedup":      {Type: "boolean"},
			"top_files":  {Type: "boolean"},
		}, "selector"),
	}, s.handleSymbolReferences)

	s.server.AddTool(&mcp.Tool{
		Name:        "symbol_callers",
		Description: "List CallEdges whose callee matches a selector.",
		InputSchema: withList(map[string]*jsonschema.Schema{
			"selector": {Type: "string", Description: "symbol selector"},
			"dedup":    {Type: "boolean"},
		}, "selector"),
	}, s.handleSymbolCallers)

	s.server.AddTool(&mcp.Tool{
		Name:        "dependency_path",
		Description: "Find the shortest FileDep path between two selectors.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"selector_a": {Type: "string"},
				"selector_b": {Type: "string"},
				"max_depth":  {Type: "integer"},
			},
			Required: []string{"selector_a", "selector_b"},
		},
	}, s.handleDependencyPath)

	s.server.AddTool(&mcp.Tool{
		Name:        "minimal_slice",
		Description: "Find a minimal call/reference/import neighborhood around a file:line location.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file":                        {Type: "string"},
				"line":                        {Type: "integer"},
				"depth":                       {Type: "integer"},
				"max_neighbors":               {Type: "integer"},
				"dedup":                       {Type: "boolean"},
				"suppress_low_signal_repeats": {Type: "boolean"},
				"low_signal_name_cap":         {Type: "integer"},
				"prefer_project_symbols":      {Type: "boolean"},
			},
			Required: []string{"file", "line"},
		},
	}, s.handleMinimalSlice)

	s.server.AddTool(&mcp.Tool{
		Name:        "clone_matches",
		Description: "Find near-duplicate files, or directory clone hotspots, for a file.",
		InputSchema: withList(map[string]*jsonschema.Schema{
			"file":           {Type: "string"},
			"mode":           {Type: "string", Description: "matches|hotspots"},
			"min_similarity": {Type: "number"},
		}, "file"),
	}, s.handleCloneMatches)

	s.server.AddTool(&mcp.Tool{
		Name:        "selector_discover",
		Description: "Rank candidate selectors against a partial name.",
		InputSchema: withList(map[string]*jsonschema.Schema{
			"query":       {Type: "string"},
			"fuzzy":       {Type: "boolean"},
			"entity_type": {Type: "string"},
		}, "query"),
	}, s.handleSelectorDiscover)
}

func jsonResult(data any) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal mcp response: %w", err)
	}
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(body)}}}, nil
}

func errorResult(op string, err error) (*mcp.CallToolResult, error) {
	body, _ := json.Marshal(map[string]string{"operation": op, "error": err.Error()})
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: string(body)}}, IsError: true}, nil
}

// listArgs is the shared decoding shape for every list-producing tool's
// paging/filter arguments.
type listArgs struct {
	Limit            int     `json:"limit"`
	Offset           int     `json:"offset"`
	Order            string  `json:"order"`
	FileGlob         string  `json:"file_glob"`
	Language         string  `json:"language"`
	MaxAgeHours      float64 `json:"max_age_hours"`
	Verbosity        string  `json:"verbosity"`
	IncludeFreshness bool    `json:"include_freshness"`
}

func (a listArgs) toOptions() tool.ListOptions {
	return tool.ListOptions{
		Limit: a.Limit, Offset: a.Offset, Order: a.Order, FileGlob: a.FileGlob,
		Language: a.Language, MaxAgeHours: a.MaxAgeHours, Verbosity: a.Verbosity,
		IncludeFreshness: a.IncludeFreshness,
	}
}

func (s *mcpServer) handleIndexRepository(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		Full bool `json:"full"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("index_repository", err)
	}
	stats, err := s.adapter.IndexRepository(ctx, map[bool]string{true: "full", false: "incremental"}[args.Full])
	if err != nil {
		return errorResult("index_repository", err)
	}
	return jsonResult(stats)
}

func (s *mcpServer) handleSymbolDefinitions(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		listArgs
		Selector string `json:"selector"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("symbol_definitions", err)
	}
	res, err := s.adapter.SymbolDefinitions(args.Selector, args.toOptions())
	if err != nil {
		return errorResult("symbol_definitions", err)
	}
	return jsonResult(res)
}

func (s *mcpServer) handleSymbolReferences(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		listArgs
		Selector  string `json:"selector"`
		CallsOnly bool   `json:"calls_only"`
		Dedup     bool   `json:"dedup"`
		TopFiles  bool   `json:"top_files"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("symbol_references", err)
	}
	res, err := s.adapter.SymbolReferences(args.Selector, args.CallsOnly, args.Dedup, args.TopFiles, args.toOptions())
	if err != nil {
		return errorResult("symbol_references", err)
	}
	return jsonResult(res)
}

func (s *mcpServer) handleSymbolCallers(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		listArgs
		Selector string `json:"selector"`
		Dedup    bool   `json:"dedup"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("symbol_callers", err)
	}
	res, err := s.adapter.SymbolCallers(args.Selector, args.Dedup, args.toOptions())
	if err != nil {
		return errorResult("symbol_callers", err)
	}
	return jsonResult(res)
}

func (s *mcpServer) handleDependencyPath(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		SelectorA string `json:"selector_a"`
		SelectorB string `json:"selector_b"`
		MaxDepth  int    `json:"max_depth"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("dependency_path", err)
	}
	res, err := s.adapter.DependencyPath(args.SelectorA, args.SelectorB, args.MaxDepth)
	if err != nil {
		return errorResult("dependency_path", err)
	}
	return jsonResult(res)
}

func (s *mcpServer) handleMinimalSlice(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		File                     string `json:"file"`
		Line                     int    `json:"line"`
		Depth                    int    `json:"depth"`
		MaxNeighbors             int    `json:"max_neighbors"`
		Dedup                    bool   `json:"dedup"`
		SuppressLowSignalRepeats bool   `json:"suppress_low_signal_repeats"`
		LowSignalNameCap         int    `json:"low_signal_name_cap"`
		PreferProjectSymbols     bool   `json:"prefer_project_symbols"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("minimal_slice", err)
	}
	res, err := s.adapter.MinimalSlice(args.File, args.Line, args.Depth, args.MaxNeighbors, tool.SliceFlags{
		Dedup:                    args.Dedup,
		SuppressLowSignalRepeats: args.SuppressLowSignalRepeats,
		LowSignalNameCap:         args.LowSignalNameCap,
		PreferProjectSymbols:     args.PreferProjectSymbols,
	})
	if err != nil {
		return errorResult("minimal_slice", err)
	}
	return jsonResult(res)
}

func (s *mcpServer) handleCloneMatches(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		listArgs
		File          string  `json:"file"`
		Mode          string  `json:"mode"`
		MinSimilarity float64 `json:"min_similarity"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("clone_matches", err)
	}
	res, err := s.adapter.CloneMatches(args.File, args.Mode, args.MinSimilarity, args.toOptions())
	if err != nil {
		return errorResult("clone_matches", err)
	}
	return jsonResult(res)
}

func (s *mcpServer) handleSelectorDiscover(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args struct {
		listArgs
		Query      string `json:"query"`
		Fuzzy      bool   `json:"fuzzy"`
		EntityType string `json:"entity_type"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return errorResult("selector_discover", err)
	}
	res, err := s.adapter.SelectorDiscover(args.Query, args.Fuzzy, args.FileGlob, args.EntityType, args.toOptions())
	if err != nil {
		return errorResult("selector_discover", err)
	}
	return jsonResult(res)
}
