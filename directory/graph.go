package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/c360studio/contractnotify/vocabulary/contract"
)

const (
	// maxErrorBodySize limits the size of error response bodies to prevent memory issues.
	maxErrorBodySize = 4096

	defaultCallTimeout = 10 * time.Second
	defaultMaxDepth    = 32
)

// DefaultStoredQuery selects every entity carrying an executor assignment.
const DefaultStoredQuery = `query($prefix: String!) {
	entities(filter: { predicatePrefix: $prefix }) {
		id
	}
}`

// GraphConfig configures a GraphClient.
type GraphConfig struct {
	// GatewayURL is the base URL of the graph gateway; /graphql is appended.
	GatewayURL string

	// CallTimeout bounds every gateway round trip.
	CallTimeout time.Duration

	// MaxDepth bounds the parent-unit walk in IsSubUnitOf.
	MaxDepth int

	// StoredQuery is the GraphQL query returning contracts in an "entities" list.
	StoredQuery string

	// StoredQueryVariables are passed with StoredQuery.
	StoredQueryVariables map[string]any

	Logger *slog.Logger
}

// GraphClient implements Gateway against the knowledge graph GraphQL gateway.
type GraphClient struct {
	gatewayURL  string
	httpClient  *http.Client
	callTimeout time.Duration
	maxDepth    int
	storedQuery string
	storedVars  map[string]any
	logger      *slog.Logger
}

// NewGraphClient creates a new graph gateway client.
func NewGraphClient(cfg GraphConfig) *GraphClient {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = defaultCallTimeout
	}
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.StoredQuery == "" {
		cfg.StoredQuery = DefaultStoredQuery
		if cfg.StoredQueryVariables == nil {
			cfg.StoredQueryVariables = map[string]any{"prefix": contract.Executor}
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &GraphClient{
		gatewayURL:  strings.TrimRight(cfg.GatewayURL, "/"),
		httpClient:  &http.Client{Timeout: cfg.CallTimeout + time.Second},
		callTimeout: cfg.CallTimeout,
		maxDepth:    cfg.MaxDepth,
		storedQuery: cfg.StoredQuery,
		storedVars:  cfg.StoredQueryVariables,
		logger:      cfg.Logger,
	}
}

// GraphQLResponse represents a GraphQL response.
type GraphQLResponse struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// ExecuteQuery executes a raw GraphQL query with optional variables.
func (g *GraphClient) ExecuteQuery(ctx context.Context, query string, variables map[string]any) (map[string]any, error) {
	reqBody := map[string]any{"query": query}
	if variables != nil {
		reqBody["variables"] = variables
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.gatewayURL+"/graphql", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		return nil, fmt.Errorf("graph gateway returned %d: %s", resp.StatusCode, string(body))
	}

	var result GraphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("graphql error: %s", result.Errors[0].Message)
	}

	return result.Data, nil
}

// Ping verifies the gateway answers queries. A missing probe entity still
// counts as healthy.
func (g *GraphClient) Ping(ctx context.Context) error {
	_, err := g.LoadDocument(ctx, "__readiness_probe__")
	if err == nil || errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// LoadDocument retrieves an entity and its triples by id.
func (g *GraphClient) LoadDocument(ctx context.Context, id string) (*Document, error) {
	if strings.TrimSpace(id) == "" {
		return nil, &LoadError{ID: id, Err: ErrNotFound}
	}

	query := `query($id: String!) {
		entity(id: $id) {
			id
			triples { predicate object }
		}
	}`

	data, err := g.ExecuteQuery(ctx, query, map[string]any{"id": sanitizeGraphQLString(id)})
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			return nil, &LoadError{ID: id, Err: ErrNotFound}
		}
		return nil, &LoadError{ID: id, Err: err}
	}

	entityMap, ok := data["entity"].(map[string]any)
	if !ok {
		return nil, &LoadError{ID: id, Err: ErrNotFound}
	}

	doc := parseDocument(entityMap)
	if doc.ID == "" {
		doc.ID = id
	}
	return doc, nil
}

// IsIndividualValid reports whether the entity is explicitly valid and not deleted.
func (g *GraphClient) IsIndividualValid(_ context.Context, doc *Document) (bool, error) {
	return isIndividualValid(doc), nil
}

// IsSubUnitOf walks the parent-unit chain of the department looking for rootID.
func (g *GraphClient) IsSubUnitOf(ctx context.Context, department *Document, rootID string) (bool, error) {
	return walkParents(ctx, g, department, rootID, g.maxDepth)
}

// GetDepartmentChief returns the first chief of the department.
func (g *GraphClient) GetDepartmentChief(_ context.Context, department *Document) (string, bool, error) {
	id, ok := department.First(contract.HasChief)
	return id, ok, nil
}

// RunStoredQuery executes the configured query and returns the unique entity
// ids it yields, in gateway order.
func (g *GraphClient) RunStoredQuery(ctx context.Context) ([]string, error) {
	data, err := g.ExecuteQuery(ctx, g.storedQuery, g.storedVars)
	if err != nil {
		return nil, fmt.Errorf("run stored query: %w", err)
	}

	raw, ok := data["entities"].([]any)
	if !ok {
		return []string{}, nil
	}

	ids := make([]string, 0, len(raw))
	for _, e := range raw {
		entityMap, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if id, ok := entityMap["id"].(string); ok && id != "" {
			ids = append(ids, id)
		}
	}

	return uniqueIDs(ids), nil
}

// parseDocument parses a single entity from a map.
func parseDocument(entityMap map[string]any) *Document {
	doc := &Document{}

	if id, ok := entityMap["id"].(string); ok {
		doc.ID = id
	}

	if triples, ok := entityMap["triples"].([]any); ok {
		for _, t := range triples {
			tripleMap, ok := t.(map[string]any)
			if !ok {
				continue
			}
			triple := Triple{}
			if pred, ok := tripleMap["predicate"].(string); ok {
				triple.Predicate = pred
			}
			triple.Object = tripleMap["object"]
			doc.Triples = append(doc.Triples, triple)
		}
	}

	return doc
}

// walkParents follows ParentUnit links from department until rootID is found,
// the chain ends, a cycle is detected or maxDepth is reached.
func walkParents(ctx context.Context, loader Loader, department *Document, rootID string, maxDepth int) (bool, error) {
	if department == nil {
		return false, &CheckError{Check: "sub-unit", ID: rootID, Err: ErrNotFound}
	}
	if department.ID == rootID {
		return true, nil
	}

	visited := map[string]bool{department.ID: true}
	current := department
	for depth := 0; depth < maxDepth; depth++ {
		parentID, ok := current.First(contract.ParentUnit)
		if !ok {
			return false, nil
		}
		if parentID == rootID {
			return true, nil
		}
		if visited[parentID] {
			return false, nil
		}
		visited[parentID] = true

		parent, err := loader.LoadDocument(ctx, parentID)
		if err != nil {
			return false, &CheckError{Check: "sub-unit", ID: department.ID, Err: err}
		}
		current = parent
	}

	return false, nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// sanitizeGraphQLString removes potentially dangerous characters from GraphQL string inputs.
// This provides defense-in-depth alongside parameterized queries.
func sanitizeGraphQLString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = strings.ReplaceAll(s, "\\", "\\\\")
	return s
}
