package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/timeplus-io/pulsebot/pkg/domain/interfaces"
)

// WebSearchSkill searches the web through either the Brave Search API or
// a self-hosted SearXNG instance.
type WebSearchSkill struct {
	Provider   string // "brave" or "searxng"
	APIKey     string
	SearXNGURL string
	httpClient *http.Client
}

var _ interfaces.Skill = (*WebSearchSkill)(nil)

// NewWebSearchSkill builds a WebSearchSkill. provider must be "brave" or
// "searxng".
func NewWebSearchSkill(provider, apiKey, searxngURL string) (*WebSearchSkill, error) {
	provider = strings.ToLower(provider)
	if provider != "brave" && provider != "searxng" {
		return nil, goerr.New("unsupported web search provider", goerr.V("provider", provider))
	}
	return &WebSearchSkill{
		Provider:   provider,
		APIKey:     apiKey,
		SearXNGURL: strings.TrimSuffix(searxngURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

func (s *WebSearchSkill) Name() string        { return "web_search" }
func (s *WebSearchSkill) Description() string { return "Search the web for current information" }

func (s *WebSearchSkill) Tools() []interfaces.ToolDefinition {
	return []interfaces.ToolDefinition{
		{
			Name:        "web_search",
			Description: "Search the web for current information, news, or facts. Returns snippets and URLs.",
			Parameters: map[string]*interfaces.ToolParameter{
				"query": {Type: "string", Description: "The search query", Required: true},
				"count": {Type: "integer", Description: "Number of results (1-10)"},
			},
		},
	}
}

func (s *WebSearchSkill) Execute(ctx context.Context, toolName string, arguments map[string]any) (interfaces.ToolResult, error) {
	if toolName != "web_search" {
		return interfaces.Fail(fmt.Sprintf("unknown tool: %s", toolName)), nil
	}

	query, _ := arguments["query"].(string)
	if query == "" {
		return interfaces.Fail("search query is required"), nil
	}

	count := 5
	if v, ok := arguments["count"]; ok {
		if n, ok := toInt(v); ok {
			count = n
		}
	}
	if count > 10 {
		count = 10
	}
	if count < 1 {
		count = 1
	}

	switch s.Provider {
	case "brave":
		return s.searchBrave(ctx, query, count)
	case "searxng":
		return s.searchSearXNG(ctx, query, count)
	default:
		return interfaces.Fail(fmt.Sprintf("unsupported provider: %s", s.Provider)), nil
	}
}

type searchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

func (s *WebSearchSkill) searchBrave(ctx context.Context, query string, count int) (interfaces.ToolResult, error) {
	if s.APIKey == "" {
		return interfaces.Fail("brave search API key not configured"), nil
	}

	endpoint := "https://api.search.brave.com/res/v1/web/search?" + url.Values{
		"q":     {query},
		"count": {strconv.Itoa(count)},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("search error: %s", err)), nil
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", s.APIKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("network error: %s", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return interfaces.Fail(fmt.Sprintf("brave search failed: HTTP %d", resp.StatusCode)), nil
	}

	var body struct {
		Web struct {
			Results []searchResult `json:"results"`
		} `json:"web"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return interfaces.Fail(fmt.Sprintf("search error: failed to decode response: %s", err)), nil
	}

	return interfaces.OK(map[string]any{"results": body.Web.Results}), nil
}

func (s *WebSearchSkill) searchSearXNG(ctx context.Context, query string, count int) (interfaces.ToolResult, error) {
	endpoint := s.SearXNGURL + "/search?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"pageno": {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("searxng search error: %s", err)), nil
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return interfaces.Fail(fmt.Sprintf("network error connecting to searxng: %s", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return interfaces.Fail(fmt.Sprintf("searxng search failed: HTTP %d", resp.StatusCode)), nil
	}

	var body struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return interfaces.Fail(fmt.Sprintf("searxng search error: failed to decode response: %s", err)), nil
	}

	results := make([]searchResult, 0, count)
	for i, r := range body.Results {
		if i >= count {
			break
		}
		results = append(results, searchResult{Title: r.Title, URL: r.URL, Description: r.Content})
	}

	return interfaces.OK(map[string]any{"results": results}), nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
