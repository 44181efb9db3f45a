//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

// Package websearch provides a web lookup tool backed by the DuckDuckGo
// Instant Answer API. It answers factual, encyclopedic queries; it is not a
// real-time news or market-data source.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"trpc.group/trpc-go/trpc-deepresearch-go/tool"
)

const (
	// ToolName is the name the model uses to call this tool.
	ToolName = "web_search"

	maxTopicsPerCall = 6
	defaultBaseURL   = "https://api.duckduckgo.com"
	defaultUserAgent = "trpc-deepresearch-go-websearch/1.0"
	defaultTimeout   = 30 * time.Second
)

// Option configures the web search tool.
type Option func(*Tool)

// WithBaseURL sets the API base URL. Tests point this at a local server.
func WithBaseURL(baseURL string) Option {
	return func(t *Tool) { t.client.baseURL = baseURL }
}

// WithHTTPClient sets the HTTP client to use.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(t *Tool) { t.client.httpClient = httpClient }
}

// request is the tool's input: one lookup per research topic.
type request struct {
	Queries []string `json:"queries"`
}

// topicResult is the outcome of one lookup. Failures are carried inline in
// Error so a flaky lookup degrades the result instead of aborting the node.
type topicResult struct {
	Query   string   `json:"query"`
	Summary string   `json:"summary,omitempty"`
	Links   []string `json:"links,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Response is the tool's output.
type Response struct {
	Results []topicResult `json:"results"`
}

// Links collects every source link across all topic results.
func (r *Response) Links() []string {
	var links []string
	for _, result := range r.Results {
		links = append(links, result.Links...)
	}
	return links
}

// Tool is the web search tool. It satisfies tool.CallableTool.
type Tool struct {
	client client
}

// New creates a web search tool with the provided options.
func New(opts ...Option) *Tool {
	t := &Tool{
		client: client{
			baseURL:    defaultBaseURL,
			userAgent:  defaultUserAgent,
			httpClient: &http.Client{Timeout: defaultTimeout},
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Declaration implements tool.Tool.
func (t *Tool) Declaration() *tool.Declaration {
	return &tool.Declaration{
		Name: ToolName,
		Description: "Look up factual, encyclopedic information on the web for one or more " +
			"research topics. Pass each topic as its own query. Returns a summary and " +
			"source links per topic. Not suitable for real-time data such as live prices " +
			"or breaking news.",
		InputSchema: &tool.Schema{
			Type:     "object",
			Required: []string{"queries"},
			Properties: map[string]*tool.Schema{
				"queries": {
					Type:        "array",
					Description: "The search queries, one per research topic.",
					Items:       &tool.Schema{Type: "string"},
				},
			},
		},
	}
}

// Call implements tool.CallableTool. Topics are looked up concurrently; the
// result order matches the input order.
func (t *Tool) Call(ctx context.Context, jsonArgs []byte) (any, error) {
	var req request
	if err := json.Unmarshal(jsonArgs, &req); err != nil {
		return nil, fmt.Errorf("parse web_search arguments: %w", err)
	}
	if len(req.Queries) == 0 {
		return &Response{}, nil
	}
	queries := req.Queries
	if len(queries) > maxTopicsPerCall {
		queries = queries[:maxTopicsPerCall]
	}

	results := make([]topicResult, len(queries))
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			results[i] = t.lookup(ctx, query)
		}(i, query)
	}
	wg.Wait()
	return &Response{Results: results}, nil
}

// lookup runs one query and flattens the instant answer into a summary plus
// source links.
func (t *Tool) lookup(ctx context.Context, query string) topicResult {
	result := topicResult{Query: query}
	response, err := t.client.search(ctx, query)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var parts []string
	if response.Answer != "" {
		parts = append(parts, "Answer: "+response.Answer)
	}
	if response.AbstractText != "" {
		abstract := "Abstract: " + response.AbstractText
		if response.AbstractSource != "" {
			abstract += " (source: " + response.AbstractSource + ")"
		}
		parts = append(parts, abstract)
	}
	if response.Definition != "" {
		parts = append(parts, "Definition: "+response.Definition)
	}
	if response.AbstractURL != "" {
		result.Links = append(result.Links, response.AbstractURL)
	}
	if response.DefinitionURL != "" {
		result.Links = append(result.Links, response.DefinitionURL)
	}
	for _, topic := range response.RelatedTopics {
		if topic.FirstURL == "" {
			continue
		}
		result.Links = append(result.Links, topic.FirstURL)
		if topic.Text != "" && len(parts) < 6 {
			parts = append(parts, "Related: "+topic.Text)
		}
	}

	if len(parts) == 0 {
		result.Summary = "No instant answer available for this query."
	} else {
		result.Summary = strings.Join(parts, "\n")
	}
	return result
}
