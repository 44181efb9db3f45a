//
// Tencent is pleased to support the open source community by making trpc-deepresearch-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-deepresearch-go is licensed under the Apache License Version 2.0.
//
//

package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, payloads map[string]apiResponse) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		payload, ok := payloads[query]
		if !ok {
			http.Error(w, "no fixture", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestToolDeclaration(t *testing.T) {
	declaration := New().Declaration()
	assert.Equal(t, ToolName, declaration.Name)
	require.NotNil(t, declaration.InputSchema)
	assert.Contains(t, declaration.InputSchema.Properties, "queries")
	assert.Equal(t, "array", declaration.InputSchema.Properties["queries"].Type)
}

func TestCallMultipleQueries(t *testing.T) {
	server := newTestServer(t, map[string]apiResponse{
		"solid state batteries": {
			AbstractText:   "Solid state batteries use solid electrolytes.",
			AbstractSource: "Wikipedia",
			AbstractURL:    "https://en.wikipedia.org/wiki/Solid-state_battery",
		},
		"flow batteries": {
			Answer: "A flow battery stores energy in liquid electrolytes.",
			RelatedTopics: []relatedTopic{
				{Text: "Vanadium redox battery", FirstURL: "https://example.com/vanadium"},
			},
		},
	})
	searchTool := New(WithBaseURL(server.URL))

	args, err := json.Marshal(map[string]any{
		"queries": []string{"solid state batteries", "flow batteries"},
	})
	require.NoError(t, err)

	result, err := searchTool.Call(context.Background(), args)
	require.NoError(t, err)
	response, ok := result.(*Response)
	require.True(t, ok)
	require.Len(t, response.Results, 2)

	assert.Equal(t, "solid state batteries", response.Results[0].Query)
	assert.Contains(t, response.Results[0].Summary, "solid electrolytes")
	assert.Contains(t, response.Results[0].Links, "https://en.wikipedia.org/wiki/Solid-state_battery")

	assert.Contains(t, response.Results[1].Summary, "flow battery")
	assert.Contains(t, response.Results[1].Links, "https://example.com/vanadium")

	assert.Len(t, response.Links(), 2)
}

func TestCallFailureIsInline(t *testing.T) {
	server := newTestServer(t, map[string]apiResponse{
		"works": {Answer: "yes"},
	})
	searchTool := New(WithBaseURL(server.URL))

	args, err := json.Marshal(map[string]any{"queries": []string{"works", "breaks"}})
	require.NoError(t, err)

	result, err := searchTool.Call(context.Background(), args)
	require.NoError(t, err, "a failed lookup must not fail the call")
	response := result.(*Response)
	require.Len(t, response.Results, 2)
	assert.Empty(t, response.Results[0].Error)
	assert.NotEmpty(t, response.Results[1].Error)
}

func TestCallEmptyQueries(t *testing.T) {
	searchTool := New()
	result, err := searchTool.Call(context.Background(), []byte(`{"queries":[]}`))
	require.NoError(t, err)
	assert.Empty(t, result.(*Response).Results)
}

func TestCallBadArguments(t *testing.T) {
	searchTool := New()
	_, err := searchTool.Call(context.Background(), []byte(`{"queries": "not a list"`))
	assert.Error(t, err)
}

func TestCallNoInstantAnswer(t *testing.T) {
	server := newTestServer(t, map[string]apiResponse{"obscure": {}})
	searchTool := New(WithBaseURL(server.URL))

	result, err := searchTool.Call(context.Background(), []byte(`{"queries":["obscure"]}`))
	require.NoError(t, err)
	response := result.(*Response)
	require.Len(t, response.Results, 1)
	assert.Contains(t, response.Results[0].Summary, "No instant answer")
}
