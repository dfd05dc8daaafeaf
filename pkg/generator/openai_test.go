// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestGenerate_ReturnsFirstChoiceContent(t *testing.T) {
	var gotAuth string
	var gotBody chatCompletionsRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(chatCompletionsResponse{
			Choices: []struct {
				Message chatMessage `json:"message"`
			}{
				{Message: chatMessage{Role: "assistant", Content: "the answer"}},
			},
		})
	}))
	defer srv.Close()

	gen, err := New(Config{APIKey: "sk-test", Host: srv.URL, Model: "gpt-4o-mini"})
	require.NoError(t, err)

	out, err := gen.Generate(context.Background(), "system", "user question")
	require.NoError(t, err)

	assert.Equal(t, "the answer", out)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "gpt-4o-mini", gotBody.Model)
	require.Len(t, gotBody.Messages, 2)
	assert.Equal(t, "system", gotBody.Messages[0].Role)
	assert.Equal(t, "user", gotBody.Messages[1].Role)
	assert.Equal(t, "user question", gotBody.Messages[1].Content)
}

func TestGenerate_PropagatesUpstreamErrorMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(chatErrorResponse{
			Error: struct {
				Message string `json:"message"`
			}{Message: "rate limit exceeded"},
		})
	}))
	defer srv.Close()

	gen, err := New(Config{APIKey: "sk-test", Host: srv.URL})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "system", "user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit exceeded")
}

func TestGenerate_NoChoicesIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatCompletionsResponse{})
	}))
	defer srv.Close()

	gen, err := New(Config{APIKey: "sk-test", Host: srv.URL})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "system", "user")
	require.Error(t, err)
}

func TestLabel_ReturnsConfiguredModel(t *testing.T) {
	gen, err := New(Config{APIKey: "sk-test", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", gen.Label())
}
