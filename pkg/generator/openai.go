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

// Package generator implements ragcore.Generator against an
// OpenAI-compatible chat completions endpoint: a single-shot,
// non-streaming, no-tool-calling client. There's no agent loop to drive
// here, so the full streaming Responses-API surface isn't needed.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config configures the chat completions client.
type Config struct {
	APIKey     string  `yaml:"api_key"`
	Model      string  `yaml:"model"`
	Host       string  `yaml:"host"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSec int     `yaml:"timeout_seconds"`
}

func (c *Config) SetDefaults() {
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Host == "" {
		c.Host = "https://api.openai.com/v1"
	}
	if c.TimeoutSec <= 0 {
		c.TimeoutSec = 60
	}
}

// OpenAIGenerator implements ragcore.Generator.
type OpenAIGenerator struct {
	client      *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
}

// New builds an OpenAIGenerator from cfg.
func New(cfg Config) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for generator")
	}
	cfg.SetDefaults()
	return &OpenAIGenerator{
		client:      &http.Client{Timeout: time.Duration(cfg.TimeoutSec) * time.Second},
		apiKey:      cfg.APIKey,
		baseURL:     cfg.Host,
		model:       cfg.Model,
		temperature: cfg.Temperature,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionsRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
}

type chatCompletionsResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type chatErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate implements ragcore.Generator as a single non-streaming call.
func (g *OpenAIGenerator) Generate(ctx context.Context, systemInstruction, userPrompt string) (string, error) {
	reqBody, err := json.Marshal(chatCompletionsRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: userPrompt},
		},
		Temperature: g.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call chat completions endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp chatErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return "", fmt.Errorf("chat completions endpoint: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("chat completions endpoint returned status %d", resp.StatusCode)
	}

	var parsed chatCompletionsResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completions endpoint returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// Label implements ragcore.Generator.
func (g *OpenAIGenerator) Label() string {
	return g.model
}
