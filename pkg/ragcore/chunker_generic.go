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

package ragcore

import "strings"

// chunkGeneric is a fixed-window split over the character-based token
// estimator, used for any supported file type that isn't Java, Markdown,
// or PDF.
func chunkGeneric(doc Document, maxTokens int) ([]Fragment, error) {
	content := doc.Content
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	windowChars := tokenBudgetChars(maxTokens)
	if windowChars <= 0 {
		windowChars = len(content)
	}

	var fragments []Fragment
	pos := 0
	for pos < len(content) {
		end := pos + windowChars
		if end >= len(content) {
			end = len(content)
		} else if sp := strings.LastIndexAny(content[pos:end], " \n\t"); sp > 0 {
			// Prefer breaking at a word boundary rather than mid-word.
			end = pos + sp
		}
		if end <= pos {
			end = pos + windowChars
			if end > len(content) {
				end = len(content)
			}
		}

		chunk := strings.TrimSpace(content[pos:end])
		if chunk != "" {
			meta := baseMetadata(doc, ChunkTypeGeneric)
			fragments = append(fragments, Fragment{Content: chunk, Metadata: meta})
		}
		pos = end
		for pos < len(content) && (content[pos] == ' ' || content[pos] == '\n' || content[pos] == '\t') {
			pos++
		}
	}

	return finalizeIndices(fragments), nil
}
