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

import (
	"regexp"
	"strings"
)

// atxHeaderRe matches an ATX header at the start of a line: "#" through
// "######" followed by a space.
var atxHeaderRe = regexp.MustCompile(`^#{1,6}\s`)

// chunkMarkdown collects header-delimited sections, then greedily packs
// them into fragments up to the token budget. A single over-sized
// section becomes its own fragment.
func chunkMarkdown(doc Document, maxTokens int) ([]Fragment, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	lines := strings.Split(doc.Content, "\n")

	var sections []string
	var cur []string
	flushSection := func() {
		if len(cur) == 0 {
			return
		}
		sections = append(sections, strings.Join(cur, "\n"))
		cur = nil
	}

	for _, line := range lines {
		if atxHeaderRe.MatchString(line) && len(cur) > 0 {
			flushSection()
		}
		cur = append(cur, line)
	}
	flushSection()

	if len(sections) == 0 {
		return nil, nil
	}

	var fragments []Fragment
	var buf []string
	bufTokens := 0

	flush := func() {
		if len(buf) == 0 {
			return
		}
		content := strings.Join(buf, "\n\n")
		meta := baseMetadata(doc, ChunkTypeMarkdown)
		fragments = append(fragments, Fragment{Content: content, Metadata: meta})
		buf = nil
		bufTokens = 0
	}

	for _, s := range sections {
		t := estimateTokens(s)
		if len(buf) > 0 && bufTokens+t > maxTokens {
			flush()
		}
		buf = append(buf, s)
		bufTokens += t
		if t > maxTokens {
			flush()
		}
	}
	flush()

	return finalizeIndices(fragments), nil
}
