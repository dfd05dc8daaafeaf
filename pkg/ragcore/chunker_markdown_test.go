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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func markdownDoc(content string) Document {
	return Document{
		Content: content,
		Metadata: map[string]any{
			MetaSource:   "docs/guide.md",
			MetaFilename: "guide.md",
			MetaFileType: "md",
		},
	}
}

func TestChunkMarkdown_SplitsOnATXHeaders(t *testing.T) {
	content := "# Introduction\nWelcome.\n\n## Setup\nInstall it.\n\n## Usage\nRun it.\n"
	frags, err := chunkMarkdown(markdownDoc(content), 1000)
	require.NoError(t, err)
	require.Len(t, frags, 1) // comfortably fits one fragment at this budget

	assert.Contains(t, frags[0].Content, "# Introduction")
	assert.Contains(t, frags[0].Content, "## Setup")
	assert.Contains(t, frags[0].Content, "## Usage")
	assert.Equal(t, ChunkTypeMarkdown, frags[0].Metadata[MetaChunkType])
}

func TestChunkMarkdown_PacksSectionsToTokenBudget(t *testing.T) {
	content := "# A\n" + strings.Repeat("word ", 50) + "\n\n# B\n" + strings.Repeat("word ", 50) + "\n"
	frags, err := chunkMarkdown(markdownDoc(content), 20)
	require.NoError(t, err)
	require.Greater(t, len(frags), 1)

	for i, f := range frags {
		assert.Equal(t, i, f.Metadata[MetaChunkIndex])
		assert.Equal(t, len(frags), f.Metadata[MetaTotalChunks])
	}
}

func TestChunkMarkdown_EmptyDocumentProducesNoFragments(t *testing.T) {
	frags, err := chunkMarkdown(markdownDoc("\n\n  \n"), 1000)
	require.NoError(t, err)
	assert.Empty(t, frags)
}

func TestChunkMarkdown_NoHeadersStillProducesOneSection(t *testing.T) {
	frags, err := chunkMarkdown(markdownDoc("just plain text\nwith no headers at all\n"), 1000)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Contains(t, frags[0].Content, "just plain text")
}
