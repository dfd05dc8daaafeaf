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

func genericDoc(content string) Document {
	return Document{
		Content: content,
		Metadata: map[string]any{
			MetaSource:   "README.txt",
			MetaFilename: "README.txt",
			MetaFileType: "txt",
		},
	}
}

func TestChunkGeneric_FitsWithinOneWindow(t *testing.T) {
	frags, err := chunkGeneric(genericDoc("a short plain text document"), 1500)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "a short plain text document", frags[0].Content)
	assert.Equal(t, ChunkTypeGeneric, frags[0].Metadata[MetaChunkType])
}

func TestChunkGeneric_SplitsOnWordBoundaries(t *testing.T) {
	content := strings.Repeat("word ", 200) // ~1000 chars
	frags, err := chunkGeneric(genericDoc(content), 10)      // 10 tokens * 4 chars/token = 40-char windows
	require.NoError(t, err)
	require.Greater(t, len(frags), 1)

	for _, f := range frags {
		assert.False(t, strings.HasPrefix(f.Content, " "))
		assert.False(t, strings.HasSuffix(f.Content, " "))
	}
}

func TestChunkGeneric_ChunkIndexInvariant(t *testing.T) {
	content := strings.Repeat("word ", 200)
	frags, err := chunkGeneric(genericDoc(content), 10)
	require.NoError(t, err)

	total := len(frags)
	for i, f := range frags {
		assert.Equal(t, i, f.Metadata[MetaChunkIndex])
		assert.Equal(t, total, f.Metadata[MetaTotalChunks])
	}
}

func TestChunkGeneric_EmptyDocumentProducesNoFragments(t *testing.T) {
	frags, err := chunkGeneric(genericDoc("   \n\t"), 1500)
	require.NoError(t, err)
	assert.Empty(t, frags)
}
