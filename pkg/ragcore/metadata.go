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

import "github.com/mitchellh/mapstructure"

// StructuralMetadata is the typed view over a Fragment's open metadata
// map, covering every reserved key a Chunker or the Fuser writes.
// Callers that need more than one or two keys at once should decode once
// via DecodeMetadata rather than probing the map key by key.
type StructuralMetadata struct {
	Source      string `mapstructure:"source"`
	Filename    string `mapstructure:"filename"`
	FileType    string `mapstructure:"file_type"`
	ClassName   string `mapstructure:"class_name"`
	MethodName  string `mapstructure:"method_name"`
	ChunkType   string `mapstructure:"chunk_type"`
	StartLine   int    `mapstructure:"start_line"`
	EndLine     int    `mapstructure:"end_line"`
	ChunkIndex  int    `mapstructure:"chunk_index"`
	TotalChunks int    `mapstructure:"total_chunks"`

	HybridScore   float64 `mapstructure:"hybrid_score"`
	SemanticScore float64 `mapstructure:"semantic_score"`
	KeywordScore  float64 `mapstructure:"keyword_score"`
}

// DecodeMetadata decodes a Fragment's open metadata map into its typed
// reserved-key view. Keys absent from meta keep their zero value.
// WeaklyTypedInput absorbs the float64-for-every-number shape metadata
// takes on after a round trip through JSON or a bleve stored field, so
// callers don't each need their own int/float64 type switch.
func DecodeMetadata(meta map[string]any) StructuralMetadata {
	var out StructuralMetadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &out,
	})
	if err != nil {
		return out
	}
	_ = dec.Decode(meta)
	return out
}
