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
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// LoadPDFPages reads path and returns one Document per page, so each page
// becomes its own fragment before any further splitting. Each Document
// carries page_number/total_pages metadata so chunkPDFPages can stamp
// chunk_index/total_chunks without re-walking the file.
func LoadPDFPages(ctx context.Context, path string) ([]Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	reader, err := pdf.NewReader(file, info.Size())
	if err != nil {
		return nil, fmt.Errorf("parse pdf: %w", err)
	}

	totalPages := reader.NumPage()
	filename := filepath.Base(path)

	docs := make([]Document, 0, totalPages)
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		select {
		case <-ctx.Done():
			return docs, ctx.Err()
		default:
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}

		docs = append(docs, Document{
			Content: text,
			Metadata: map[string]any{
				MetaSource:   path,
				MetaFilename: filename,
				MetaFileType: "pdf",
				"page_number": pageNum,
				"total_pages": totalPages,
			},
		})
	}

	return docs, nil
}

// chunkPDFPages wraps an already page-split Document (produced by
// LoadPDFPages) into its single Fragment.
func chunkPDFPages(doc Document) ([]Fragment, error) {
	meta := baseMetadata(doc, ChunkTypePDFPage)

	pageNum, _ := doc.Metadata["page_number"].(int)
	totalPages, _ := doc.Metadata["total_pages"].(int)
	if totalPages <= 0 {
		totalPages = 1
	}
	if pageNum <= 0 {
		pageNum = 1
	}
	meta[MetaChunkIndex] = pageNum - 1
	meta[MetaTotalChunks] = totalPages

	return []Fragment{{Content: doc.Content, Metadata: meta}}, nil
}
