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

import "testing"

func TestFilter_NilFilterMatchesEverything(t *testing.T) {
	var f *Filter
	if !f.Matches(Fragment{}) {
		t.Fatal("nil filter should match any fragment")
	}
}

func TestFilter_FileTypeIsCaseInsensitiveEquality(t *testing.T) {
	frag := Fragment{Metadata: map[string]any{MetaFileType: "Java"}}
	f := &Filter{FileType: "java"}
	if !f.Matches(frag) {
		t.Fatal("expected case-insensitive file_type match")
	}
	f2 := &Filter{FileType: "markdown"}
	if f2.Matches(frag) {
		t.Fatal("expected file_type mismatch to fail")
	}
}

func TestFilter_SourcePathIsSubstringMatch(t *testing.T) {
	frag := Fragment{Metadata: map[string]any{MetaSource: "src/main/java/Calculator.java"}}
	f := &Filter{SourcePath: "main/java"}
	if !f.Matches(frag) {
		t.Fatal("expected substring match on source path")
	}
	f2 := &Filter{SourcePath: "test/java"}
	if f2.Matches(frag) {
		t.Fatal("expected substring mismatch to fail")
	}
}

func TestFilter_MissingMetadataFailsEqualityPredicates(t *testing.T) {
	frag := Fragment{Metadata: map[string]any{}}
	f := &Filter{ClassName: "Calculator"}
	if f.Matches(frag) {
		t.Fatal("missing class_name should fail an equality predicate")
	}
}

func TestFilter_MissingMetadataPassesBlankSubstringPredicate(t *testing.T) {
	frag := Fragment{Metadata: map[string]any{}}
	f := &Filter{}
	if !f.Matches(frag) {
		t.Fatal("all-blank filter should pass vacuously")
	}
}

func TestFilter_AllPredicatesMustHoldSimultaneously(t *testing.T) {
	frag := Fragment{Metadata: map[string]any{
		MetaFileType:   "java",
		MetaSource:     "src/Calculator.java",
		MetaClassName:  "Calculator",
		MetaMethodName: "add",
		MetaFilename:   "Calculator.java",
	}}
	ok := &Filter{FileType: "java", ClassName: "Calculator", MethodName: "add"}
	if !ok.Matches(frag) {
		t.Fatal("expected full-match filter to pass")
	}

	bad := &Filter{FileType: "java", ClassName: "Calculator", MethodName: "subtract"}
	if bad.Matches(frag) {
		t.Fatal("expected mismatch on one predicate to fail the whole filter")
	}
}

func TestFilter_NarrowsResultSetToNothing(t *testing.T) {
	fragments := []Fragment{
		{Metadata: map[string]any{MetaFileType: "java"}},
		{Metadata: map[string]any{MetaFileType: "markdown"}},
	}
	f := &Filter{FileType: "pdf"}

	var kept []Fragment
	for _, frag := range fragments {
		if f.Matches(frag) {
			kept = append(kept, frag)
		}
	}
	if len(kept) != 0 {
		t.Fatalf("expected no fragments to match, got %d", len(kept))
	}
}
