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
	"fmt"
	"regexp"
	"strings"
)

// classDeclRe matches a class declaration, tolerant of modifiers and
// generics. The first match in the file wins when classes are nested.
var classDeclRe = regexp.MustCompile(`\bclass\s+(\w+)`)

// packageDeclRe extracts the package statement for the continuation header.
var packageDeclRe = regexp.MustCompile(`^\s*package\s+[\w.]+\s*;`)

// methodDeclRe matches a method-shaped declaration: optional annotations
// and modifiers, a return type, a name, a parenthesized parameter list,
// and an optional throws clause. Tolerant, not a full Java grammar.
var methodDeclRe = regexp.MustCompile(
	`^\s*(?:@[\w.]+(?:\([^)]*\))?\s*)*` + // annotations
		`(?:(?:public|private|protected|static|final|abstract|synchronized|native|default|strictfp)\s+)*` + // modifiers
		`(?:<[^>]+>\s*)?` + // generic type params
		`[\w.\[\]<>]+(?:\s*\[\])?\s+` + // return type
		`(\w+)\s*\(([^)]*)\)\s*` + // name(params)
		`(?:throws\s+[\w.,\s]+)?\s*\{?\s*$`)

// javaBlock is one contiguous unit of the class body: either a single
// method (signature through closing brace) or a run of non-method lines
// (fields, comments, nested-class bodies, blank lines).
type javaBlock struct {
	isMethod   bool
	methodName string
	start, end int // 1-based, inclusive
}

// chunkJava splits Java source into brace-balanced, method-shaped fragments.
func chunkJava(doc Document, maxTokens int) ([]Fragment, error) {
	if strings.TrimSpace(doc.Content) == "" {
		return nil, nil
	}

	lines := strings.Split(doc.Content, "\n")
	n := len(lines)

	depthBefore := make([]int, n+2) // depthBefore[i] = brace depth before line i (1-based)
	className := UnknownClassName
	classDeclLine := 0
	packageLine := ""

	depth := 0
	for i := 0; i < n; i++ {
		lineNo := i + 1
		depthBefore[lineNo] = depth
		line := lines[i]

		if classDeclLine == 0 {
			if m := classDeclRe.FindStringSubmatch(line); m != nil {
				className = m[1]
				classDeclLine = lineNo
			}
		}
		if packageLine == "" && packageDeclRe.MatchString(line) {
			packageLine = strings.TrimSpace(line)
		}

		depth += strings.Count(line, "{") - strings.Count(line, "}")
	}
	depthBefore[n+1] = depth

	bodyStart := 1
	if classDeclLine > 0 {
		bodyStart = classDeclLine + 1
	}

	var blocks []javaBlock
	fillerStart := bodyStart
	i := bodyStart
	for i <= n {
		lineNo := i
		isClassLine := classDeclRe.MatchString(lines[i-1])
		if depthBefore[lineNo] == 1 && !isClassLine {
			if m := methodDeclRe.FindStringSubmatch(lines[i-1]); m != nil {
				if fillerStart < lineNo {
					blocks = append(blocks, javaBlock{start: fillerStart, end: lineNo - 1})
				}
				// Method ends at the first line whose depth returns to 1
				// after the line's own braces are applied.
				end := lineNo
				for end <= n && depthBefore[end+1] != 1 {
					end++
				}
				if end > n {
					end = n
				}
				blocks = append(blocks, javaBlock{isMethod: true, methodName: m[1], start: lineNo, end: end})
				i = end + 1
				fillerStart = i
				continue
			}
		}
		i++
	}
	if fillerStart <= n {
		blocks = append(blocks, javaBlock{start: fillerStart, end: n})
	}

	var header string
	if classDeclLine > 0 {
		header = strings.Join(lines[0:classDeclLine], "\n")
	}

	continuationPrefix := func() string {
		var b strings.Builder
		if packageLine != "" {
			b.WriteString(packageLine)
			b.WriteString("\n")
		}
		if classDeclLine > 0 {
			b.WriteString(strings.TrimSpace(lines[classDeclLine-1]))
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "// ... continued from %s ...\n", className)
		return b.String()
	}

	var fragments []Fragment
	var buf []javaBlock
	bufTokens := 0
	first := true

	blockText := func(b javaBlock) string {
		return strings.Join(lines[b.start-1:b.end], "\n")
	}

	flush := func() {
		if len(buf) == 0 {
			return
		}
		parts := make([]string, len(buf))
		for i, b := range buf {
			parts[i] = blockText(b)
		}
		body := strings.Join(parts, "\n\n")

		var content string
		if first {
			if header != "" {
				content = header + "\n" + body
			} else {
				content = body
			}
		} else {
			content = continuationPrefix() + body
		}

		meta := baseMetadata(doc, ChunkTypeJavaCode)
		meta[MetaClassName] = className
		meta[MetaStartLine] = buf[0].start
		meta[MetaEndLine] = buf[len(buf)-1].end
		if len(buf) == 1 && buf[0].isMethod {
			meta[MetaMethodName] = buf[0].methodName
		}

		fragments = append(fragments, Fragment{Content: content, Metadata: meta})
		buf = nil
		bufTokens = 0
		first = false
	}

	budget := maxTokens
	for _, b := range blocks {
		t := estimateTokens(blockText(b))
		if len(buf) > 0 && bufTokens+t > budget {
			flush()
		}
		buf = append(buf, b)
		bufTokens += t
		if t > budget {
			// Oversized block (typically a large method): boundary
			// preservation dominates sizing, emit it alone.
			flush()
		}
	}
	flush()

	return finalizeIndices(fragments), nil
}
