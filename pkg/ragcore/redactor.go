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

// redactCategory is one of the four fixed-order PII pattern categories.
type redactCategory struct {
	name string
	// re matches the full span to consider; valueGroup is the index of the
	// submatch that should actually be replaced (the rest, e.g. a prefix
	// token, is retained verbatim). valueGroup 0 means "replace the whole match".
	re         *regexp.Regexp
	valueGroup int
}

var redactCategories = []redactCategory{
	{
		name:       "EMAIL",
		re:         regexp.MustCompile(`[\w.+-]+@[\w-]+\.[\w.-]+`),
		valueGroup: 0,
	},
	{
		name:       "PHONE",
		re:         regexp.MustCompile(`\b\d{3}[-.]\d{3,4}(?:[-.]\d{4})?\b`),
		valueGroup: 0,
	},
	{
		name: "API_KEY",
		re: regexp.MustCompile(
			`(?i)(?:api_key|api-key|apikey|token|secret)\s*[:=]\s*['"]?([A-Za-z0-9_-]{16,})['"]?`),
		valueGroup: 1,
	},
	{
		name: "PASSWORD",
		re: regexp.MustCompile(
			`(?i)(?:password|passwd|pwd)(?:\s*:\s*|\s+)['"]?([^\s'"]{8,})['"]?`),
		valueGroup: 1,
	},
}

// Redactor applies the ordered pattern categories above. A zero-value
// Redactor is ready to use.
type Redactor struct{}

// Mask redacts text in place of the four categories, in fixed order, and
// returns the masked text plus the placeholder→original mapping. A
// pattern-engine panic is recovered and treated as "no PII found"; the
// original text is returned unmodified.
func (Redactor) Mask(text string) (m MaskingRecord) {
	defer func() {
		if r := recover(); r != nil {
			m = MaskingRecord{MaskedText: text, Mappings: map[string]string{}}
		}
	}()

	mappings := make(map[string]string)
	masked := text

	for _, cat := range redactCategories {
		counter := 0
		masked = cat.re.ReplaceAllStringFunc(masked, func(match string) string {
			sub := cat.re.FindStringSubmatch(match)
			value := match
			if cat.valueGroup > 0 && len(sub) > cat.valueGroup {
				value = sub[cat.valueGroup]
			}

			counter++
			placeholder := fmt.Sprintf("[%s_REDACTED_%d]", cat.name, counter)
			mappings[placeholder] = value

			if cat.valueGroup == 0 {
				return placeholder
			}
			// Replace only the value span within the full match, keeping
			// the prefix token, separator, and quotes verbatim.
			idx := sub[1]
			return replaceFirst(match, idx, placeholder)
		})
	}

	return MaskingRecord{MaskedText: masked, Mappings: mappings}
}

// replaceFirst substitutes the first occurrence of old within s.
func replaceFirst(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}

// Restore is the left inverse of Mask on the placeholders it produced:
// every placeholder present in mappings is substituted back for its
// original value.
func (Redactor) Restore(masked string, mappings map[string]string) string {
	restored := masked
	for placeholder, original := range mappings {
		restored = strings.ReplaceAll(restored, placeholder, original)
	}
	return restored
}
