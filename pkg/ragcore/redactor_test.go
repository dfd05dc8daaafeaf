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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactor_MasksAllFourCategories(t *testing.T) {
	text := `Contact jane@example.com or call 555-1234.
api_key: "sk_live_abcdef0123456789" and password: hunter2hunter`

	var r Redactor
	m := r.Mask(text)

	assert.Contains(t, m.MaskedText, "[EMAIL_REDACTED_1]")
	assert.Contains(t, m.MaskedText, "[PHONE_REDACTED_1]")
	assert.Contains(t, m.MaskedText, "[API_KEY_REDACTED_1]")
	assert.Contains(t, m.MaskedText, "[PASSWORD_REDACTED_1]")

	assert.NotContains(t, m.MaskedText, "jane@example.com")
	assert.NotContains(t, m.MaskedText, "555-1234")
	assert.NotContains(t, m.MaskedText, "sk_live_abcdef0123456789")
	assert.NotContains(t, m.MaskedText, "hunter2hunter")

	assert.Equal(t, "jane@example.com", m.Mappings["[EMAIL_REDACTED_1]"])
	assert.Equal(t, "555-1234", m.Mappings["[PHONE_REDACTED_1]"])
	assert.Equal(t, "sk_live_abcdef0123456789", m.Mappings["[API_KEY_REDACTED_1]"])
	assert.Equal(t, "hunter2hunter", m.Mappings["[PASSWORD_REDACTED_1]"])
}

func TestRedactor_APIKeyPreservesPrefixAndQuotes(t *testing.T) {
	var r Redactor
	m := r.Mask(`api_key: "sk_live_abcdef0123456789"`)
	assert.Equal(t, `api_key: "[API_KEY_REDACTED_1]"`, m.MaskedText)
}

func TestRedactor_MaskRestoreRoundTrip(t *testing.T) {
	text := "Email jane@example.com, phone 555-9876, token: abcdefghij1234567890xyz"

	var r Redactor
	m := r.Mask(text)
	require.NotEqual(t, text, m.MaskedText)

	restored := r.Restore(m.MaskedText, m.Mappings)
	assert.Equal(t, text, restored)
}

func TestRedactor_NoPIIReturnsTextUnchanged(t *testing.T) {
	var r Redactor
	m := r.Mask("nothing sensitive here")
	assert.Equal(t, "nothing sensitive here", m.MaskedText)
	assert.Empty(t, m.Mappings)
}

func TestRedactor_SequentialCounterPerCategory(t *testing.T) {
	var r Redactor
	m := r.Mask("a@example.com b@example.com")
	assert.Contains(t, m.MaskedText, "[EMAIL_REDACTED_1]")
	assert.Contains(t, m.MaskedText, "[EMAIL_REDACTED_2]")
	assert.Equal(t, "a@example.com", m.Mappings["[EMAIL_REDACTED_1]"])
	assert.Equal(t, "b@example.com", m.Mappings["[EMAIL_REDACTED_2]"])
}
