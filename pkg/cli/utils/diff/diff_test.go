/* Copyright 2025 Garahe Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package diff

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/garahe/garahe/pkg/assert"
)

func TestDo(t *testing.T) {
	diffs := Do("line1\nline2\n", "line1\nline2\n")
	assert.Equal(t, len(diffs), 1, "diff count mismatch")
	assert.Equal(t, diffs[0].Type, DiffEqual, "diff type mismatch")

	diffs = Do("line1\nold\n", "line1\nnew\n")

	var deleted, inserted string
	for _, d := range diffs {
		switch d.Type {
		case DiffDelete:
			deleted += d.Text
		case DiffInsert:
			inserted += d.Text
		}
	}
	assert.Equal(t, deleted, "old\n", "deleted text mismatch")
	assert.Equal(t, inserted, "new\n", "inserted text mismatch")
}

func TestFormat(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = noColor }()

	got := Format("\"name\": \"brake pad\"\n\"stock\": 12\n", "\"name\": \"brake pad\"\n\"stock\": 7\n")

	assert.Equal(t, strings.Contains(got, "  \"name\": \"brake pad\"\n"), true, "equal line missing")
	assert.Equal(t, strings.Contains(got, "- \"stock\": 12\n"), true, "deleted line missing")
	assert.Equal(t, strings.Contains(got, "+ \"stock\": 7\n"), true, "inserted line missing")
}
