/*
 * Copyright 2026 The Margo Authors. All rights reserved.
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

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidation(t *testing.T) {
	t.Run("role rule test", func(t *testing.T) {
		assert.NoError(t, ValidateValue("commenter", "docrole"))
		assert.NoError(t, ValidateValue("admin", "docrole"))
		assert.Error(t, ValidateValue("owner", "docrole"))
		assert.Error(t, ValidateValue("", "docrole"))
	})

	t.Run("username rule test", func(t *testing.T) {
		assert.NoError(t, ValidateValue("alice-01", "username"))
		assert.Error(t, ValidateValue("A", "username"))
		assert.Error(t, ValidateValue("has space", "username"))
	})

	t.Run("struct validation test", func(t *testing.T) {
		type req struct {
			Title string `validate:"required,min=1,max=200"`
			Role  string `validate:"required,docrole"`
		}

		assert.NoError(t, ValidateStruct(req{Title: "Q3 report", Role: "editor"}))

		err := ValidateStruct(req{Title: "", Role: "boss"})
		assert.Error(t, err)
		structErr, ok := err.(StructError)
		assert.True(t, ok)
		assert.Len(t, structErr.Violations, 2)
	})
}
