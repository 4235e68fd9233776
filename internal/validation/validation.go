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

// Package validation provides field validation for user-provided values such
// as titles, usernames and role names.
package validation

import (
	"fmt"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

var (
	defaultValidator = validator.New()

	defaultEn = en.New()
	uni       = ut.New(defaultEn, defaultEn)
	trans, _  = uni.GetTranslator(defaultEn.Locale())
)

func init() {
	if err := entranslations.RegisterDefaultTranslations(defaultValidator, trans); err != nil {
		panic(fmt.Sprintf("register default translations: %v", err))
	}

	registerRule("docrole", func(fl validator.FieldLevel) bool {
		switch fl.Field().String() {
		case "viewer", "commenter", "editor", "admin":
			return true
		default:
			return false
		}
	}, "{0} must be one of viewer, commenter, editor, admin")

	registerRule("username", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		if len(name) < 2 || len(name) > 30 {
			return false
		}
		for _, r := range name {
			isLower := r >= 'a' && r <= 'z'
			isDigit := r >= '0' && r <= '9'
			if !isLower && !isDigit && r != '-' && r != '.' && r != '_' {
				return false
			}
		}
		return true
	}, "{0} must be 2 to 30 lowercase letters, digits or -._")
}

func registerRule(tag string, fn validator.Func, msg string) {
	if err := defaultValidator.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}

	if err := defaultValidator.RegisterTranslation(
		tag,
		trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, msg, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			t, _ := ut.T(tag, fe.Field())
			return t
		},
	); err != nil {
		panic(fmt.Sprintf("register translation %s: %v", tag, err))
	}
}

// Violation is a single failed validation rule.
type Violation struct {
	Tag         string
	Field       string
	Description string
}

// Error returns the human readable description of this violation.
func (v Violation) Error() string {
	return v.Description
}

// StructError aggregates the violations of a struct validation.
type StructError struct {
	Violations []Violation
}

// Error returns the joined messages of all violations.
func (s StructError) Error() string {
	sb := strings.Builder{}
	for i, v := range s.Violations {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(v.Error())
	}
	return sb.String()
}

// ValidateStruct validates the given struct by its field tags.
func ValidateStruct(s any) error {
	if err := defaultValidator.Struct(s); err != nil {
		structErr := StructError{}
		for _, e := range err.(validator.ValidationErrors) {
			structErr.Violations = append(structErr.Violations, Violation{
				Tag:         e.Tag(),
				Field:       e.Field(),
				Description: e.Translate(trans),
			})
		}
		return structErr
	}
	return nil
}

// ValidateValue validates a single value against the given rule tag.
func ValidateValue(v any, tag string) error {
	if err := defaultValidator.Var(v, tag); err != nil {
		for _, e := range err.(validator.ValidationErrors) {
			return Violation{
				Tag:         e.Tag(),
				Description: e.Translate(trans),
			}
		}
	}
	return nil
}
