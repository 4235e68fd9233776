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

package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/margolab/margo/pkg/errors"
	"github.com/margolab/margo/server/logging"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.DefaultLogger().Warnf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if code := errors.StatusOf(err); code != 0 {
		status = code.HTTPStatus()
	}

	if errors.IsServerError(err) || status == http.StatusInternalServerError {
		logging.From(r.Context()).Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	}

	writeJSON(w, status, errorBody{
		Error: err.Error(),
		Code:  errors.CodeOf(err),
	})
}

// readJSON decodes the request body into target, rejecting unknown fields.
func readJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return errors.InvalidArgument("invalid request body").WithCode("ErrInvalidRequestBody")
	}
	return nil
}
