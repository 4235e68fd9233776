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

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/margolab/margo/api/types"
	"github.com/margolab/margo/server/backend"
	"github.com/margolab/margo/server/httpapi"
	"github.com/margolab/margo/server/sync"
	"github.com/margolab/margo/server/users"
	"github.com/margolab/margo/test/helper"
)

func testServer(t *testing.T) (*httptest.Server, *backend.Backend) {
	t.Helper()

	be := helper.TestBackend(t)
	tokens := users.NewTokenManager(be.Config.SecretKey, be.Config.ParseAuthTokenDuration())
	syncServer := sync.NewServer(
		&sync.Config{IdleTimeout: "10s", MaxMessageSize: 1 << 20},
		be,
		tokens,
	)

	server := httptest.NewServer(httpapi.NewHandler(be, tokens, syncServer))
	t.Cleanup(server.Close)
	return server, be
}

func doJSON(
	t *testing.T,
	method string,
	url string,
	token string,
	body any,
) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, url, reader)
	assert.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	assert.NoError(t, resp.Body.Close())
	return resp, raw
}

func signUpAndLogIn(t *testing.T, baseURL string, username string) string {
	t.Helper()

	credentials := map[string]string{"username": username, "password": "s3cret-password"}
	resp, _ := doJSON(t, http.MethodPost, baseURL+"/api/users/signup", "", credentials)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, raw := doJSON(t, http.MethodPost, baseURL+"/api/users/login", "", credentials)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	assert.NoError(t, json.Unmarshal(raw, &body))
	assert.NotEmpty(t, body["token"])
	return body["token"]
}

func uploadDocument(t *testing.T, baseURL string, token string, title string) types.DocumentSummary {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	assert.NoError(t, writer.WriteField("title", title))
	part, err := writer.CreateFormFile("file", title)
	assert.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.7 upload payload"))
	assert.NoError(t, err)
	assert.NoError(t, writer.Close())

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/documents", &buf)
	assert.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	assert.NoError(t, err)
	defer func() { assert.NoError(t, resp.Body.Close()) }()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var summary types.DocumentSummary
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	return summary
}

func TestHTTPAPI(t *testing.T) {
	t.Run("signup login and me test", func(t *testing.T) {
		server, _ := testServer(t)
		token := signUpAndLogIn(t, server.URL, "alice")

		resp, raw := doJSON(t, http.MethodGet, server.URL+"/api/users/me", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var me types.UserSummary
		assert.NoError(t, json.Unmarshal(raw, &me))
		assert.Equal(t, "alice", me.Username)
	})

	t.Run("protected route without token test", func(t *testing.T) {
		server, _ := testServer(t)

		resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/documents", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/documents", "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("document lifecycle test", func(t *testing.T) {
		server, _ := testServer(t)
		token := signUpAndLogIn(t, server.URL, "alice")

		created := uploadDocument(t, server.URL, token, "notes.pdf")
		assert.Equal(t, "notes.pdf", created.Title)
		assert.Equal(t, 1, created.Version)

		docURL := fmt.Sprintf("%s/api/documents/%s", server.URL, created.ID)
		resp, raw := doJSON(t, http.MethodGet, docURL, token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var fetched types.DocumentSummary
		assert.NoError(t, json.Unmarshal(raw, &fetched))
		assert.NotEmpty(t, fetched.DownloadURL)

		resp, raw = doJSON(t, http.MethodPatch, docURL, token, map[string]string{"title": "renamed.pdf"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NoError(t, json.Unmarshal(raw, &fetched))
		assert.Equal(t, "renamed.pdf", fetched.Title)

		resp, raw = doJSON(t, http.MethodGet, server.URL+"/api/documents", token, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var listed []types.DocumentSummary
		assert.NoError(t, json.Unmarshal(raw, &listed))
		assert.Len(t, listed, 1)

		resp, _ = doJSON(t, http.MethodDelete, docURL, token, nil)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodGet, docURL, token, nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("grants enforce roles over http test", func(t *testing.T) {
		server, be := testServer(t)
		ownerToken := signUpAndLogIn(t, server.URL, "owner")
		strangerToken := signUpAndLogIn(t, server.URL, "stranger")

		created := uploadDocument(t, server.URL, ownerToken, "shared.pdf")
		docURL := fmt.Sprintf("%s/api/documents/%s", server.URL, created.ID)

		// The stranger cannot see the document until granted.
		resp, _ := doJSON(t, http.MethodGet, docURL, strangerToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		stranger, err := be.DB.FindUserInfoByUsername(context.Background(), "stranger")
		assert.NoError(t, err)

		resp, _ = doJSON(t, http.MethodPut, docURL+"/grants", ownerToken, map[string]string{
			"user_id": stranger.ID.String(),
			"role":    "viewer",
		})
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(t, http.MethodGet, docURL, strangerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		// A viewer cannot rename.
		resp, _ = doJSON(t, http.MethodPatch, docURL, strangerToken, map[string]string{"title": "x"})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)

		// Only a grant manager may list grants.
		resp, _ = doJSON(t, http.MethodGet, docURL+"/grants", strangerToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		resp, _ = doJSON(t, http.MethodGet, docURL+"/grants", ownerToken, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = doJSON(
			t, http.MethodDelete, docURL+"/grants/"+stranger.ID.String(), ownerToken, nil,
		)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		resp, _ = doJSON(t, http.MethodGet, docURL, strangerToken, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("version history over http test", func(t *testing.T) {
		server, _ := testServer(t)
		token := signUpAndLogIn(t, server.URL, "alice")

		created := uploadDocument(t, server.URL, token, "notes.pdf")
		docURL := fmt.Sprintf("%s/api/documents/%s", server.URL, created.ID)

		var buf bytes.Buffer
		writer := multipart.NewWriter(&buf)
		assert.NoError(t, writer.WriteField("note", "second draft"))
		part, err := writer.CreateFormFile("file", "notes.pdf")
		assert.NoError(t, err)
		_, err = part.Write([]byte("%PDF-1.7 second draft"))
		assert.NoError(t, err)
		assert.NoError(t, writer.Close())

		req, err := http.NewRequest(http.MethodPost, docURL+"/versions", &buf)
		assert.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		resp, err := http.DefaultClient.Do(req)
		assert.NoError(t, err)
		assert.NoError(t, resp.Body.Close())
		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		listResp, raw := doJSON(t, http.MethodGet, docURL+"/versions", token, nil)
		assert.Equal(t, http.StatusOK, listResp.StatusCode)
		var history []types.VersionSummary
		assert.NoError(t, json.Unmarshal(raw, &history))
		assert.Len(t, history, 2)
		assert.True(t, history[0].Current)
		assert.Equal(t, 2, history[0].Version)

		restoreResp, raw := doJSON(t, http.MethodPost, docURL+"/versions/1/restore", token, nil)
		assert.Equal(t, http.StatusOK, restoreResp.StatusCode)
		var restored types.DocumentSummary
		assert.NoError(t, json.Unmarshal(raw, &restored))
		assert.Equal(t, 3, restored.Version)

		badResp, _ := doJSON(t, http.MethodPost, docURL+"/versions/not-a-number/restore", token, nil)
		assert.Equal(t, http.StatusBadRequest, badResp.StatusCode)
	})
}
