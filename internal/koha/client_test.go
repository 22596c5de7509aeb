package koha

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"patron-sync/internal/config"
	"patron-sync/internal/model"
	"patron-sync/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.LibraryAPI.BaseURL = baseURL
	cfg.LibraryAPI.ClientID = "patron-sync"
	cfg.LibraryAPI.ClientSecret = "s3cret"
	cfg.LibraryAPI.Timeout = 5 * time.Second
	return cfg
}

func TestFetchToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/token", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "patron-sync", r.PostForm.Get("client_id"))
		assert.Equal(t, "s3cret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-123","token_type":"Bearer","expires_in":3600}`)
	}))
	defer server.Close()

	token, err := FetchToken(context.Background(), testConfig(server.URL))
	require.NoError(t, err)
	assert.Equal(t, "tok-123", token)
}

func TestFetchToken_Failure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":"invalid_client"}`)
	}))
	defer server.Close()

	_, err := FetchToken(context.Background(), testConfig(server.URL))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAuthenticationFailed)
}

func TestFindByUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/patrons", r.URL.Path)
		assert.Equal(t, "alee", r.URL.Query().Get("userid"))
		assert.Equal(t, "exact", r.URL.Query().Get("_match"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"patron_id": 42, "userid": "alee", "cardnumber": "111", "firstname": "Ann", "surname": "Lee"}]`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), "tok")
	patrons, err := client.FindByUsername(context.Background(), "alee")
	require.NoError(t, err)
	require.Len(t, patrons, 1)

	assert.Equal(t, "42", patrons[0].ID())
	assert.Equal(t, json.Number("42"), patrons[0]["patron_id"])
	assert.Equal(t, "111", patrons[0].CardNumber())
}

func TestFindByUsername_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error":"boom"}`)
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), "tok")
	_, err := client.FindByUsername(context.Background(), "alee")
	require.Error(t, err)

	var httpErr *errors.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Status)
	assert.Contains(t, httpErr.Body, "boom")
	assert.True(t, errors.IsHTTPStatus(err, http.StatusInternalServerError))
}

func TestGetUpdateDelete(t *testing.T) {
	var updated map[string]any
	var deleted bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/patrons/42":
			_, _ = io.WriteString(w, `{"patron_id": 42, "userid": "alee", "cardnumber": "111", "anonymized": false}`)
		case r.Method == http.MethodPut && r.URL.Path == "/patrons/42":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&updated))
			_, _ = io.WriteString(w, `{"patron_id": 42, "userid": "alee", "cardnumber": "222"}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/patrons/42":
			deleted = true
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(testConfig(server.URL), "tok")
	ctx := context.Background()

	patron, err := client.Get(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "alee", patron.UserID())

	payload := patron.Clone().StripReadOnly()
	payload["cardnumber"] = "222"
	result, err := client.Update(ctx, "42", payload)
	require.NoError(t, err)
	assert.Equal(t, "222", result.CardNumber())
	assert.Equal(t, "222", updated["cardnumber"])
	assert.NotContains(t, updated, "anonymized")
	assert.NotContains(t, updated, "patron_id")

	require.NoError(t, client.Delete(ctx, "42"))
	assert.True(t, deleted)

	_, err = client.Get(ctx, "7")
	assert.True(t, errors.IsHTTPStatus(err, http.StatusNotFound))
	assert.ErrorIs(t, err, errors.ErrPatronNotFound)

	err = client.Delete(ctx, "7")
	assert.ErrorIs(t, err, errors.ErrPatronNotFound)
}

func TestCreate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/patrons", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SF", body["library_id"])
		assert.Equal(t, "STAFF", body["category_id"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"patron_id": 99, "userid": "new"}`)
	}))
	defer server.Close()

	mapped := &model.MappedPatron{BranchCode: "SF", CategoryCode: "STAFF", UserID: "new"}
	created, err := NewClient(testConfig(server.URL), "tok").Create(context.Background(), mapped.ToAPIPatron())
	require.NoError(t, err)
	assert.Equal(t, "99", created.ID())
}

func TestConnect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/oauth/token" {
			_, _ = io.WriteString(w, `{"access_token":"tok-abc","token_type":"Bearer"}`)
			return
		}
		assert.Equal(t, "Bearer tok-abc", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `[]`)
	}))
	defer server.Close()

	client, err := Connect(context.Background(), testConfig(server.URL))
	require.NoError(t, err)

	patrons, err := client.FindByUsername(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Empty(t, patrons)
}
