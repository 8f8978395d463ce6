package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"busboard/internal/adapters/imagestore"
	"busboard/internal/adapters/memory"
	"busboard/internal/services/contributions"
	"busboard/internal/services/moderation"
	"busboard/internal/services/publish"
)

type noopNotifier struct{}

func (noopNotifier) RouteApproved(ctx context.Context, id, busNumber, from, to string) error {
	return nil
}
func (noopNotifier) RouteRejected(ctx context.Context, id, reason string) error { return nil }
func (noopNotifier) ImageApproved(ctx context.Context, id string) error         { return nil }
func (noopNotifier) ImageRejected(ctx context.Context, id, reason string) error { return nil }

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	images, err := imagestore.NewFS(t.TempDir())
	require.NoError(t, err)

	contribSvc := contributions.New(store, images)
	modSvc := moderation.New(store, store, publish.New(store), noopNotifier{}, nil)
	srv := httptest.NewServer(New(contribSvc, modSvc, nil).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

const routeBody = `{
	"submittedBy": "user-1",
	"busNumber": "27D",
	"fromName": "Sivakasi",
	"toName": "Madurai",
	"departureTime": "06:00",
	"arrivalTime": "08:30"
}`

func TestSubmitAndFetchRoute(t *testing.T) {
	srv := newTestServer(t)

	resp, created := postJSON(t, srv.URL+"/contributions/route", routeBody)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "PENDING", created["status"])
	id := created["id"].(string)
	require.NotEmpty(t, id)

	getResp, err := http.Get(srv.URL + "/contributions/" + id)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var got map[string]any
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&got))
	assert.Equal(t, "27D", got["busNumber"])
	assert.Equal(t, "ROUTE", got["type"])
}

func TestSubmitRouteMissingFields(t *testing.T) {
	srv := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/contributions/route", `{"submittedBy": "user-1"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitImage(t *testing.T) {
	srv := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("submittedBy", "user-1"))
	require.NoError(t, mw.WriteField("description", "schedule board"))
	part, err := mw.CreateFormFile("image", "schedule.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/contributions/image", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var created map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, "PENDING", created["status"])
	assert.Equal(t, "IMAGE", created["type"])
}

func TestGetContributionNotFound(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/contributions/no-such-id")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestModerationEndpoints(t *testing.T) {
	srv := newTestServer(t)

	_, created := postJSON(t, srv.URL+"/contributions/route", routeBody)
	id := created["id"].(string)

	resp, approved := postJSON(t, srv.URL+"/admin/contributions/route/"+id+"/approve", `{"notes":"checked"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "APPROVED", approved["status"])

	// Idempotent re-approval.
	resp, again := postJSON(t, srv.URL+"/admin/contributions/route/"+id+"/approve", `{}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "APPROVED", again["status"])

	// Rejecting an approved item is an invalid-state conflict.
	resp, _ = postJSON(t, srv.URL+"/admin/contributions/route/"+id+"/reject", `{"reason":"nope"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestUserContributionsAndStats(t *testing.T) {
	srv := newTestServer(t)

	_, _ = postJSON(t, srv.URL+"/contributions/route", routeBody)

	resp, err := http.Get(srv.URL + "/users/user-1/contributions")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Routes []map[string]any `json:"routes"`
		Images []map[string]any `json:"images"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&listing))
	assert.Len(t, listing.Routes, 1)
	assert.Empty(t, listing.Images)

	statsResp, err := http.Get(srv.URL + "/admin/stats")
	require.NoError(t, err)
	defer statsResp.Body.Close()
	require.Equal(t, http.StatusOK, statsResp.StatusCode)

	var stats map[string]map[string]int
	require.NoError(t, json.NewDecoder(statsResp.Body).Decode(&stats))
	assert.Equal(t, 1, stats["ROUTE"]["PENDING"])
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
