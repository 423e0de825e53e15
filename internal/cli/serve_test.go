package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/temotskipa/autoredistrict/pkg/adjacency"
	"github.com/temotskipa/autoredistrict/pkg/census"
	apperrors "github.com/temotskipa/autoredistrict/pkg/errors"
	"github.com/temotskipa/autoredistrict/pkg/partition"
	"github.com/temotskipa/autoredistrict/pkg/pipeline"
	"github.com/temotskipa/autoredistrict/pkg/plan"
	"github.com/temotskipa/autoredistrict/pkg/planstore"
)

// newTestServer wires a server with caching disabled and a file store in a
// temp directory.
func newTestServer(t *testing.T) *server {
	t.Helper()
	store, err := planstore.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := log.New(io.Discard)
	return &server{
		logger: logger,
		runner: pipeline.NewRunner(nil, nil, logger),
		store:  store,
	}
}

// doRequest runs one request through the full router.
func doRequest(t *testing.T, h http.Handler, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// decodeErrorCode pulls the code out of the error envelope.
func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("Unmarshal error envelope: %v (body %s)", err, body)
	}
	return resp.Error.Code
}

func TestServerHealth(t *testing.T) {
	h := newTestServer(t).routes()

	w := doRequest(t, h, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %q, want %q", resp["status"], "ok")
	}
}

func TestServerVersion(t *testing.T) {
	h := newTestServer(t).routes()

	w := doRequest(t, h, http.MethodGet, "/api/v1/version", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if resp["version"] == "" {
		t.Error("version field should not be empty")
	}
}

func TestServerPlanLifecycle(t *testing.T) {
	h := newTestServer(t).routes()

	// Create
	body := []byte(`{"demo": 4, "options": {"districts": 4}}`)
	w := doRequest(t, h, http.MethodPost, "/api/v1/plans", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}

	var created plan.Plan
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(created.Districts) != 4 {
		t.Errorf("districts = %d, want 4", len(created.Districts))
	}
	if created.ID == "" {
		t.Fatal("created plan has no ID")
	}
	if loc := w.Header().Get("Location"); loc != "/api/v1/plans/"+created.ID {
		t.Errorf("Location = %q, want %q", loc, "/api/v1/plans/"+created.ID)
	}

	// List
	w = doRequest(t, h, http.MethodGet, "/api/v1/plans", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want %d", w.Code, http.StatusOK)
	}
	var listed struct {
		Plans []planstore.Info `json:"plans"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(listed.Plans) != 1 || listed.Plans[0].ID != created.ID {
		t.Errorf("list = %+v, want one entry with ID %s", listed.Plans, created.ID)
	}

	// Get
	w = doRequest(t, h, http.MethodGet, "/api/v1/plans/"+created.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want %d", w.Code, http.StatusOK)
	}
	var fetched plan.Plan
	if err := json.Unmarshal(w.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if fetched.ID != created.ID {
		t.Errorf("fetched ID = %q, want %q", fetched.ID, created.ID)
	}

	// Delete
	w = doRequest(t, h, http.MethodDelete, "/api/v1/plans/"+created.ID, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", w.Code, http.StatusNoContent)
	}

	// Get after delete
	w = doRequest(t, h, http.MethodGet, "/api/v1/plans/"+created.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if code := decodeErrorCode(t, w.Body.Bytes()); code != "NOT_FOUND" {
		t.Errorf("error code = %q, want %q", code, "NOT_FOUND")
	}
}

func TestServerListPlansEmpty(t *testing.T) {
	h := newTestServer(t).routes()

	w := doRequest(t, h, http.MethodGet, "/api/v1/plans", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if !strings.Contains(w.Body.String(), `"plans":[]`) {
		t.Errorf("empty list body = %s, want plans as empty array", w.Body.String())
	}
}

func TestServerCreatePlanInlineGeoJSON(t *testing.T) {
	h := newTestServer(t).routes()

	// Two unit squares sharing the x=1 edge.
	geojson := `{
		"type": "FeatureCollection",
		"features": [
			{
				"type": "Feature",
				"properties": {"GEOID": "A", "pop": 100},
				"geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}
			},
			{
				"type": "Feature",
				"properties": {"GEOID": "B", "pop": 100},
				"geometry": {"type": "Polygon", "coordinates": [[[1,0],[2,0],[2,1],[1,1],[1,0]]]}
			}
		]
	}`
	body := []byte(`{"geojson": ` + geojson + `, "options": {"districts": 2}}`)

	w := doRequest(t, h, http.MethodPost, "/api/v1/plans", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusCreated, w.Body.String())
	}

	var created plan.Plan
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if len(created.Districts) != 2 {
		t.Fatalf("districts = %d, want 2", len(created.Districts))
	}
	for _, d := range created.Districts {
		if len(d.Units) != 1 {
			t.Errorf("district %d has %d units, want 1", d.ID, len(d.Units))
		}
		if d.Population != 100 {
			t.Errorf("district %d population = %d, want 100", d.ID, d.Population)
		}
	}
}

func TestServerCreatePlanInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"demo": `},
		{"no input source", `{"options": {"districts": 2}}`},
		{"zero districts", `{"demo": 4, "options": {"districts": 0}}`},
		{"too many districts", `{"demo": 2, "options": {"districts": 10}}`},
	}

	h := newTestServer(t).routes()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, h, http.MethodPost, "/api/v1/plans", []byte(tt.body))
			if w.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusBadRequest, w.Body.String())
			}
			if code := decodeErrorCode(t, w.Body.Bytes()); code != "INVALID_INPUT" {
				t.Errorf("error code = %q, want %q", code, "INVALID_INPUT")
			}
		})
	}
}

func TestServerDeletePlanNotFound(t *testing.T) {
	h := newTestServer(t).routes()

	w := doRequest(t, h, http.MethodDelete, "/api/v1/plans/absent", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
	if code := decodeErrorCode(t, w.Body.Bytes()); code != "NOT_FOUND" {
		t.Errorf("error code = %q, want %q", code, "NOT_FOUND")
	}
}

func TestServerApportionment(t *testing.T) {
	h := newTestServer(t).routes()

	body := []byte(`{"populations": {"Alpha": 6000, "Beta": 3000, "Gamma": 1000}, "house_size": 10}`)
	w := doRequest(t, h, http.MethodPost, "/api/v1/apportionment", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusOK, w.Body.String())
	}

	var result struct {
		HouseSize int            `json:"house_size"`
		Seats     map[string]int `json:"seats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	total := 0
	for _, n := range result.Seats {
		total += n
	}
	if total != 10 {
		t.Errorf("seat total = %d, want 10", total)
	}
}

func TestServerApportionmentHouseTooSmall(t *testing.T) {
	h := newTestServer(t).routes()

	body := []byte(`{"populations": {"Alpha": 6000, "Beta": 3000, "Gamma": 1000}, "house_size": 2}`)
	w := doRequest(t, h, http.MethodPost, "/api/v1/apportionment", body)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d (body %s)", w.Code, http.StatusBadRequest, w.Body.String())
	}
	if code := decodeErrorCode(t, w.Body.Bytes()); code != "INVALID_INPUT" {
		t.Errorf("error code = %q, want %q", code, "INVALID_INPUT")
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Code
	}{
		{"structured store error", apperrors.New(apperrors.ErrCodeStore, "save failed"), apperrors.ErrCodeStore},
		{"plan not found", planstore.ErrNotFound, apperrors.ErrCodeNotFound},
		{"disconnected units", adjacency.ErrDisconnected, apperrors.ErrCodeDisconnected},
		{"infeasible split", partition.ErrInfeasible, apperrors.ErrCodeInfeasible},
		{"invalid options", partition.ErrInvalidOptions, apperrors.ErrCodeInvalidInput},
		{"duplicate unit", census.ErrDuplicateID, apperrors.ErrCodeInvalidInput},
		{"pipeline validation", pipeline.ErrInvalidOptions, apperrors.ErrCodeInvalidInput},
		{"unknown", errors.New("boom"), apperrors.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorCode(tt.err); got != tt.want {
				t.Errorf("errorCode(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}
