package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"mspro-labs/tender-pricer/internal/db"
	"mspro-labs/tender-pricer/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	database, err := db.Connect(filepath.Join(t.TempDir(), "web.db"))
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	items := []models.ItemResult{
		{Index: 0, Name: "Насос центробежный", Status: models.StatusSuccess, Result: models.PriceResult{
			Regular: models.Found("1 040 ₽"), Business: models.Found("1 248 ₽"), Link: "https://market.yandex.ru/product/1",
		}},
		{Index: 1, Name: "Кабель ВВГ", Status: models.StatusNotFound},
	}
	if err := db.CreateRun(database, db.Run{ID: "run-1", InputPath: "tender.xlsx", OutputPath: "out.xlsx"}, items); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	router, err := NewRouter(database)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return router
}

func get(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRunsPage(t *testing.T) {
	router := setupRouter(t)

	w := get(router, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/runs/run-1") {
		t.Errorf("Run link missing from page")
	}

	w = get(router, "/runs/run-1")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"Насос центробежный", "1 040 ₽", "ССЫЛКА", "not_found"} {
		if !strings.Contains(body, want) {
			t.Errorf("Run page missing %q", want)
		}
	}

	if w := get(router, "/runs/missing"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestRunsAPI(t *testing.T) {
	router := setupRouter(t)

	w := get(router, "/api/runs")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var runs []map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(runs) != 1 || runs[0]["id"] != "run-1" {
		t.Errorf("Unexpected runs: %v", runs)
	}

	w = get(router, "/api/runs/run-1")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var run struct {
		ID    string     `json:"id"`
		Items []ItemView `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if len(run.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(run.Items))
	}
	if run.Items[0].Price != "1 040 ₽" || run.Items[0].Link == "" {
		t.Errorf("Item 0 wrong: %+v", run.Items[0])
	}
	if run.Items[1].Price != "—" || run.Items[1].Status != "not_found" {
		t.Errorf("Item 1 wrong: %+v", run.Items[1])
	}

	if w := get(router, "/api/runs/missing"); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
