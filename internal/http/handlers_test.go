package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketplace/internal/repository"
	"marketplace/internal/service"
)

func setupServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store, err := repository.NewFileStore(repository.LedgersIn(t.TempDir()), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return NewServer(service.NewMarketPlaceService(store, store, zap.NewNop()), zap.NewNop())
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var e envelope
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return e
}

func createMarket(t *testing.T, s *Server, name string) string {
	t.Helper()
	w := doJSON(t, s, http.MethodPost, "/api/v1/markets", map[string]any{"name": name, "address": "Main 1"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create market %v: %s", w.Code, w.Body.String())
	}
	var id string
	if err := json.Unmarshal(decode(t, w).Data, &id); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestMarketplaceFlow(t *testing.T) {
	s := setupServer(t)
	id := createMarket(t, s, "Corner")

	// products
	for _, name := range []string{"apple", "banana"} {
		w := doJSON(t, s, http.MethodPost, "/api/v1/products", map[string]any{"name": name})
		if w.Code != http.StatusCreated {
			t.Fatalf("create product %v", w.Code)
		}
	}
	w := doJSON(t, s, http.MethodGet, "/api/v1/products/apple", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get product %v", w.Code)
	}

	// stock
	w = doJSON(t, s, http.MethodPost, "/api/v1/markets/"+id+"/products", map[string]any{
		"product_name": "apple", "amount": 10, "price": "2.00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("stock apple %v: %s", w.Code, w.Body.String())
	}
	w = doJSON(t, s, http.MethodPost, "/api/v1/markets/"+id+"/products", map[string]any{
		"product_name": "banana", "amount": 5, "price": 1,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("stock banana %v", w.Code)
	}

	// affordable
	w = doJSON(t, s, http.MethodGet, "/api/v1/markets/"+id+"/affordable?budget=9", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("affordable %v", w.Code)
	}
	var counts map[string]int
	if err := json.Unmarshal(decode(t, w).Data, &counts); err != nil {
		t.Fatal(err)
	}
	if counts["apple"] != 4 || counts["banana"] != 5 || len(counts) != 2 {
		t.Fatalf("affordable counts %v", counts)
	}

	// cheapest market
	w = doJSON(t, s, http.MethodGet, "/api/v1/products/apple/cheapest-market", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cheapest %v", w.Code)
	}

	// purchase
	w = doJSON(t, s, http.MethodPost, "/api/v1/markets/"+id+"/purchase", map[string]any{
		"items": []map[string]any{{"product_name": "apple", "amount": 3}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("purchase %v: %s", w.Code, w.Body.String())
	}
	var total string
	if err := json.Unmarshal(decode(t, w).Data, &total); err != nil {
		t.Fatal(err)
	}
	if total != "6" {
		t.Fatalf("total %q", total)
	}

	// batch
	w = doJSON(t, s, http.MethodPost, "/api/v1/batch/best-market", map[string]any{
		"items": []map[string]any{{"product_name": "apple", "amount": 7}, {"product_name": "banana", "amount": 5}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("batch %v", w.Code)
	}

	// list
	w = doJSON(t, s, http.MethodGet, "/api/v1/markets", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/markets/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get market %v", w.Code)
	}
}

func TestHTTP_BadRequests(t *testing.T) {
	s := setupServer(t)
	id := createMarket(t, s, "A")

	// invalid product body
	w := doJSON(t, s, http.MethodPost, "/api/v1/products", map[string]any{"name": ""})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
	if e := decode(t, w); e.Code != string(service.CodeBadRequest) {
		t.Fatalf("expected BadRequest code, got %s", e.Code)
	}

	// invalid id
	w = doJSON(t, s, http.MethodGet, "/api/v1/markets/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// budget must be a number
	w = doJSON(t, s, http.MethodGet, "/api/v1/markets/"+id+"/affordable?budget=lots", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// negative amount
	_ = doJSON(t, s, http.MethodPost, "/api/v1/products", map[string]any{"name": "apple"})
	w = doJSON(t, s, http.MethodPost, "/api/v1/markets/"+id+"/products", map[string]any{
		"product_name": "apple", "amount": -1, "price": 1,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}

	// items without product name
	w = doJSON(t, s, http.MethodPost, "/api/v1/batch/best-market", map[string]any{
		"items": []map[string]any{{"amount": 1}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
}

func TestHTTP_NotFound_Conflict(t *testing.T) {
	s := setupServer(t)

	// not found
	w := doJSON(t, s, http.MethodGet, "/api/v1/products/ghost", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", w.Code)
	}
	w = doJSON(t, s, http.MethodGet, "/api/v1/products/ghost/cheapest-market", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", w.Code)
	}

	// duplicate product
	_ = doJSON(t, s, http.MethodPost, "/api/v1/products", map[string]any{"name": "apple"})
	w = doJSON(t, s, http.MethodPost, "/api/v1/products", map[string]any{"name": "apple"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %v", w.Code)
	}
	if e := decode(t, w); e.Message != "Product with name 'apple' already exists." {
		t.Fatalf("message %q", e.Message)
	}

	// not enough stock
	id := createMarket(t, s, "A")
	_ = doJSON(t, s, http.MethodPost, "/api/v1/markets/"+id+"/products", map[string]any{
		"product_name": "apple", "amount": 1, "price": 1,
	})
	w = doJSON(t, s, http.MethodPost, "/api/v1/markets/"+id+"/purchase", map[string]any{
		"items": []map[string]any{{"product_name": "apple", "amount": 2}},
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", w.Code)
	}
	if e := decode(t, w); e.Code != string(service.CodeInsufficientStock) {
		t.Fatalf("expected InsufficientStock, got %s", e.Code)
	}
}
