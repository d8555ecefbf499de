package shared

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestGetContextUint(t *testing.T) {
	c, w := newTestContext()
	if _, ok := GetContextUint(c, "operator_id"); ok || w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key should be unauthorized, ok=%v code=%d", ok, w.Code)
	}

	c, _ = newTestContext()
	c.Set("operator_id", uint(7))
	if id, ok := GetContextUint(c, "operator_id"); !ok || id != 7 {
		t.Fatalf("unexpected id=%d ok=%v", id, ok)
	}

	c, w = newTestContext()
	c.Set("operator_id", "7")
	if _, ok := GetContextUint(c, "operator_id"); ok || w.Code != http.StatusInternalServerError {
		t.Fatalf("wrong type should be internal error, ok=%v code=%d", ok, w.Code)
	}
}

func TestRespondErrorCarriesRequestID(t *testing.T) {
	c, w := newTestContext()
	c.Set("request_id", "req-abc")
	RespondError(c, 404, "not found", nil)
	if w.Code != http.StatusNotFound || !strings.Contains(w.Body.String(), "req-abc") {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if RequestID(c) != "req-abc" {
		t.Fatalf("request id not readable")
	}
}

func TestNormalizePagination(t *testing.T) {
	cases := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, defaultPageSize},
		{3, 50, 3, 50},
		{-1, 1000, 1, maxPageSize},
	}
	for _, tc := range cases {
		page, size := NormalizePagination(tc.page, tc.size)
		if page != tc.wantPage || size != tc.wantSize {
			t.Fatalf("NormalizePagination(%d,%d) = %d,%d", tc.page, tc.size, page, size)
		}
	}
	if got := TotalPages(41, 20); got != 3 {
		t.Fatalf("total pages want 3 got %d", got)
	}
	if got := TotalPages(0, 20); got != 0 {
		t.Fatalf("total pages want 0 got %d", got)
	}
}
