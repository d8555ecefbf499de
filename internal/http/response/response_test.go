package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestErrorUsesCodeAsHTTPStatusAndCarriesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(requestIDKey, "req-9")

	Error(c, CodeConflict, "only events in error status can be replayed")

	if w.Code != http.StatusConflict {
		t.Fatalf("http status want 409 got %d", w.Code)
	}
	var body struct {
		StatusCode int    `json:"status_code"`
		Msg        string `json:"msg"`
		Data       struct {
			RequestID string `json:"request_id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if body.StatusCode != CodeConflict || body.Data.RequestID != "req-9" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestSuccessWithPageFlattensEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SuccessWithPage(c, []int{1, 2}, Pagination{Page: 1, PageSize: 2, Total: 3, TotalPage: 2})

	var body map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	for _, key := range []string{"status_code", "msg", "data", "pagination"} {
		if _, ok := body[key]; !ok {
			t.Fatalf("missing top-level key %s in %s", key, w.Body.String())
		}
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[int]int{CodeOK: 200, CodeBadRequest: 400, CodeTooManyRequests: 429, CodeInternal: 500, 1001: 200}
	for code, want := range cases {
		if got := HTTPStatus(code); got != want {
			t.Fatalf("HTTPStatus(%d) want %d got %d", code, want, got)
		}
	}
}
