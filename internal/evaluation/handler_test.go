package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	httperr "github.com/xtal-lab/xtal/internal/core/errors"
)

func newRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc.RegisterRoutes(r)
	return r
}

func TestEvaluateHandler_Success(t *testing.T) {
	svc := newTestService(t, DefaultConfig(), nil)
	r := newRouter(svc)

	body, _ := json.Marshal(Request{SourceText: "1 + 1;\n'a';"})
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var out Outcome
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Equal(t, Outcome{Result: "2\na\n", Errors: []string{}, State: StateCompleted}, out)
}

func TestEvaluateHandler_ScriptErrorsAreNotHTTPErrors(t *testing.T) {
	svc := newTestService(t, DefaultConfig(), nil)
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", strings.NewReader(`{"source_text": "1 +"}`))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var out Outcome
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.NotEmpty(t, out.Errors)
	require.Empty(t, out.Result)
}

func TestEvaluateHandler_InvalidJSON(t *testing.T) {
	svc := newTestService(t, DefaultConfig(), nil)
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", strings.NewReader(`{"source_text": `))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
	var errResp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, httperr.HttpInvalidJsonError, errResp.ErrorType)
	require.Equal(t, msgInvalidJSON, errResp.Message)
}

func TestEvaluateHandler_BodyTooLarge(t *testing.T) {
	svc := newTestService(t, DefaultConfig(), nil)
	r := newRouter(svc)

	src := strings.Repeat("1;\n", 1024*1024/3+1)
	body, _ := json.Marshal(Request{SourceText: src})
	req := httptest.NewRequest(http.MethodPost, "/v1/evaluate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	var errResp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, httperr.HttpInvalidJsonError, errResp.ErrorType)
}

func TestEvaluateDocumentHandler(t *testing.T) {
	ctx := context.Background()
	docs := newDocuments()
	svc := newTestService(t, DefaultConfig(), docs)
	r := newRouter(svc)

	doc, err := docs.Create(ctx, "", "[1, 'x'];")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/"+doc.ID+"/evaluate", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var out Outcome
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &out))
	require.Equal(t, "[1, x]\n", out.Result)

	stored, err := docs.Get(ctx, doc.ID)
	require.NoError(t, err)
	require.Equal(t, out.Result, stored.Result)
}

func TestEvaluateDocumentHandler_NotFound(t *testing.T) {
	svc := newTestService(t, DefaultConfig(), newDocuments())
	r := newRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/missing/evaluate", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	require.Equal(t, http.StatusNotFound, resp.Code)
	var errResp httperr.ErrorResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &errResp))
	require.Equal(t, httperr.HttpDocumentNotFoundError, errResp.ErrorType)
}
