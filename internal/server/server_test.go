package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-parser/internal/model"
	"github.com/sells-group/quote-parser/internal/pipeline"
	"github.com/sells-group/quote-parser/internal/quote"
	"github.com/sells-group/quote-parser/internal/store"
)

type stubProc struct {
	rec *model.QuoteRecord
	err error
}

func (s *stubProc) Process(_ context.Context, content, label string) (*model.QuoteRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.rec != nil {
		rec := s.rec.Clone()
		rec.Source = label
		return rec, nil
	}
	rec := quote.Normalize(quote.FromMap(map[string]any{
		"property": map[string]any{"name": "Stub Hotel"},
	}))
	rec.Source = label
	return rec, nil
}

type stubExtractor struct{}

func (stubExtractor) Extract(_ context.Context, data []byte, _ string) (string, error) {
	return string(data), nil
}

func newTestServer(proc pipeline.SourceProcessor) *Server {
	st := store.New(nil)
	p := pipeline.New(proc, nil, stubExtractor{}, st)
	return New(p, proc, st)
}

func postMultipart(t *testing.T, srv http.Handler, fields map[string]string, files map[string][2]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for field, nameAndBody := range files {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+nameAndBody[0]+`"`)
		h.Set("Content-Type", "text/plain")
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(nameAndBody[1]))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/extract", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)
	return rr
}

func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder) ExtractionResponse {
	t.Helper()
	var env ExtractionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	return env
}

func TestRootAndHealth(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})

	tests := []struct {
		path string
		want map[string]string
	}{
		{path: "/", want: map[string]string{"message": "Hotel Quote Parser Microservice", "status": "running"}},
		{path: "/health", want: map[string]string{"status": "healthy", "service": "hotel-quote-parser"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()
			rr := httptest.NewRecorder()
			srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestExtract_EmailContent(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})
	rr := postMultipart(t, srv, map[string]string{"email_content": "quote inside"}, nil)

	require.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.True(t, env.Success)
	assert.Empty(t, env.Error)
	assert.Equal(t, []string{"email"}, env.Sources)
	require.NotNil(t, env.Data)
	assert.Equal(t, "Stub Hotel", env.Data.Property["name"])
}

func TestExtract_FileUpload(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})
	rr := postMultipart(t, srv, nil, map[string][2]string{
		"proposal_file": {"proposal.txt", "total is $5000"},
	})

	require.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.True(t, env.Success)
	assert.Equal(t, []string{"proposal_file"}, env.Sources)
	assert.Equal(t, "proposal.txt", env.Data.Filename)
	assert.Equal(t, len("total is $5000"), env.Data.FileSize)
}

func TestExtract_NoInputs(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})
	rr := postMultipart(t, srv, nil, nil)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, "no content provided for extraction", env.Error)
	assert.Equal(t, []string{}, env.Sources)
	assert.Equal(t, []string{}, env.URLsFound)
}

func TestExtract_PipelineFailureRidesEnvelope(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{err: eris.New("llm unavailable")})
	rr := postMultipart(t, srv, map[string]string{"email_content": "x"}, nil)

	// Processing failures are reported with HTTP 200; success carries the
	// outcome.
	assert.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.False(t, env.Success)
	assert.Contains(t, env.Error, "llm unavailable")
	assert.Nil(t, env.Data)
}

func TestExtract_URLFieldOnlyWithoutFetcher(t *testing.T) {
	t.Parallel()

	// Scraping disabled and no other input leaves nothing to extract.
	srv := newTestServer(&stubProc{})
	rr := postMultipart(t, srv, map[string]string{"proposal_url": "https://h.com/proposal/1"}, nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.False(t, env.Success)
	assert.Equal(t, "no content provided for extraction", env.Error)
}

func TestExtract_InvalidForm(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})
	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=broken")
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	env := decodeEnvelope(t, rr)
	assert.Equal(t, "invalid multipart form", env.Error)
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})
	body, _ := json.Marshal("a plain text quote")
	req := httptest.NewRequest(http.MethodPost, "/extract-text", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Success bool               `json:"success"`
		Data    *model.QuoteRecord `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "text", resp.Data.Source)
}

func TestExtractText_BadBody(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})
	req := httptest.NewRequest(http.MethodPost, "/extract-text", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExtractText_ProcessorError(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{err: eris.New("llm unavailable")})
	body, _ := json.Marshal("text")
	req := httptest.NewRequest(http.MethodPost, "/extract-text", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, false, resp["success"])
	assert.Equal(t, "llm unavailable", resp["error"])
}

func TestRecentRequests_DisabledStore(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/recent-requests?limit=5", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Success bool             `json:"success"`
		Data    []map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Data)
}

func TestCORSPreflight(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&stubProc{})
	req := httptest.NewRequest(http.MethodOptions, "/extract", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), "POST")
}
