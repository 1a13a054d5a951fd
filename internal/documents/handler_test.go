package documents_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"

	"esign-backend/internal/bootstrap"
	"esign-backend/internal/shared/auth"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/pdftest"
)

func newApp(t *testing.T) *bootstrap.App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")

	app, err := bootstrap.Build(config.Config{
		Port:            "0",
		CORSAllowOrigin: []string{"http://localhost:5173"},
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
		MaxUploadBytes:  1 << 20,
	})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return app
}

func bearer(t *testing.T, userID, email string) string {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{
		Email:            email,
		Name:             "Test User",
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: userID},
	})
	if err != nil {
		t.Fatalf("sign jwt: %v", err)
	}
	return "Bearer " + token
}

func multipartBody(t *testing.T, field, fileName string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	fileWriter, err := writer.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write(data); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func do(t *testing.T, app *bootstrap.App, method, path, token string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, body)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, req)
	return resp
}

type documentJSON struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	OriginalName string   `json:"originalName"`
	Status       string   `json:"status"`
	Tags         []string `json:"tags"`
	PageCount    int      `json:"pageCount"`
	Owner        string   `json:"owner"`
}

func upload(t *testing.T, app *bootstrap.App, token, title string) documentJSON {
	t.Helper()
	body, ct := multipartBody(t, "file", "nda.pdf", pdftest.Minimal(2), map[string]string{
		"title": title,
		"tags":  "legal, nda",
	})
	resp := do(t, app, http.MethodPost, "/api/v1/documents", token, body, ct)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var doc documentJSON
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("decode upload response: %v", err)
	}
	return doc
}

func TestDocumentsRequireSession(t *testing.T) {
	app := newApp(t)
	resp := do(t, app, http.MethodGet, "/api/v1/documents", "", nil, "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestDocumentsUploadListAndGet(t *testing.T) {
	app := newApp(t)
	token := bearer(t, "user-1", "owner@example.com")

	doc := upload(t, app, token, "Mutual NDA")
	if doc.ID == "" || doc.Status != "draft" || doc.Owner != "user-1" {
		t.Fatalf("unexpected document: %+v", doc)
	}
	if doc.OriginalName != "nda.pdf" || len(doc.Tags) != 2 {
		t.Fatalf("unexpected file metadata: %+v", doc)
	}

	resp := do(t, app, http.MethodGet, "/api/v1/documents?limit=5", token, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", resp.Code)
	}
	var list struct {
		Documents  []documentJSON `json:"documents"`
		Total      int            `json:"total"`
		TotalPages int            `json:"totalPages"`
		Limit      int            `json:"limit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if list.Total != 1 || list.TotalPages != 1 || list.Limit != 5 || list.Documents[0].ID != doc.ID {
		t.Fatalf("unexpected list: %+v", list)
	}

	resp = do(t, app, http.MethodGet, "/api/v1/documents/"+doc.ID, token, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", resp.Code)
	}

	other := bearer(t, "user-2", "other@example.com")
	resp = do(t, app, http.MethodGet, "/api/v1/documents/"+doc.ID, other, nil, "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("get as stranger: expected 403, got %d", resp.Code)
	}

	resp = do(t, app, http.MethodGet, "/api/v1/documents/missing", token, nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get missing: expected 404, got %d", resp.Code)
	}
}

func TestDocumentsUploadRejectsNonPDF(t *testing.T) {
	app := newApp(t)
	token := bearer(t, "user-1", "owner@example.com")

	body, ct := multipartBody(t, "file", "notes.pdf", []byte("plain text pretending"), map[string]string{"title": "Notes"})
	resp := do(t, app, http.MethodPost, "/api/v1/documents", token, body, ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	var errBody struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errBody); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errBody.Code != "invalid_file_type" {
		t.Fatalf("unexpected code %q", errBody.Code)
	}

	body, ct = multipartBody(t, "attachment", "nda.pdf", pdftest.Minimal(1), map[string]string{"title": "NDA"})
	resp = do(t, app, http.MethodPost, "/api/v1/documents", token, body, ct)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("missing file: expected 400, got %d", resp.Code)
	}
}

func TestDocumentsUploadAcceptsDocumentField(t *testing.T) {
	app := newApp(t)
	token := bearer(t, "user-1", "owner@example.com")

	body, ct := multipartBody(t, "document", "nda.pdf", pdftest.Minimal(1), map[string]string{"title": "NDA"})
	resp := do(t, app, http.MethodPost, "/api/v1/documents", token, body, ct)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestDocumentsUpdateAndDelete(t *testing.T) {
	app := newApp(t)
	token := bearer(t, "user-1", "owner@example.com")
	doc := upload(t, app, token, "Draft NDA")

	resp := do(t, app, http.MethodPut, "/api/v1/documents/"+doc.ID, token,
		bytes.NewBufferString(`{"title":"Final NDA","tags":"final","isPublic":true}`), "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var updated documentJSON
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if updated.Title != "Final NDA" || len(updated.Tags) != 1 || updated.Tags[0] != "final" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	resp = do(t, app, http.MethodPut, "/api/v1/documents/"+doc.ID, token,
		bytes.NewBufferString(`{"status":"signed"}`), "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("manual signed status: expected 400, got %d", resp.Code)
	}

	resp = do(t, app, http.MethodDelete, "/api/v1/documents/"+doc.ID, token, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.Code)
	}
	resp = do(t, app, http.MethodGet, "/api/v1/documents/"+doc.ID, token, nil, "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get after delete: expected 404, got %d", resp.Code)
	}
}

func TestDocumentsDownloadStreamsPDF(t *testing.T) {
	app := newApp(t)
	token := bearer(t, "user-1", "owner@example.com")
	doc := upload(t, app, token, "Mutual NDA")

	resp := do(t, app, http.MethodGet, "/api/v1/documents/"+doc.ID+"/download", token, nil, "")
	if resp.Code != http.StatusOK {
		t.Fatalf("download: expected 200, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := resp.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !bytes.HasPrefix(resp.Body.Bytes(), []byte("%PDF-")) {
		t.Fatalf("body is not a pdf")
	}
}

func TestDocumentsComposePreviewAndApply(t *testing.T) {
	app := newApp(t)
	token := bearer(t, "user-1", "owner@example.com")
	doc := upload(t, app, token, "Mutual NDA")

	payload := `{"page":1,"preview":{"width":612,"height":792},"position":{"x":200,"y":300},` +
		`"signature":{"kind":"text","value":"Ada Lovelace"}}`
	resp := do(t, app, http.MethodPost, "/api/v1/documents/"+doc.ID+"/compose", token, bytes.NewBufferString(payload), "application/json")
	if resp.Code != http.StatusOK {
		t.Fatalf("compose: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Applied") != "false" || resp.Header().Get("X-Document-Id") != doc.ID {
		t.Fatalf("unexpected headers: %v", resp.Header())
	}
	original := pdftest.Minimal(2)
	if !bytes.HasPrefix(resp.Body.Bytes(), original) || resp.Body.Len() <= len(original) {
		t.Fatalf("compose must append an incremental update to the stored pdf")
	}

	applied := strings.Replace(payload, `}}`, `},"apply":true}`, 1)
	resp = do(t, app, http.MethodPost, "/api/v1/documents/"+doc.ID+"/compose", token, bytes.NewBufferString(applied), "application/json")
	if resp.Code != http.StatusOK || resp.Header().Get("X-Applied") != "true" {
		t.Fatalf("apply: got %d applied=%q", resp.Code, resp.Header().Get("X-Applied"))
	}
	resp = do(t, app, http.MethodGet, "/api/v1/documents/"+doc.ID+"/download", token, nil, "")
	if !bytes.HasPrefix(resp.Body.Bytes(), original) || resp.Body.Len() <= len(original) {
		t.Fatalf("applied revision was not stored")
	}

	bad := `{"page":1,"preview":{"width":612,"height":792},"position":{"x":900,"y":300},` +
		`"signature":{"kind":"text","value":"Ada"}}`
	resp = do(t, app, http.MethodPost, "/api/v1/documents/"+doc.ID+"/compose", token, bytes.NewBufferString(bad), "application/json")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("out of bounds: expected 400, got %d", resp.Code)
	}

	stamp := `{"page":1,"preview":{"width":612,"height":792},"position":{"x":10,"y":10},` +
		`"signature":{"kind":"stamp","value":"Ada"}}`
	resp = do(t, app, http.MethodPost, "/api/v1/documents/"+doc.ID+"/compose", token, bytes.NewBufferString(stamp), "application/json")
	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unsupported kind: expected 422, got %d", resp.Code)
	}
}
