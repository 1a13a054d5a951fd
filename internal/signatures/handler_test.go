package signatures_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"

	"esign-backend/internal/bootstrap"
	"esign-backend/internal/shared/auth"
	"esign-backend/internal/shared/config"
	"esign-backend/internal/shared/pdftest"
	"esign-backend/internal/signatures"
)

type harness struct {
	t   *testing.T
	app *bootstrap.App
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	t.Setenv("JWT_SECRET", "test-secret")
	app, err := bootstrap.Build(config.Config{
		LocalStoreDir:   t.TempDir(),
		Env:             "dev",
		ObjectStoreType: "local",
		MaxUploadBytes:  1 << 20,
	})
	if err != nil {
		t.Fatalf("bootstrap build: %v", err)
	}
	return &harness{t: t, app: app}
}

func (h *harness) token(userID, email string) string {
	h.t.Helper()
	token, err := auth.SignJWT(auth.Claims{
		Email:            email,
		RegisteredClaims: jwtlib.RegisteredClaims{Subject: userID},
	})
	if err != nil {
		h.t.Fatalf("sign jwt: %v", err)
	}
	return "Bearer " + token
}

func (h *harness) do(method, path, token string, payload any) *httptest.ResponseRecorder {
	h.t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			h.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	resp := httptest.NewRecorder()
	h.app.Router.ServeHTTP(resp, req)
	return resp
}

func (h *harness) upload(token string) string {
	h.t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("title", "Mutual NDA")
	fw, err := w.CreateFormFile("file", "nda.pdf")
	if err != nil {
		h.t.Fatalf("form file: %v", err)
	}
	_, _ = fw.Write(pdftest.Minimal(1))
	_ = w.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", token)
	resp := httptest.NewRecorder()
	h.app.Router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		h.t.Fatalf("upload: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var doc struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		h.t.Fatalf("decode: %v", err)
	}
	return doc.ID
}

func (h *harness) documentStatus(token, id string) string {
	h.t.Helper()
	resp := h.do(http.MethodGet, "/api/v1/documents/"+id, token, nil)
	var doc struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		h.t.Fatalf("decode: %v", err)
	}
	return doc.Status
}

type requestJSON struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Status   string `json:"status"`
	Position struct {
		Page int `json:"page"`
	} `json:"position"`
	Document *struct {
		ID string `json:"id"`
	} `json:"document"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func TestSignatureLifecycleOverHTTP(t *testing.T) {
	h := newHarness(t)
	owner := h.token("owner-1", "owner@example.com")
	signer := h.token("signer-1", "signer@example.com")
	stranger := h.token("stranger-1", "stranger@example.com")
	docID := h.upload(owner)

	resp := h.do(http.MethodPost, "/api/v1/signatures", owner, map[string]any{
		"documentId": docID,
		"email":      "Signer@Example.com",
		"name":       "Sam Signer",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	created := decode[requestJSON](t, resp)
	if created.Email != "signer@example.com" || created.Status != "pending" || created.Position.Page != 1 {
		t.Fatalf("unexpected request: %+v", created)
	}
	if got := h.documentStatus(owner, docID); got != "pending" {
		t.Fatalf("expected document pending, got %s", got)
	}

	resp = h.do(http.MethodPost, "/api/v1/signatures", owner, map[string]any{
		"documentId": docID, "email": "signer@example.com", "name": "Sam Signer",
	})
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.Code)
	}

	resp = h.do(http.MethodGet, "/api/v1/signatures/pending", signer, nil)
	pending := decode[[]requestJSON](t, resp)
	if len(pending) != 1 || pending[0].Document == nil || pending[0].Document.ID != docID {
		t.Fatalf("unexpected pending list: %+v", pending)
	}

	resp = h.do(http.MethodPut, "/api/v1/signatures/"+created.ID+"/sign", stranger, map[string]any{"signature": "Not Me"})
	if resp.Code != http.StatusForbidden {
		t.Fatalf("stranger sign: expected 403, got %d", resp.Code)
	}

	resp = h.do(http.MethodPut, "/api/v1/signatures/"+created.ID+"/sign", signer, map[string]any{"signatureContent": "Sam Signer", "signatureType": "text"})
	if resp.Code != http.StatusOK {
		t.Fatalf("sign: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	signed := decode[struct {
		Message   string      `json:"message"`
		Signature requestJSON `json:"signature"`
	}](t, resp)
	if signed.Signature.Status != "signed" {
		t.Fatalf("unexpected sign response: %+v", signed)
	}
	if got := h.documentStatus(owner, docID); got != "signed" {
		t.Fatalf("expected document signed, got %s", got)
	}

	resp = h.do(http.MethodPut, "/api/v1/signatures/"+created.ID+"/sign", signer, map[string]any{"signature": "Again"})
	if resp.Code != http.StatusConflict {
		t.Fatalf("second sign: expected 409, got %d", resp.Code)
	}
	resp = h.do(http.MethodPut, "/api/v1/signatures/"+created.ID+"/reject", signer, nil)
	if resp.Code != http.StatusConflict {
		t.Fatalf("reject after sign: expected 409, got %d", resp.Code)
	}
}

func TestSignatureRejectAndOwnerViews(t *testing.T) {
	h := newHarness(t)
	owner := h.token("owner-1", "owner@example.com")
	signer := h.token("signer-1", "signer@example.com")
	docID := h.upload(owner)

	resp := h.do(http.MethodPost, "/api/v1/signatures", owner, map[string]any{
		"documentId": docID, "email": "signer@example.com", "name": "Sam Signer",
		"position": map[string]any{"x": 10, "y": 10, "page": 1, "width": 120, "height": 40},
	})
	created := decode[requestJSON](t, resp)

	resp = h.do(http.MethodPut, "/api/v1/signatures/"+created.ID+"/reject", signer, map[string]any{"reason": "Wrong counterparty"})
	if resp.Code != http.StatusOK {
		t.Fatalf("reject: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = h.do(http.MethodGet, "/api/v1/signatures/document/"+docID, owner, nil)
	list := decode[[]requestJSON](t, resp)
	if len(list) != 1 || list[0].Status != "rejected" {
		t.Fatalf("unexpected owner list: %+v", list)
	}
	resp = h.do(http.MethodGet, "/api/v1/signatures/document/"+docID, signer, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("signer listing document: expected 403, got %d", resp.Code)
	}

	resp = h.do(http.MethodGet, "/api/v1/signatures/"+created.ID, signer, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("signer get: expected 200, got %d", resp.Code)
	}

	resp = h.do(http.MethodDelete, "/api/v1/signatures/"+created.ID, signer, nil)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("signer delete: expected 403, got %d", resp.Code)
	}
	resp = h.do(http.MethodDelete, "/api/v1/signatures/"+created.ID, owner, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("owner delete: expected 200, got %d", resp.Code)
	}
	resp = h.do(http.MethodGet, "/api/v1/signatures/"+created.ID, owner, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get deleted: expected 404, got %d", resp.Code)
	}
}

func TestSignatureCreateValidation(t *testing.T) {
	h := newHarness(t)
	owner := h.token("owner-1", "owner@example.com")
	docID := h.upload(owner)

	resp := h.do(http.MethodPost, "/api/v1/signatures", owner, map[string]any{
		"documentId": docID, "email": "nope", "name": "S",
	})
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
	body := decode[struct {
		Code   string `json:"code"`
		Errors []struct {
			Field string `json:"field"`
		} `json:"errors"`
	}](t, resp)
	if body.Code != "validation_error" || len(body.Errors) != 2 {
		t.Fatalf("unexpected validation body: %+v", body)
	}
}

func TestSignatureCreateAcceptsPositionWithoutSize(t *testing.T) {
	h := newHarness(t)
	owner := h.token("owner-1", "owner@example.com")
	docID := h.upload(owner)

	resp := h.do(http.MethodPost, "/api/v1/signatures", owner, map[string]any{
		"documentId": docID, "email": "signer@example.com", "name": "Sam Signer",
		"position": map[string]any{"x": 10, "y": 20, "page": 1},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	created := decode[struct {
		Position signatures.Position `json:"position"`
	}](t, resp)
	if created.Position != (signatures.Position{X: 10, Y: 20, Page: 1, Width: 200, Height: 100}) {
		t.Fatalf("unexpected position: %+v", created.Position)
	}
}
