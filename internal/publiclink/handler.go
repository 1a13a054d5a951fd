package publiclink

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/signatures"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches the owner-only issuance route.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/signatures/public-link", h.issue)
}

// RegisterPublicRoutes attaches the token-gated routes. They carry no session.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/signatures/validate-token", h.validate)
	rg.POST("/signatures/public-sign", h.publicSign)
}

type issueResponse struct {
	Token     string                     `json:"token"`
	Link      string                     `json:"link"`
	ExpiresAt time.Time                  `json:"expiresAt"`
	Created   bool                       `json:"created"`
	Signature signatures.RequestResponse `json:"signature"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid       bool                        `json:"valid"`
	Document    *signatures.DocumentSummary `json:"document"`
	SignerEmail string                      `json:"signerEmail"`
	SignerName  string                      `json:"signerName"`
	SignatureID string                      `json:"signatureId"`
	Position    signatures.Position         `json:"position"`
	ExpiresAt   time.Time                   `json:"expiresAt"`
}

type publicSignRequest struct {
	Token string `json:"token"`
	signatures.SignInput
}

func (h *Handler) issue(c *gin.Context) {
	var in IssueInput
	if !respond.BindJSON(c, &in) {
		return
	}
	c.Set(middleware.DocumentIDKey, in.DocumentID)
	out, err := h.Svc.Issue(c.Request.Context(), middleware.IdentityFromContext(c), in)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Set(middleware.SignatureIDKey, out.Request.ID)
	status := http.StatusOK
	if out.Created {
		status = http.StatusCreated
	}
	respond.JSON(c, status, issueResponse{
		Token:     out.Token,
		Link:      out.Link,
		ExpiresAt: out.ExpiresAt,
		Created:   out.Created,
		Signature: signatures.ToResponse(out.Request, h.Svc.now()),
	})
}

func (h *Handler) validate(c *gin.Context) {
	var in tokenRequest
	if !respond.BindJSON(c, &in) {
		return
	}
	if in.Token == "" {
		respond.Fail(c, ErrInvalidToken)
		return
	}
	v, err := h.Svc.Validate(c.Request.Context(), in.Token)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Set(middleware.DocumentIDKey, v.Document.ID)
	c.Set(middleware.SignatureIDKey, v.Request.ID)
	respond.OK(c, validateResponse{
		Valid:       true,
		Document:    signatures.Summarize(v.Document),
		SignerEmail: v.Email,
		SignerName:  v.Request.Name,
		SignatureID: v.Request.ID,
		Position:    v.Request.Position,
		ExpiresAt:   v.Request.ExpiresAt,
	})
}

func (h *Handler) publicSign(c *gin.Context) {
	var in publicSignRequest
	if !respond.BindJSON(c, &in) {
		return
	}
	if in.Token == "" {
		respond.Fail(c, ErrInvalidToken)
		return
	}
	req, err := h.Svc.PublicSign(c.Request.Context(), in.Token, in.SignInput, signatures.MetaFrom(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Set(middleware.DocumentIDKey, req.DocumentID)
	c.Set(middleware.SignatureIDKey, req.ID)
	c.Set(middleware.StatusTransitionKey, "pending->signed")
	respond.OK(c, gin.H{"message": "Document signed successfully", "signature": signatures.ToResponse(req, h.Svc.now())})
}
