package signatures

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches signature routes to an authenticated group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/signatures", h.create)
	rg.GET("/signatures/document/:docId", h.listByDocument)
	rg.GET("/signatures/pending", h.listPending)
	rg.GET("/signatures/:id", h.get)
	rg.PUT("/signatures/:id/sign", h.sign)
	rg.PUT("/signatures/:id/reject", h.reject)
	rg.DELETE("/signatures/:id", h.delete)
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if !respond.BindJSON(c, &in) {
		return
	}
	c.Set(middleware.DocumentIDKey, in.DocumentID)
	req, err := h.Svc.RequestSignature(c.Request.Context(), middleware.IdentityFromContext(c), in)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Set(middleware.SignatureIDKey, req.ID)
	respond.JSON(c, http.StatusCreated, ToResponse(req, h.Svc.now()))
}

func (h *Handler) listByDocument(c *gin.Context) {
	c.Set(middleware.DocumentIDKey, c.Param("docId"))
	reqs, err := h.Svc.ListByDocument(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("docId"))
	if err != nil {
		respond.Fail(c, err)
		return
	}
	now := h.Svc.now()
	out := make([]RequestResponse, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, ToResponse(req, now))
	}
	respond.OK(c, out)
}

func (h *Handler) listPending(c *gin.Context) {
	views, err := h.Svc.ListPending(c.Request.Context(), middleware.IdentityFromContext(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}
	now := h.Svc.now()
	out := make([]RequestResponse, 0, len(views))
	for _, v := range views {
		out = append(out, viewResponse(v, now))
	}
	respond.OK(c, out)
}

func (h *Handler) get(c *gin.Context) {
	c.Set(middleware.SignatureIDKey, c.Param("id"))
	v, err := h.Svc.Get(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id"))
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.OK(c, viewResponse(v, h.Svc.now()))
}

func (h *Handler) sign(c *gin.Context) {
	c.Set(middleware.SignatureIDKey, c.Param("id"))
	var in SignInput
	if !respond.BindJSON(c, &in) {
		return
	}
	req, err := h.Svc.Sign(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id"), in, MetaFrom(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Set(middleware.DocumentIDKey, req.DocumentID)
	c.Set(middleware.StatusTransitionKey, "pending->signed")
	respond.OK(c, gin.H{"message": "Document signed successfully", "signature": ToResponse(req, h.Svc.now())})
}

func (h *Handler) reject(c *gin.Context) {
	c.Set(middleware.SignatureIDKey, c.Param("id"))
	var in RejectInput
	if c.Request.ContentLength != 0 && !respond.BindJSON(c, &in) {
		return
	}
	req, err := h.Svc.Reject(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id"), in, MetaFrom(c))
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Set(middleware.DocumentIDKey, req.DocumentID)
	c.Set(middleware.StatusTransitionKey, "pending->rejected")
	respond.OK(c, gin.H{"message": "Signature request rejected", "signature": ToResponse(req, h.Svc.now())})
}

func (h *Handler) delete(c *gin.Context) {
	c.Set(middleware.SignatureIDKey, c.Param("id"))
	if err := h.Svc.Delete(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id")); err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Message(c, http.StatusOK, "Signature request deleted successfully")
}

// MetaFrom extracts the request metadata recorded on transitions.
func MetaFrom(c *gin.Context) ClientMeta {
	return ClientMeta{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}
