package users

import (
	"errors"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

// me answers from the session claims when the user row is missing, which
// happens for tokens minted before the store was reset.
func (h *Handler) me(c *gin.Context) {
	id := middleware.IdentityFromContext(c)
	user, err := h.Svc.GetByID(c.Request.Context(), id.UserID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			respond.Fail(c, err)
			return
		}
		user = User{ID: id.UserID, Email: id.Email, Name: id.Name, PictureURL: middleware.UserPictureFromContext(c)}
	}
	respond.OK(c, gin.H{
		"id":         user.ID,
		"email":      user.Email,
		"name":       user.Name,
		"pictureUrl": user.PictureURL,
	})
}
