package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/respond"
	"esign-backend/internal/shared/util"
	"esign-backend/internal/shared/validate"
	"esign-backend/internal/users"
)

// DevTokens mints session tokens without OAuth. Only mounted in dev.
type DevTokens struct {
	Users *users.Service
}

type devTokenRequest struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"max=50"`
}

// RegisterRoutes attaches POST /token to a dev-only group.
func (d *DevTokens) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/token", d.token)
}

func (d *DevTokens) token(c *gin.Context) {
	var in devTokenRequest
	if !respond.BindJSON(c, &in) {
		return
	}
	in.Email = util.NormalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		respond.Fail(c, err)
		return
	}
	userID := users.ProviderDev + ":" + in.Email
	if d.Users != nil {
		if _, err := d.Users.UpsertFromAuth(c.Request.Context(), users.User{
			ID:       userID,
			Email:    in.Email,
			Name:     in.Name,
			Provider: users.ProviderDev,
		}); err != nil {
			respond.Fail(c, err)
			return
		}
	}
	token, err := issueSession(userID, in.Email, in.Name, "")
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, gin.H{"token": token, "userId": userID})
}
