package documents

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"esign-backend/internal/shared/server/middleware"
	"esign-backend/internal/shared/server/respond"
)

// multipartOverhead leaves room for form fields around the file part.
const multipartOverhead = 1 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.GET("/documents", h.list)
	rg.GET("/documents/:id", h.get)
	rg.PUT("/documents/:id", h.update)
	rg.DELETE("/documents/:id", h.delete)
	rg.PUT("/documents/:id/file", h.replaceFile)
	rg.GET("/documents/:id/download", h.download)
	rg.POST("/documents/:id/compose", h.compose)
}

func (h *Handler) upload(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	file, header, ok := h.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), caller, UploadInput{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Tags:        c.PostForm("tags"),
		FileName:    header.Filename,
		Body:        file,
	})
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Set(middleware.DocumentIDKey, doc.ID)
	respond.JSON(c, http.StatusCreated, ToResponse(doc, h.Svc.now()))
}

func (h *Handler) list(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	res, err := h.Svc.List(c.Request.Context(), caller, ListQuery{
		Page:   queryInt(c, "page"),
		Limit:  queryInt(c, "limit"),
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.OK(c, toListResponse(res, h.Svc.now()))
}

func (h *Handler) get(c *gin.Context) {
	c.Set(middleware.DocumentIDKey, c.Param("id"))
	doc, err := h.Svc.Get(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id"))
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.OK(c, ToResponse(doc, h.Svc.now()))
}

func (h *Handler) update(c *gin.Context) {
	c.Set(middleware.DocumentIDKey, c.Param("id"))
	var in UpdateInput
	if !respond.BindJSON(c, &in) {
		return
	}
	doc, err := h.Svc.Update(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id"), in)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	respond.OK(c, ToResponse(doc, h.Svc.now()))
}

func (h *Handler) delete(c *gin.Context) {
	c.Set(middleware.DocumentIDKey, c.Param("id"))
	if err := h.Svc.Delete(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id")); err != nil {
		respond.Fail(c, err)
		return
	}
	respond.Message(c, http.StatusOK, "Document deleted successfully")
}

func (h *Handler) replaceFile(c *gin.Context) {
	c.Set(middleware.DocumentIDKey, c.Param("id"))
	file, header, ok := h.formFile(c)
	if !ok {
		return
	}
	defer file.Close()

	doc, err := h.Svc.ReplaceFile(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id"), header.Filename, file)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Set(middleware.StatusTransitionKey, "->signed")
	respond.OK(c, ToResponse(doc, h.Svc.now()))
}

func (h *Handler) download(c *gin.Context) {
	caller := middleware.IdentityFromContext(c)
	id := c.Param("id")
	c.Set(middleware.DocumentIDKey, id)

	if url, ok, err := h.Svc.DownloadURL(c.Request.Context(), caller, id); err != nil {
		respond.Fail(c, err)
		return
	} else if ok {
		c.Redirect(http.StatusFound, url)
		return
	}

	doc, rc, err := h.Svc.Open(c.Request.Context(), caller, id)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	defer rc.Close()
	c.DataFromReader(http.StatusOK, doc.SizeBytes, mimePDF, rc, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": downloadName(doc)}),
	})
}

func (h *Handler) compose(c *gin.Context) {
	c.Set(middleware.DocumentIDKey, c.Param("id"))
	var in ComposeInput
	if !respond.BindJSON(c, &in) {
		return
	}
	res, err := h.Svc.Compose(c.Request.Context(), middleware.IdentityFromContext(c), c.Param("id"), in)
	if err != nil {
		respond.Fail(c, err)
		return
	}
	c.Header("X-Document-Id", res.Document.ID)
	c.Header("X-Applied", strconv.FormatBool(res.Applied))
	c.Data(http.StatusOK, mimePDF, res.PDF)
}

func (h *Handler) formFile(c *gin.Context) (multipart.File, *multipart.FileHeader, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.Svc.uploadLimit()+multipartOverhead)

	header, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		header, err = c.FormFile("document")
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Fail(c, ErrFileTooLarge)
		} else {
			respond.Fail(c, ErrFileRequired)
		}
		return nil, nil, false
	}
	file, err := header.Open()
	if err != nil {
		respond.Fail(c, err)
		return nil, nil, false
	}
	return file, header, true
}

func queryInt(c *gin.Context, key string) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return v
}
