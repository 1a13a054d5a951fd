package documents

import (
	"encoding/json"
	"strings"
	"time"

	"esign-backend/internal/shared/util"
)

// DocumentResponse is the outward-facing representation of a document.
type DocumentResponse struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	FileName         string    `json:"fileName"`
	OriginalFilename string    `json:"originalName"`
	MimeType         string    `json:"mimeType"`
	SizeBytes        int64     `json:"fileSize"`
	Status           Status    `json:"status"`
	ExpiresAt        time.Time `json:"expiresAt"`
	IsExpired        bool      `json:"isExpired"`
	IsPublic         bool      `json:"isPublic"`
	Tags             []string  `json:"tags"`
	PageCount        int       `json:"pageCount"`
	OwnerID          string    `json:"owner"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// ListResponse is one page of documents.
type ListResponse struct {
	Documents   []DocumentResponse `json:"documents"`
	Total       int                `json:"total"`
	TotalPages  int                `json:"totalPages"`
	CurrentPage int                `json:"currentPage"`
	Limit       int                `json:"limit"`
}

// ToResponse converts a document for the wire.
func ToResponse(doc Document, now time.Time) DocumentResponse {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	return DocumentResponse{
		ID:               doc.ID,
		Title:            doc.Title,
		Description:      doc.Description,
		FileName:         doc.FileName,
		OriginalFilename: doc.OriginalFilename,
		MimeType:         doc.MimeType,
		SizeBytes:        doc.SizeBytes,
		Status:           doc.Status,
		ExpiresAt:        doc.ExpiresAt,
		IsExpired:        doc.IsExpired(now),
		IsPublic:         doc.IsPublic,
		Tags:             tags,
		PageCount:        doc.PageCount,
		OwnerID:          doc.OwnerID,
		CreatedAt:        doc.CreatedAt,
		UpdatedAt:        doc.UpdatedAt,
	}
}

func toListResponse(res ListResult, now time.Time) ListResponse {
	docs := make([]DocumentResponse, 0, len(res.Documents))
	for _, doc := range res.Documents {
		docs = append(docs, ToResponse(doc, now))
	}
	return ListResponse{
		Documents:   docs,
		Total:       res.Total,
		TotalPages:  res.TotalPages,
		CurrentPage: res.Page,
		Limit:       res.Limit,
	}
}

// TagList accepts either a JSON array of tags or a comma separated string.
type TagList []string

func (t *TagList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = TagList(util.SplitTags(strings.Join(list, ",")))
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = TagList(util.SplitTags(raw))
	return nil
}
