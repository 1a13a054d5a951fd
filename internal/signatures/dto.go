package signatures

import (
	"time"

	"esign-backend/internal/documents"
)

// DocumentSummary is the document slice shown next to a request.
type DocumentSummary struct {
	ID        string           `json:"id"`
	Title     string           `json:"title"`
	Status    documents.Status `json:"status"`
	PageCount int              `json:"pageCount"`
	FileName  string           `json:"fileName"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

// RequestResponse is the outward-facing representation of a request.
type RequestResponse struct {
	ID              string           `json:"id"`
	DocumentID      string           `json:"documentId"`
	RequestedBy     string           `json:"requestedBy"`
	SignerID        string           `json:"signer,omitempty"`
	Email           string           `json:"email"`
	Name            string           `json:"name"`
	Position        Position         `json:"position"`
	SignatureType   string           `json:"signatureType"`
	Content         string           `json:"signatureContent,omitempty"`
	Signature       string           `json:"signature,omitempty"`
	Status          Status           `json:"status"`
	SignedAt        *time.Time       `json:"signedAt,omitempty"`
	RejectedAt      *time.Time       `json:"rejectedAt,omitempty"`
	RejectionReason string           `json:"rejectionReason,omitempty"`
	ExpiresAt       time.Time        `json:"expiresAt"`
	IsExpired       bool             `json:"isExpired"`
	IsOverdue       bool             `json:"isOverdue"`
	SigningMethod   string           `json:"signatureMethod,omitempty"`
	HasPublicLink   bool             `json:"hasPublicLink"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	Document        *DocumentSummary `json:"document,omitempty"`
}

// Summarize converts a document for embedding in request responses.
func Summarize(doc documents.Document) *DocumentSummary {
	return &DocumentSummary{
		ID:        doc.ID,
		Title:     doc.Title,
		Status:    doc.Status,
		PageCount: doc.PageCount,
		FileName:  doc.OriginalFilename,
		ExpiresAt: doc.ExpiresAt,
	}
}

// ToResponse converts a request for the wire.
func ToResponse(req Request, now time.Time) RequestResponse {
	return RequestResponse{
		ID:              req.ID,
		DocumentID:      req.DocumentID,
		RequestedBy:     req.RequestedBy,
		SignerID:        req.SignerID,
		Email:           req.Email,
		Name:            req.Name,
		Position:        req.Position,
		SignatureType:   string(req.Kind),
		Content:         req.Content,
		Signature:       req.Content,
		Status:          req.Status,
		SignedAt:        req.SignedAt,
		RejectedAt:      req.RejectedAt,
		RejectionReason: req.RejectionReason,
		ExpiresAt:       req.ExpiresAt,
		IsExpired:       req.IsExpired(now),
		IsOverdue:       req.IsOverdue(now),
		SigningMethod:   req.SigningMethod,
		HasPublicLink:   req.PublicToken != "",
		CreatedAt:       req.CreatedAt,
		UpdatedAt:       req.UpdatedAt,
	}
}

func viewResponse(v View, now time.Time) RequestResponse {
	resp := ToResponse(v.Request, now)
	resp.Document = Summarize(v.Document)
	return resp
}
