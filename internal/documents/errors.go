package documents

import "esign-backend/internal/shared/apperr"

var (
	ErrNotFound     = apperr.New(apperr.KindNotFound, "document_not_found", "Document not found")
	ErrNotOwner     = apperr.New(apperr.KindAuthorization, "not_owner", "You do not have access to this document")
	ErrFileRequired = apperr.New(apperr.KindValidation, "file_required", "A PDF file is required")
	ErrNotPDF       = apperr.New(apperr.KindValidation, "invalid_file_type", "Only PDF files are allowed")
	ErrFileTooLarge = apperr.New(apperr.KindValidation, "file_too_large", "File exceeds the upload size limit")
	ErrBadStatus    = apperr.New(apperr.KindValidation, "invalid_status", "Unknown document status")
)
