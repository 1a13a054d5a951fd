package compose

import "esign-backend/internal/shared/apperr"

var (
	ErrUnsupportedSignatureKind = apperr.New(apperr.KindUnsupportedPayload, "unsupported_signature_kind", "Signature kind must be text, image or drawing")
	ErrInvalidImageData         = apperr.New(apperr.KindUnsupportedPayload, "invalid_image_data", "Signature image is not a decodable image data URI")
	ErrEmptyText                = apperr.New(apperr.KindValidation, "empty_signature_text", "Signature text is required")
	ErrPageOutOfRange           = apperr.New(apperr.KindValidation, "page_out_of_range", "Page does not exist in the document")
	ErrInvalidPDF               = apperr.New(apperr.KindValidation, "invalid_pdf", "File is not a readable PDF")
)
