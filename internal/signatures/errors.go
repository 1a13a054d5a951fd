package signatures

import "esign-backend/internal/shared/apperr"

var (
	ErrRequestNotFound   = apperr.New(apperr.KindNotFound, "signature_not_found", "Signature request not found")
	ErrNotOwner          = apperr.New(apperr.KindAuthorization, "not_owner", "Only the document owner can manage its signature requests")
	ErrNotIntendedSigner = apperr.New(apperr.KindAuthorization, "not_intended_signer", "This signature request is addressed to someone else")
	ErrNotPending        = apperr.New(apperr.KindStateConflict, "not_pending", "Signature request is no longer pending")
	ErrDuplicateRequest  = apperr.New(apperr.KindStateConflict, "duplicate_request", "A signature request for this email already exists on the document")
	ErrRequestExpired    = apperr.New(apperr.KindExpiry, "request_expired", "Signature request has expired")
	ErrContentTooLarge   = apperr.New(apperr.KindValidation, "content_too_large", "Signature image exceeds the size limit")
)
