package places

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/placesgw/places-gateway/errortypes"
)

// The provider reports a rejected field mask as a plain 400 INVALID_ARGUMENT, so the
// classifier has to recognize it by the error message. These are the message shapes
// observed in practice. This is a known weak point: if the provider ever restates the
// message, the fallback stops firing and callers see the raw 400 instead, which is the
// same behavior as any other upstream 400, just without the one retry.
var fieldMaskErrorSignatures = []string{
	"not valid for this request",
	"error expanding 'fields' parameter",
}

// classifyError turns a non-2xx provider response into its typed error. Only two kinds
// exist: the field-expansion rejection the fallback policy retries on, and everything
// else, which passes through to the caller untouched.
func classifyError(statusCode int, body []byte) error {
	if isFieldMaskError(statusCode, body) {
		return &errortypes.FieldValidation{
			Message: fmt.Sprintf("Provider rejected the requested field mask: %s", upstreamErrorMessage(body)),
		}
	}
	return &errortypes.BadServerResponse{
		Message: fmt.Sprintf("Provider responded with status %d", statusCode),
	}
}

func isFieldMaskError(statusCode int, body []byte) bool {
	if statusCode != http.StatusBadRequest {
		return false
	}
	message := strings.ToLower(upstreamErrorMessage(body))
	if !strings.Contains(message, "field") {
		return false
	}
	for _, signature := range fieldMaskErrorSignatures {
		if strings.Contains(message, signature) {
			return true
		}
	}
	return false
}

// upstreamErrorMessage pulls error.message out of a provider error body without
// unmarshalling the whole document. Returns "" on anything unparseable.
func upstreamErrorMessage(body []byte) string {
	message, err := jsonparser.GetString(body, "error", "message")
	if err != nil {
		return ""
	}
	return message
}

// IsFieldMaskError reports whether err is the provider's field-expansion rejection,
// the one error class the fallback policy retries on.
func IsFieldMaskError(err error) bool {
	_, ok := err.(*errortypes.FieldValidation)
	return ok
}
