package places

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/placesgw/places-gateway/errortypes"
)

func TestClassifyError(t *testing.T) {
	testCases := []struct {
		description string
		statusCode  int
		body        string
		fieldMask   bool
	}{
		{
			description: "Field expansion rejection",
			statusCode:  400,
			body:        `{"error":{"code":400,"message":"Error expanding 'fields' parameter: listed field nonsense is not supported.","status":"INVALID_ARGUMENT"}}`,
			fieldMask:   true,
		},
		{
			description: "Unknown response field",
			statusCode:  400,
			body:        `{"error":{"code":400,"message":"Field 'rating2' is not valid for this request.","status":"INVALID_ARGUMENT"}}`,
			fieldMask:   true,
		},
		{
			description: "Signature match is case-insensitive",
			statusCode:  400,
			body:        `{"error":{"message":"FIELD 'x' IS NOT VALID FOR THIS REQUEST."}}`,
			fieldMask:   true,
		},
		{
			description: "Other 400 is not a field mask error",
			statusCode:  400,
			body:        `{"error":{"code":400,"message":"textQuery must not be empty.","status":"INVALID_ARGUMENT"}}`,
			fieldMask:   false,
		},
		{
			description: "Matching message on a 403 is not a field mask error",
			statusCode:  403,
			body:        `{"error":{"message":"Field 'rating' is not valid for this request."}}`,
			fieldMask:   false,
		},
		{
			description: "Signature without a field mention is not a field mask error",
			statusCode:  400,
			body:        `{"error":{"message":"parameter is not valid for this request"}}`,
			fieldMask:   false,
		},
		{
			description: "Unparseable body",
			statusCode:  400,
			body:        `upstream exploded`,
			fieldMask:   false,
		},
		{
			description: "Server error",
			statusCode:  500,
			body:        `{"error":{"message":"internal"}}`,
			fieldMask:   false,
		},
	}

	for _, test := range testCases {
		err := classifyError(test.statusCode, []byte(test.body))
		if test.fieldMask {
			assert.IsType(t, &errortypes.FieldValidation{}, err, test.description)
			assert.True(t, IsFieldMaskError(err), test.description)
		} else {
			assert.IsType(t, &errortypes.BadServerResponse{}, err, test.description)
			assert.False(t, IsFieldMaskError(err), test.description)
		}
	}
}
