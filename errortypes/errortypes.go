package errortypes

// Timeout should be used to flag that an outbound places call failed to return a response
// before the configured deadline expired.
//
// Timeouts will not be written to the app log, since it's not an actionable item for the gateway hosts.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string {
	return err.Message
}

func (err *Timeout) Code() int {
	return TimeoutErrorCode
}

func (err *Timeout) Severity() Severity {
	return SeverityFatal
}

// BadInput should be used when returning errors which are caused by bad caller input.
// It should _not_ be used if the error is a server-side issue (e.g. failed to send the upstream request).
//
// The Message holds the stable machine-readable code written into the error envelope,
// e.g. "missing_textQuery" or "too_many_placeIds_max_50".
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string {
	return err.Message
}

func (err *BadInput) Code() int {
	return BadInputErrorCode
}

func (err *BadInput) Severity() Severity {
	return SeverityFatal
}

// Unauthorized should be used when the x-gateway-key header is absent or does not match
// the configured shared secret. An unset secret fails closed with this same error.
type Unauthorized struct {
	Message string
}

func (err *Unauthorized) Error() string {
	return err.Message
}

func (err *Unauthorized) Code() int {
	return UnauthorizedErrorCode
}

func (err *Unauthorized) Severity() Severity {
	return SeverityFatal
}

// MissingCredential should be used when the provider API key is not configured.
// This is a host configuration fault, not a caller fault, and maps to a 500.
type MissingCredential struct {
	Message string
}

func (err *MissingCredential) Error() string {
	return err.Message
}

func (err *MissingCredential) Code() int {
	return MissingCredentialErrorCode
}

func (err *MissingCredential) Severity() Severity {
	return SeverityFatal
}

// BadServerResponse should be used when returning errors which are caused by bad/unexpected
// behavior on the places API side.
//
// For example:
//
//   - The provider responded with a 500
//   - The provider gave a malformed or unexpected response.
//
// These should not be used to log _connection_ errors (e.g. "couldn't find host"),
// which may indicate config issues for the gateway host company.
type BadServerResponse struct {
	Message string
}

func (err *BadServerResponse) Error() string {
	return err.Message
}

func (err *BadServerResponse) Code() int {
	return BadServerResponseErrorCode
}

func (err *BadServerResponse) Severity() Severity {
	return SeverityFatal
}

// FieldValidation flags the provider's field-expansion rejection: a 400 whose error message
// names an unknown or unsupported response field. It is the only error class the field-mask
// fallback retries on.
type FieldValidation struct {
	Message string
}

func (err *FieldValidation) Error() string {
	return err.Message
}

func (err *FieldValidation) Code() int {
	return FieldValidationErrorCode
}

func (err *FieldValidation) Severity() Severity {
	return SeverityFatal
}

// GatewayError covers unexpected internal faults: recovered panics, payloads that failed to
// marshal, and other conditions the caller can do nothing about. Maps to a 500 with the
// "gateway_exception" envelope.
type GatewayError struct {
	Message string
}

func (err *GatewayError) Error() string {
	return err.Message
}

func (err *GatewayError) Code() int {
	return GatewayErrorCode
}

func (err *GatewayError) Severity() Severity {
	return SeverityFatal
}

// Warning is a generic non-fatal error.
type Warning struct {
	Message     string
	WarningCode int
}

func (err *Warning) Error() string {
	return err.Message
}

func (err *Warning) Code() int {
	return err.WarningCode
}

func (err *Warning) Severity() Severity {
	return SeverityWarning
}
