package auth

import (
	stderrors "errors"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

const (
	TextCodeValidation        = "VALIDATION_ERROR"
	TextCodeInvalidToken      = "INVALID_TOKEN"
	TextCodeTokenMalformed    = "TOKEN_MALFORMED"
	TextCodeTokenSignature    = "TOKEN_BAD_SIGNATURE"
	TextCodeTokenExpired      = "TOKEN_EXPIRED"
	TextCodeTokenPurpose      = "TOKEN_WRONG_PURPOSE"
	TextCodeNoSuchUser        = "NO_SUCH_USER"
	TextCodeBadCredentials    = "INVALID_CREDENTIALS"
	TextCodePasswordMismatch  = "PASSWORD_MISMATCH"
	TextCodeDeliveryFailed    = "DELIVERY_FAILED"
	TextCodeUnauthorized      = "UNAUTHORIZED"
	TextCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	TextCodeTokenConsumed     = "TOKEN_CONSUMED"
	TextCodeIdentityNotFound  = "IDENTITY_NOT_FOUND"
	TextCodeMissingSigningKey = "MISSING_SIGNING_KEY"
)

// ErrInvalidToken is what callers see for any token that fails to decode.
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenMalformed token could not be parsed
var ErrTokenMalformed = goerrors.New("token is malformed", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenBadSignature token signature does not match any known key
var ErrTokenBadSignature = goerrors.New("token signature is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenSignature).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenExpired token expiry is in the past
var ErrTokenExpired = goerrors.New("token is expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenWrongPurpose token was minted for a different flow
var ErrTokenWrongPurpose = goerrors.New("token is malformed: unexpected purpose", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenPurpose).
	WithCode(goerrors.CodeBadRequest)

// ErrTokenConsumed reset token was already used
var ErrTokenConsumed = goerrors.New("token has already been used", goerrors.CategoryConflict).
	WithTextCode(TextCodeTokenConsumed).
	WithCode(goerrors.CodeConflict)

// ErrNoSuchUser is returned when the email or user id has no account
var ErrNoSuchUser = goerrors.New("email does not exist", goerrors.CategoryNotFound).
	WithTextCode(TextCodeNoSuchUser).
	WithCode(goerrors.CodeUnauthorized)

// ErrBadCredentials password did not match the stored hash
var ErrBadCredentials = goerrors.New("invalid password", goerrors.CategoryAuth).
	WithTextCode(TextCodeBadCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrPasswordMismatch password1 and password2 differ
var ErrPasswordMismatch = goerrors.New("password does not match", goerrors.CategoryValidation).
	WithTextCode(TextCodePasswordMismatch).
	WithCode(goerrors.CodeBadRequest)

// ErrDeliveryFailed mail transport rejected the message
var ErrDeliveryFailed = goerrors.New("something went wrong, please try again", goerrors.CategoryInternal).
	WithTextCode(TextCodeDeliveryFailed).
	WithCode(goerrors.CodeInternal)

// ErrUnauthorized missing or invalid session token
var ErrUnauthorized = goerrors.New("no token provided, access denied", goerrors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(goerrors.CodeUnauthorized)

// ErrDuplicateEmail store rejected an insert on the unique email index
var ErrDuplicateEmail = goerrors.New("email already in use", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = goerrors.New("identity not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrMissingSigningKey configuration has no usable signing key
var ErrMissingSigningKey = goerrors.New("signing key is required", goerrors.CategoryBadInput).
	WithTextCode(TextCodeMissingSigningKey)

// ErrNoEmptyString is returned when a required string argument is empty
var ErrNoEmptyString = stderrors.New("string argument can not be empty")

// NewValidationError turns ozzo validation errors into a rich validation
// error. The per-field messages are stored under the "fields" metadata key.
func NewValidationError(err error, message string) *goerrors.Error {
	if err == nil {
		return nil
	}
	return goerrors.ValidateWithOzzo(func() error { return err }, message).
		WithCode(goerrors.CodeBadRequest).
		WithTextCode(TextCodeValidation).
		WithMetadata(map[string]any{
			"fields": validationFields(err),
		})
}

func validationFields(err error) map[string]string {
	fields := map[string]string{}

	var verrs validation.Errors
	if !stderrors.As(err, &verrs) {
		fields["_"] = err.Error()
		return fields
	}

	for name, ferr := range verrs {
		if ferr == nil {
			continue
		}
		fields[name] = ferr.Error()
	}
	return fields
}

// ValidationFields returns the per-field messages of a validation error.
func ValidationFields(err error) (map[string]string, bool) {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata == nil {
		return nil, false
	}
	fields, ok := richErr.Metadata["fields"].(map[string]string)
	return fields, ok
}

// IsValidationError reports whether err was produced by request validation.
func IsValidationError(err error) bool {
	return HasTextCode(err, TextCodeValidation)
}

// HasTextCode reports whether err is a rich error with the given text code.
func HasTextCode(err error, code string) bool {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsMalformedError will check for malformed tokens
func IsMalformedError(err error) bool {
	return HasTextCode(err, TextCodeTokenMalformed) ||
		HasTextCode(err, TextCodeTokenPurpose)
}

// IsTokenError reports whether err is any codec level token failure.
func IsTokenError(err error) bool {
	return IsMalformedError(err) ||
		IsTokenExpiredError(err) ||
		HasTextCode(err, TextCodeTokenSignature) ||
		HasTextCode(err, TextCodeTokenConsumed) ||
		HasTextCode(err, TextCodeInvalidToken)
}
