package auth

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	minEmailLength    = 6
	maxEmailLength    = 100
	minPasswordLength = 6
	minTokenLength    = 6
)

// MaxPasswordBytes is the longest password bcrypt accepts
const MaxPasswordBytes = 72

var errPasswordTooLong = errors.New("the length must be no more than 72 bytes")

// passwordBytes counts bytes, ozzo's Length counts runes
func passwordBytes(value any) error {
	s, _ := value.(string)
	if len(s) > MaxPasswordBytes {
		return errPasswordTooLong
	}
	return nil
}

func emailRules(email *string) *validation.FieldRules {
	return validation.Field(email,
		validation.Required,
		validation.Length(minEmailLength, maxEmailLength),
		is.Email,
	)
}

func passwordRules(password *string) *validation.FieldRules {
	return validation.Field(password,
		validation.Required,
		validation.Length(minPasswordLength, 0),
		validation.By(passwordBytes),
	)
}

func validatePayload(message string, rules func() error) error {
	if err := rules(); err != nil {
		return NewValidationError(err, message)
	}
	return nil
}

// Validate will run validation rules
func (m SignupMessage) Validate() error {
	return validatePayload("invalid signup request payload", func() error {
		return validation.ValidateStruct(&m,
			emailRules(&m.Email),
			passwordRules(&m.Password),
		)
	})
}

// Validate will run validation rules
func (m VerifySignupMessage) Validate() error {
	return validatePayload("invalid verification request payload", func() error {
		return validation.ValidateStruct(&m,
			validation.Field(&m.Token,
				validation.Required,
				validation.Length(minTokenLength, 0),
			),
		)
	})
}

// Validate will run validation rules
func (m LoginMessage) Validate() error {
	return validatePayload("invalid login request payload", func() error {
		return validation.ValidateStruct(&m,
			emailRules(&m.Email),
			passwordRules(&m.Password),
		)
	})
}

// Validate will run validation rules
func (m InitializePasswordResetMessage) Validate() error {
	return validatePayload("invalid password reset request payload", func() error {
		return validation.ValidateStruct(&m,
			emailRules(&m.Email),
		)
	})
}

// Validate checks the new password pair only, the token is checked when it
// is decoded.
func (m FinalizePasswordResetMessage) Validate() error {
	return validatePayload("invalid password reset payload", func() error {
		return validation.ValidateStruct(&m,
			passwordRules(&m.Password1),
			passwordRules(&m.Password2),
		)
	})
}
