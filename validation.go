package membership

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/nyaruka/phonenumbers"
)

var (
	phonePattern    = regexp.MustCompile(`^\+?1?\d{9,15}$`)
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
)

// Validate runs the field shape rules of a registration payload. It does
// not check password strength or uniqueness.
func (m RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(
			&m.Username,
			validation.Required,
			validation.Length(4, 20),
			validation.Match(usernamePattern).Error("may contain only letters, numbers and @/./+/-/_ characters"),
		),
		validation.Field(&m.Phone, validation.Required, validation.By(IsInternationalPhone)),
		validation.Field(&m.FirstName, validation.Required, validation.Length(2, 30)),
		validation.Field(&m.LastName, validation.Required, validation.Length(2, 30)),
		validation.Field(&m.Password, validation.Required, validation.Length(0, 64)),
		validation.Field(&m.PasswordConfirmation, validation.Required, validation.Length(0, 64)),
	)
}

// Validate will run validation rules
func (m LoginMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Email, validation.Required, is.Email),
		validation.Field(&m.Password, validation.Required, validation.Length(8, 64)),
	)
}

// Validate will run validation rules
func (m VerifyAccountMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Token, validation.Required),
	)
}

// IsInternationalPhone checks a phone number has the +999999999 shape, up to
// 15 digits. Numbers with a leading + must also be a possible number for
// their country calling code.
func IsInternationalPhone(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}

	if !phonePattern.MatchString(s) {
		return errors.New("phone number must be entered in the format: +999999999. Up to 15 digits allowed")
	}

	if !strings.HasPrefix(s, "+") {
		return nil
	}

	num, err := phonenumbers.Parse(s, "")
	if err != nil || !phonenumbers.IsPossibleNumber(num) {
		return errors.New("phone number is not a possible international number")
	}

	return nil
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map. Other errors are reported under "form".
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["form"] = err.Error()
	return out
}
