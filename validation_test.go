package membership_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/goliatone/go-membership"
	"github.com/stretchr/testify/assert"
)

func TestIsInternationalPhone(t *testing.T) {
	tests := []struct {
		name    string
		phone   string
		wantErr bool
	}{
		{name: "us number with plus", phone: "+15550001234"},
		{name: "uk number", phone: "+447911123456"},
		{name: "digits only", phone: "5550001234"},
		{name: "empty is left to required", phone: ""},
		{name: "too short", phone: "123", wantErr: true},
		{name: "too long", phone: "+12345678901234567", wantErr: true},
		{name: "letters", phone: "+1555abc1234", wantErr: true},
		{name: "separators", phone: "+1 555 000 1234", wantErr: true},
		{name: "unassigned calling code", phone: "+99912345678", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := membership.IsInternationalPhone(tt.phone)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegisterAccountMessageValidate(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		assert.NoError(t, validRegistration().Validate())
	})

	t.Run("reports every bad field", func(t *testing.T) {
		msg := validRegistration()
		msg.Email = "not-an-email"
		msg.Username = "a b"
		msg.Phone = "123"
		msg.FirstName = ""

		fields := membership.FormatValidationErrorToMap(msg.Validate())

		assert.Contains(t, fields, "email")
		assert.Contains(t, fields, "username")
		assert.Contains(t, fields, "phone_number")
		assert.Contains(t, fields, "first_name")
		assert.NotContains(t, fields, "last_name")
	})

	t.Run("short password is left to the strength policy", func(t *testing.T) {
		msg := validRegistration()
		msg.Password = "short"
		msg.PasswordConfirmation = "short"

		assert.NoError(t, msg.Validate())
	})

	t.Run("overlong password", func(t *testing.T) {
		msg := validRegistration()
		msg.Password = strings.Repeat("a", 65)
		msg.PasswordConfirmation = msg.Password

		fields := membership.FormatValidationErrorToMap(msg.Validate())
		assert.Contains(t, fields, "password")
		assert.Contains(t, fields, "password_confirmation")
	})
}

func TestLoginMessageValidate(t *testing.T) {
	assert.NoError(t, membership.LoginMessage{Email: "a@x.io", Password: "Tr0ub4dor&3"}.Validate())

	fields := membership.FormatValidationErrorToMap(membership.LoginMessage{}.Validate())
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
}

func TestFormatValidationErrorToMap(t *testing.T) {
	assert.Empty(t, membership.FormatValidationErrorToMap(nil))

	fields := membership.FormatValidationErrorToMap(errors.New("boom"))
	assert.Equal(t, map[string]string{"form": "boom"}, fields)
}
