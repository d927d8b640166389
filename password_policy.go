package membership

import (
	"bufio"
	"fmt"
	"strings"
	"unicode"
)

// DefaultMinPasswordLength is the shortest accepted password
const DefaultMinPasswordLength = 8

// PasswordPolicy rejects weak passwords: too short, purely numeric, on the
// common password list or equal to one of the account's own attributes.
type PasswordPolicy struct {
	MinLength int
	common    map[string]struct{}
}

// NewPasswordPolicy builds a policy with the embedded common password list
// plus any extra entries.
func NewPasswordPolicy(minLength int, extra ...string) *PasswordPolicy {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}

	p := &PasswordPolicy{
		MinLength: minLength,
		common:    make(map[string]struct{}),
	}

	scanner := bufio.NewScanner(strings.NewReader(commonPasswords))
	for scanner.Scan() {
		p.add(scanner.Text())
	}

	for _, e := range extra {
		p.add(e)
	}

	return p
}

// DefaultPasswordPolicy returns the policy used when none is configured
func DefaultPasswordPolicy() *PasswordPolicy {
	return NewPasswordPolicy(DefaultMinPasswordLength)
}

func (p *PasswordPolicy) add(entry string) {
	entry = strings.ToLower(strings.TrimSpace(entry))
	if entry == "" || strings.HasPrefix(entry, "#") {
		return
	}
	p.common[entry] = struct{}{}
}

// IsCommon reports whether password is on the common list
func (p *PasswordPolicy) IsCommon(password string) bool {
	_, ok := p.common[strings.ToLower(password)]
	return ok
}

// Problems returns every rule password violates. attributes are values the
// password must not equal, like the username or email.
func (p *PasswordPolicy) Problems(password string, attributes ...string) []string {
	var out []string

	if len([]rune(password)) < p.MinLength {
		out = append(out, fmt.Sprintf("password must contain at least %d characters", p.MinLength))
	}

	if password != "" && strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) == -1 {
		out = append(out, "password can't be entirely numeric")
	}

	if p.IsCommon(password) {
		out = append(out, "password is too common")
	}

	lower := strings.ToLower(password)
	for _, attr := range attributes {
		attr = strings.ToLower(strings.TrimSpace(attr))
		if attr == "" {
			continue
		}
		if lower == attr {
			out = append(out, "password is too similar to the account details")
			break
		}
	}

	return out
}

// Validate returns a weak password error listing every problem, or nil
func (p *PasswordPolicy) Validate(password string, attributes ...string) error {
	problems := p.Problems(password, attributes...)
	if len(problems) == 0 {
		return nil
	}

	return NewValidationError("password is too weak", TextCodeWeakPassword, map[string]string{
		"password": strings.Join(problems, "; "),
	})
}
