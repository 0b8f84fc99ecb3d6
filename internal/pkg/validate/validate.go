package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// mailboxPattern is the deliberately loose local@domain.tld shape accepted
// for OTP delivery. It is looser than the validator's RFC 5322 "email" tag.
var mailboxPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// v is the package-level singleton validator. It is initialised once at
// package load time. Any custom type registrations must be made during init()
// before the first call to Struct.
var v = validator.New()

func init() {
	_ = v.RegisterValidation("mailbox", func(fl validator.FieldLevel) bool {
		return mailboxPattern.MatchString(fl.Field().String())
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		ve, ok := err.(validator.ValidationErrors)
		if !ok {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// Mailbox reports whether s looks like local@domain.tld.
func Mailbox(s string) bool {
	return v.Var(s, "required,mailbox") == nil
}
