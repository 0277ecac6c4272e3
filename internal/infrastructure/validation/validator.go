package validation

import (
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/IgorGrieder/minimizurl/internal/processing/links"
	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once

	aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,64}$`)
)

// Get returns the shared validator with the project's custom tags:
//
//	notblank  string with at least one non-space character
//	weburl    http(s) URL, scheme optional ("example.com/x" is accepted)
//	alias     3-64 characters from [A-Za-z0-9_-], not a reserved route name
func Get() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
			return fld.Name
		})

		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return strings.TrimSpace(fl.Field().String()) != ""
		})

		_ = validate.RegisterValidation("weburl", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			return IsWebURL(fl.Field().String())
		})

		_ = validate.RegisterValidation("alias", func(fl validator.FieldLevel) bool {
			if fl.Field().Kind() != reflect.String {
				return false
			}
			alias := fl.Field().String()
			return aliasPattern.MatchString(alias) && !links.IsReservedCode(alias)
		})
	})
	return validate
}

func Validate(s any) error {
	return Get().Struct(s)
}

// IsWebURL reports whether raw points at an http or https host.
func IsWebURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.ContainsAny(raw, " \t\r\n") {
		return false
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	host := u.Hostname()
	return host == "localhost" || strings.Contains(host, ".")
}

// FirstError returns a short "field: tag" description of the first failure.
func FirstError(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	return fe.Field() + ": failed " + fe.Tag() + " validation"
}
