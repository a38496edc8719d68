// Package fixtures describes the request scenarios the processor is run
// against: which URL to fetch, how, with which trust anchor and which
// outcome is expected. Cases are built in code or loaded from YAML.
package fixtures

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"

	"github.com/gaborage/go-netreq/request"
)

// Variant selects the processor entry point a case runs through.
type Variant string

const (
	VariantPrimary    Variant = "primary"
	VariantWorkaround Variant = "workaround"
)

// Default case names.
const (
	CaseSimpleGet         = "Simple Get"
	CaseRedirectToHTTPS   = "Redirect To Https"
	CaseRedirectToHTTPSWA = "Redirect To Https WA"
	CaseNoEndingSlash     = "No ending /"
)

// DefaultTrustAnchorName is the certificate resource the default redirect
// cases trust.
const DefaultTrustAnchorName = "fixture.cer"

const defaultBootstrapPath = "/RedirTest3"

// Case is one request scenario.
type Case struct {
	Name         string  `koanf:"name" validate:"required"`
	URL          string  `koanf:"url" validate:"required,url"`
	BootstrapURL string  `koanf:"bootstrap_url" validate:"omitempty,url"`
	Method       string  `koanf:"method" validate:"omitempty,http_method"`
	Body         string  `koanf:"body"`
	ContentType  string  `koanf:"content_type"`
	TrustAnchor  string  `koanf:"trust_anchor"`
	Variant      Variant `koanf:"variant" validate:"required,variant"`
	Expect       string  `koanf:"expect" validate:"required,outcome"`
}

// ExpectedKind returns the outcome kind the case expects.
func (c *Case) ExpectedKind() request.Kind {
	k, _ := request.ParseKind(c.Expect)
	return k
}

// Suite is a named list of cases.
type Suite struct {
	Name  string `koanf:"name"`
	Cases []Case `koanf:"cases" validate:"required,min=1,dive"`
}

// DefaultCases returns the four access scenarios against a fixture server
// whose plain HTTP origin is baseURL. trustAnchor names the certificate
// resource trusted for the HTTPS leg of the redirect cases. With
// strictURLPath the target without a path is expected to be rejected.
func DefaultCases(baseURL, trustAnchor string, strictURLPath bool) []Case {
	base := strings.TrimRight(baseURL, "/")
	success := string(request.KindSuccess)
	noSlash := success
	if strictURLPath {
		noSlash = string(request.KindInvalidURL)
	}
	return []Case{
		{Name: CaseSimpleGet, URL: base + "/", Variant: VariantPrimary, Expect: success},
		{
			Name:         CaseRedirectToHTTPS,
			URL:          base + "/RedirTest1",
			BootstrapURL: base + defaultBootstrapPath,
			TrustAnchor:  trustAnchor,
			Variant:      VariantPrimary,
			Expect:       success,
		},
		{
			Name:         CaseRedirectToHTTPSWA,
			URL:          base + "/RedirTest1",
			BootstrapURL: base + defaultBootstrapPath,
			TrustAnchor:  trustAnchor,
			Variant:      VariantWorkaround,
			Expect:       success,
		},
		{Name: CaseNoEndingSlash, URL: base, Variant: VariantPrimary, Expect: noSlash},
	}
}

// Load parses and validates a YAML suite.
func Load(data []byte) (*Suite, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to parse fixtures: %w", err)
	}

	var suite Suite
	if err := k.UnmarshalWithConf("", &suite, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode fixtures: %w", err)
	}
	for i := range suite.Cases {
		if suite.Cases[i].Variant == "" {
			suite.Cases[i].Variant = VariantPrimary
		}
	}

	if err := Validate(&suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

// LoadFile reads and validates a YAML suite from path.
func LoadFile(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures file %s: %w", path, err)
	}
	suite, err := Load(data)
	if err != nil {
		return nil, err
	}
	if suite.Name == "" {
		suite.Name = path
	}
	return suite, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("variant", func(fl validator.FieldLevel) bool {
		switch Variant(fl.Field().String()) {
		case VariantPrimary, VariantWorkaround:
			return true
		}
		return false
	})
	_ = v.RegisterValidation("outcome", func(fl validator.FieldLevel) bool {
		_, err := request.ParseKind(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("http_method", func(fl validator.FieldLevel) bool {
		_, err := request.ParseMethod(fl.Field().String())
		return err == nil
	})
	return v
}

// ValidationError lists the fields of a suite that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid fixtures: " + strings.Join(e.Fields, "; ")
}

// Validate checks a suite. Duplicate case names are rejected.
func Validate(suite *Suite) error {
	var fields []string
	if err := validate.Struct(suite); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields = append(fields, fieldMessage(fe))
		}
	}

	seen := make(map[string]bool, len(suite.Cases))
	for _, c := range suite.Cases {
		if c.Name != "" && seen[c.Name] {
			fields = append(fields, fmt.Sprintf("duplicate case name %q", c.Name))
		}
		seen[c.Name] = true
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	ns := fe.Namespace()
	switch fe.Tag() {
	case "required":
		return ns + " is required"
	case "url":
		return fmt.Sprintf("%s must be a valid URL, got %q", ns, fe.Value())
	case "variant":
		return fmt.Sprintf("%s must be primary or workaround, got %q", ns, fe.Value())
	case "outcome":
		return fmt.Sprintf("%s names an unknown outcome %q", ns, fe.Value())
	case "http_method":
		return fmt.Sprintf("%s names an unsupported method %q", ns, fe.Value())
	case "min":
		return ns + " must not be empty"
	default:
		return ns + " failed validation"
	}
}
