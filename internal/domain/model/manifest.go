package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidManifest is returned by Manifest.Validate.
var ErrInvalidManifest = errors.New("invalid manifest")

// validate is shared by every model type; validator caches struct metadata.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Validator returns the shared validator so adapters can validate their own payloads.
func Validator() *validator.Validate { return validate }

// Manifest groups the records and dataset facts checked by one run.
// Per-record sections are scanned record by record; dataset sections are
// evaluated once and any failure fails the run.
type Manifest struct {
	Name           string `json:"name" yaml:"name" validate:"required,notblank,max=200"`
	IdempotencyKey string `json:"idempotency_key,omitempty" yaml:"idempotency_key,omitempty" validate:"max=200"`

	Triplets []EventTriplet       `json:"triplets,omitempty" yaml:"triplets,omitempty" validate:"dive"`
	Windows  []Window             `json:"windows,omitempty" yaml:"windows,omitempty" validate:"dive"`
	Sampling []SamplingDescriptor `json:"sampling,omitempty" yaml:"sampling,omitempty" validate:"dive"`

	Splits      *SplitAssignment `json:"splits,omitempty" yaml:"splits,omitempty"`
	Classes     *LabelPopulation `json:"classes,omitempty" yaml:"classes,omitempty"`
	LabelDomain *LabelDomain     `json:"label_domain,omitempty" yaml:"label_domain,omitempty"`
	LabelRange  *LabelRange      `json:"label_range,omitempty" yaml:"label_range,omitempty"`
}

// Empty reports whether the manifest has nothing to check.
func (m *Manifest) Empty() bool {
	return len(m.Triplets) == 0 && len(m.Windows) == 0 && len(m.Sampling) == 0 &&
		m.Splits == nil && m.Classes == nil && m.LabelDomain == nil && m.LabelRange == nil
}

// Records returns the number of per-record entries.
func (m *Manifest) Records() int {
	return len(m.Triplets) + len(m.Windows) + len(m.Sampling)
}

// Validate checks the struct tags and that at least one section is present.
func (m *Manifest) Validate() error {
	if m == nil {
		return fmt.Errorf("%w: nil manifest", ErrInvalidManifest)
	}
	if err := validate.Struct(m); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidManifest, describe(err))
	}
	if m.Empty() {
		return fmt.Errorf("%w: no sections to check", ErrInvalidManifest)
	}
	return nil
}

// describe flattens validator errors into "field: tag" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

// DescribeValidation renders a validator error the same way Validate does.
func DescribeValidation(err error) string { return describe(err) }
