package form

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/debemdeboas/quill/internal/model"
	"github.com/debemdeboas/quill/internal/slug"
)

const (
	MsgTitleRequired  = "Title is required."
	MsgSlugRequired   = "Slug is required."
	MsgSlugInvalid    = "Slug may only contain lowercase letters, digits and dashes."
	MsgStatusRequired = "Status is required."
	MsgStatusInvalid  = "Status must be active or inactive."
	MsgImageRequired  = "Featured image is required for new posts."
	MsgImageType      = "Featured image must be a png, jpg, jpeg or gif."
	MsgImageEmpty     = "Featured image is empty."
)

var statusValues = func() []interface{} {
	values := make([]interface{}, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		values = append(values, string(s))
	}
	return values
}()

// Validation is the outcome of checking every field of a draft.
type Validation struct {
	Valid  bool
	Errors map[Field]string
}

func trimmedRequired(msg string) validation.Rule {
	return validation.By(func(value interface{}) error {
		s, _ := value.(string)
		if strings.TrimSpace(s) == "" {
			return errors.New(msg)
		}
		return nil
	})
}

var slugFormat = validation.By(func(value interface{}) error {
	s, _ := value.(string)
	if !slug.Valid(s) {
		return errors.New(MsgSlugInvalid)
	}
	return nil
})

var imageFormat = validation.By(func(value interface{}) error {
	img, _ := value.(*model.ImageFile)
	if img == nil {
		return nil
	}
	if len(img.Data) == 0 {
		return errors.New(MsgImageEmpty)
	}
	if !img.Accepted() {
		return errors.New(MsgImageType)
	}
	return nil
})

// rules returns the validation rules of a single field in the given mode.
func rules(field Field, mode Mode) []validation.Rule {
	switch field {
	case FieldTitle:
		return []validation.Rule{trimmedRequired(MsgTitleRequired)}
	case FieldSlug:
		return []validation.Rule{
			validation.Required.Error(MsgSlugRequired),
			slugFormat,
		}
	case FieldStatus:
		return []validation.Rule{
			validation.Required.Error(MsgStatusRequired),
			validation.In(statusValues...).Error(MsgStatusInvalid),
		}
	case FieldImage:
		return []validation.Rule{
			validation.When(mode.IsNew(), validation.Required.Error(MsgImageRequired)),
			imageFormat,
		}
	default:
		// Content may be empty; whether that is acceptable is up to the caller.
		return nil
	}
}

// validateDraft runs every field rule and collects the first message per field.
func validateDraft(d *Draft, mode Mode) Validation {
	status := string(d.Status)

	err := validation.Errors{
		string(FieldTitle):   validation.Validate(d.Title, rules(FieldTitle, mode)...),
		string(FieldSlug):    validation.Validate(d.Slug, rules(FieldSlug, mode)...),
		string(FieldContent): validation.Validate(d.Content, rules(FieldContent, mode)...),
		string(FieldStatus):  validation.Validate(status, rules(FieldStatus, mode)...),
		string(FieldImage):   validation.Validate(d.Image, rules(FieldImage, mode)...),
	}.Filter()

	res := Validation{Valid: true, Errors: map[Field]string{}}
	if err == nil {
		return res
	}

	var errs validation.Errors
	if errors.As(err, &errs) {
		for k, e := range errs {
			res.Errors[Field(k)] = e.Error()
		}
	} else {
		res.Errors[""] = err.Error()
	}
	res.Valid = false
	return res
}

// validateField checks one field of the draft.
func validateField(d *Draft, field Field, mode Mode) error {
	switch field {
	case FieldTitle:
		return validation.Validate(d.Title, rules(field, mode)...)
	case FieldSlug:
		return validation.Validate(d.Slug, rules(field, mode)...)
	case FieldContent:
		return validation.Validate(d.Content, rules(field, mode)...)
	case FieldStatus:
		return validation.Validate(string(d.Status), rules(field, mode)...)
	case FieldImage:
		return validation.Validate(d.Image, rules(field, mode)...)
	}
	return nil
}
