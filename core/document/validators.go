package document

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tutorly/core"
)

var (
	tagsTag  = "tags"
	tagsText = "at least one tag is required"
)

// InitValidators registers the document validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(tagsTag, tagsValidation)
	core.RegisterCustomTranslation(validate, translator, tagsTag, tagsText)
}

// tagsValidation requires a comma separated list holding at least one non-blank tag.
func tagsValidation(fl validator.FieldLevel) bool {
	return len(SplitTags(fl.Field().String())) > 0
}
