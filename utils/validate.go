package utils

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	validate     *validator.Validate
	translator   ut.Translator
	validateOnce sync.Once
)

func initValidator() {
	english := en.New()
	translator, _ = ut.New(english, english).GetTranslator("en")
	validate = validator.New(validator.WithRequiredStructEnabled())
	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(fmt.Sprintf("failed to register validator translations: %s", err))
	}
}

// Validate checks the `validate` struct tags of v and reports every failed
// field as one readable error.
func Validate(v any) error {
	validateOnce.Do(initValidator)
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	messages := make([]string, len(fieldErrs))
	for i, fieldErr := range fieldErrs {
		messages[i] = fmt.Sprintf("%s: %s", fieldErr.Namespace(), fieldErr.Translate(translator))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
}
