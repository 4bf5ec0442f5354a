package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator"
	"github.com/meghashyamc/corescout/db/searchdb"
	"github.com/meghashyamc/corescout/logger"
	"github.com/meghashyamc/corescout/services/export"
)

const maxQueryLength = 1000

type Validator struct {
	validator                *validator.Validate
	logger                   logger.Logger
	tagValidationDetailsOnce sync.Once
	tagValidationDetailsMap  map[string]tagValidationDetails
}

type tagValidationDetails struct {
	validatorFunc validator.Func
	err           error
}

func New(logger logger.Logger) (*Validator, error) {
	validator := &Validator{validator: validator.New(), logger: logger}
	validator.validator.RegisterTagNameFunc(useJSONFieldNames)
	if err := validator.registerCustomValidatorsForTags(); err != nil {
		return nil, err
	}

	return validator, nil
}

func (v *Validator) Validate(i any) error {

	if err := v.validator.Struct(i); err != nil {
		v.logger.Warn("validation failed", "err", err.Error())
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {

			tagValidationDetails, ok := v.getTagValidationDetails()[validationErrs[0].Tag()]
			if ok {
				return fmt.Errorf("field '%s': %w", validationErrs[0].Field(), tagValidationDetails.err)
			}

			switch validationErrs[0].Tag() {
			case "required":
				return fmt.Errorf("missing required field '%s'", validationErrs[0].Field())

			case "min", "max":
				return fmt.Errorf("value or length of field '%s' is not in the expected range", validationErrs[0].Field())

			}
		}
		return err
	}
	return nil
}

func (v *Validator) getTagValidationDetails() map[string]tagValidationDetails {
	v.tagValidationDetailsOnce.Do(func() {
		v.tagValidationDetailsMap = map[string]tagValidationDetails{
			"valid_index_name":       {validatorFunc: v.isValidIndexName, err: errors.New("invalid index name")},
			"valid_query":            {validatorFunc: v.isValidQuery, err: errors.New("invalid query")},
			"valid_coordinate_field": {validatorFunc: v.isValidCoordinateField, err: errors.New("invalid coordinate field")},
			"valid_rel_path":         {validatorFunc: v.isValidRelPath, err: errors.New("invalid file path")},
		}
	})
	return v.tagValidationDetailsMap
}

func (v *Validator) registerCustomValidatorsForTags() error {

	tagValidationDetailsMap := v.getTagValidationDetails()

	for tag, tagValidationDetails := range tagValidationDetailsMap {
		if err := v.validator.RegisterValidation(tag, tagValidationDetails.validatorFunc); err != nil {
			v.logger.Error("failed to register customer validator function", "err", err.Error())
			return err
		}
	}
	return nil
}

func useJSONFieldNames(fld reflect.StructField) string {
	tag := fld.Tag.Get("json")
	if tag == "" {
		tag = fld.Tag.Get("form")
	}
	name := strings.SplitN(tag, ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}

func (v *Validator) isValidIndexName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if err := searchdb.ValidateIndexName(name); err != nil {
		v.logger.Warn("index name is invalid", "name", name)
		return false
	}
	return true
}

// isValidQuery accepts the empty query, which matches every record.
func (v *Validator) isValidQuery(fl validator.FieldLevel) bool {
	query := fl.Field().String()
	if len(query) > maxQueryLength {
		v.logger.Warn("query is too long", "length", len(query))
		return false
	}
	if strings.Contains(query, "\x00") {
		v.logger.Warn("query has null byte")
		return false
	}

	return true
}

func (v *Validator) isValidCoordinateField(fl validator.FieldLevel) bool {
	field := fl.Field().String()
	if _, err := export.ParseCoordinateField(field); err != nil {
		v.logger.Warn("coordinate field is invalid", "field", field)
		return false
	}
	return true
}

// isValidRelPath only rejects paths that cannot name a file at all. Paths
// that escape the ingestion root are skipped with a warning during
// ingestion rather than failing the request.
func (v *Validator) isValidRelPath(fl validator.FieldLevel) bool {
	inputPath := fl.Field().String()
	if strings.TrimSpace(inputPath) == "" {
		v.logger.Warn("file path is empty", "path", inputPath)
		return false
	}

	if strings.Contains(inputPath, "\x00") {
		v.logger.Warn("file path has null byte", "path", inputPath)
		return false
	}

	return true
}
