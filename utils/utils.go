package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"kpitracker/models"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

func init() {
	Validate = validator.New()
	// Report fields by their JSON names.
	Validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

// DecodeAndValidate decodes the request body into a structure and validates it.
// On failure the error response has already been written.
func DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		HandleMessageResponse(w, "Invalid request body", http.StatusBadRequest)
		return err
	}
	if err := ValidateStruct(v); err != nil {
		HandleError(w, err)
		return err
	}
	return nil
}

// ValidateStruct runs the validator tags and reports the first failing field.
func ValidateStruct(v interface{}) error {
	err := Validate.Struct(v)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok || len(validationErrors) == 0 {
		return NewValidationError("", err.Error())
	}
	first := validationErrors[0]
	return NewValidationError(first.Field(), fmt.Sprintf("%s failed on '%s'", first.Field(), first.Tag()))
}

// HandleError maps an operation error onto the response envelope.
func HandleError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Kind == KindValidation && appErr.Field != "" {
		HandleValidationResponse(w, status, appErr.Message, map[string]string{appErr.Field: appErr.Message})
		return
	}
	HandleMessageResponse(w, PublicMessage(err), status)
}

func HandleMessageResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	response := models.NewMessageResponse(statusCode, message)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func HandleValidationResponse(w http.ResponseWriter, statusCode int, message string, validationErrors interface{}) {
	w.Header().Set("Content-Type", "application/json")
	response := models.NewValidationResponse(statusCode, message, validationErrors)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func HandleDataResponse(w http.ResponseWriter, message string, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	response := models.NewDataResponse(statusCode, message, data)
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
