/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tomoncle/modelctl"
	"github.com/tomoncle/modelctl/database"
	"github.com/tomoncle/modelctl/types"
)

type apiError struct {
	Error  string             `json:"error"`
	Fields []types.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps controller and driver errors to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, modelctl.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, modelctl.ErrValidation), errors.Is(err, modelctl.ErrUnresolvedVariant):
		return http.StatusUnprocessableEntity
	}
	if is, sqlErr := database.IsSqlError(err); is {
		switch {
		case sqlErr == database.NoRowsErr:
			return http.StatusNotFound
		case sqlErr == database.DuplicateKeyErr:
			return http.StatusConflict
		case sqlErr.IsConstraintViolation():
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) int {
	status := statusFor(err)
	body := apiError{Error: err.Error()}
	var verr *types.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Errors
	}
	if status == http.StatusInternalServerError {
		body.Error = http.StatusText(status)
	}
	writeJSON(w, status, body)
	return status
}
