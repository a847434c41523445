/*
Package req provides helpers for binding HTTP request bodies.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"pairchat/internal/pkg/errs"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes int64 = 64 << 10

// BindJSON decodes the JSON request body into dst.
// It requires an application/json Content-Type, rejects unknown fields and trailing data.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
