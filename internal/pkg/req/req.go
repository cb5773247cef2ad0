/*
Package req provides helpers for HTTP request parsing and data binding.

It encapsulates strict JSON decoding with error handling so that handlers only
deal with well-formed input structs.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"slashchat/internal/pkg/errs"
)

// MaxBodySize is the maximum allowed size of a JSON request body.
const MaxBodySize int64 = 64 << 10 // 64 KB

// BindJSON binds the JSON request body to the destination struct dst.
// Unknown fields and trailing content are rejected.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
