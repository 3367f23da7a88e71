package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/isdelr/ender-tasks-be/internal/api/response"
	"github.com/isdelr/ender-tasks-be/internal/apperr"
	"github.com/isdelr/ender-tasks-be/internal/auth"
	"github.com/isdelr/ender-tasks-be/internal/models"
)

// apiFunc is a handler that reports failure by returning an error.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

// handle adapts an apiFunc, rendering any returned error as the error envelope.
func handle(fn apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			response.Error(w, r, err)
		}
	}
}

// decodeBody reads a JSON or form-encoded request body into dst. Form
// fields are matched against dst's json tags. An empty body leaves dst
// untouched.
func decodeBody(r *http.Request, dst any) error {
	var err error
	if isForm(r) {
		err = decodeForm(r, dst)
	} else {
		err = json.NewDecoder(r.Body).Decode(dst)
	}
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperr.Validation("Request body too large")
	}
	return apperr.Validation("Invalid request body", err.Error())
}

func isForm(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/x-www-form-urlencoded"
}

// decodeForm takes the first value of each field. Every payload is a flat
// struct of strings, so the fields go through encoding/json to reuse its tags.
func decodeForm(r *http.Request, dst any) error {
	if err := r.ParseForm(); err != nil {
		return err
	}

	fields := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			fields[key] = values[0]
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

// currentUser returns the user resolved by auth.Middleware.
func currentUser(r *http.Request) (models.User, error) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		return models.User{}, apperr.Auth("Unauthorized request")
	}
	return user, nil
}
