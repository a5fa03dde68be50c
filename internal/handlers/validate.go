package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"clinigate/internal/apierror"
)

// Validation limits for request fields.
const (
	maxBodyBytes   = 1 << 20
	maxEmailLen    = 320
	maxPasswordLen = 1_024
	maxTOTPLen     = 10
)

// featureCodePattern restricts feature codes to lowercase snake case.
var featureCodePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,62}$`)

// decodeJSON reads a single JSON object from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return apierror.New(apierror.Validation, "Request body is required")
		}
		return apierror.Wrap(apierror.Validation, "Invalid request body", err)
	}
	return nil
}

// validateLogin checks login inputs and returns the first error found.
func validateLogin(email, password, code string) string {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "Email and password are required"
	}
	if utf8.RuneCountInString(email) > maxEmailLen || !strings.Contains(email, "@") {
		return "Invalid email address"
	}
	if len(password) > maxPasswordLen {
		return "Password is too long"
	}
	if len(code) > maxTOTPLen {
		return "Invalid two-factor code"
	}
	return ""
}

// validateFeatureCode checks a feature code path parameter.
func validateFeatureCode(code string) string {
	if !featureCodePattern.MatchString(code) {
		return "Invalid feature code"
	}
	return ""
}
