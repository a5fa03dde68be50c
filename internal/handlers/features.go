package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"clinigate/internal/apierror"
	"clinigate/internal/auth"
	"clinigate/internal/clock"
	"clinigate/internal/models"
)

// FeatureWriter persists feature assignments. Implemented by
// store.FeatureStore and access.MemoryFeatures.
type FeatureWriter interface {
	Upsert(ctx context.Context, fa *models.FeatureAssignment) error
	Delete(ctx context.Context, userID uuid.UUID, code string) (bool, error)
}

// Features groups the feature assignment administration handlers.
type Features struct {
	writer    FeatureWriter
	directory auth.Directory
	clock     clock.Clock
	timeout   time.Duration
}

// NewFeatures creates the feature administration handlers. Target users
// are resolved through directory to enforce organization scoping.
func NewFeatures(writer FeatureWriter, directory auth.Directory, clk clock.Clock) *Features {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Features{writer: writer, directory: directory, clock: clk, timeout: auth.DefaultLookupTimeout}
}

type featureRequest struct {
	Enabled   *bool      `json:"enabled"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// target parses the route parameters and checks the caller may manage the
// target user's features. Non-super admins are confined to their own
// organization.
func (f *Features) target(r *http.Request) (uuid.UUID, string, error) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		return uuid.Nil, "", apierror.New(apierror.Validation, "Invalid user id")
	}
	code := chi.URLParam(r, "code")
	if msg := validateFeatureCode(code); msg != "" {
		return uuid.Nil, "", apierror.New(apierror.Validation, msg)
	}

	caller := auth.FromContext(r.Context())
	if caller == nil {
		return uuid.Nil, "", apierror.New(apierror.Authentication, apierror.MsgUnauthorized)
	}

	ctx, cancel := context.WithTimeout(r.Context(), f.timeout)
	defer cancel()

	switch res := f.directory.ByID(ctx, userID).(type) {
	case auth.Found:
		if !caller.IsSuperAdmin() {
			if res.User.OrganizationID == nil || !caller.InOrganization(*res.User.OrganizationID) {
				slog.Info("feature change denied", "reason", "organization", "caller", caller.UserID, "target", userID)
				return uuid.Nil, "", apierror.New(apierror.Authorization, apierror.MsgForbidden)
			}
		}
	case auth.NotFound:
		return uuid.Nil, "", apierror.New(apierror.NotFound, "User not found")
	case auth.BackendError:
		return uuid.Nil, "", apierror.Wrap(apierror.ServiceUnavailable, "User directory unavailable", res.Err)
	default:
		return uuid.Nil, "", apierror.New(apierror.ServiceUnavailable, "User directory unavailable")
	}
	return userID, code, nil
}

// Put grants or updates a feature assignment.
func (f *Features) Put(w http.ResponseWriter, r *http.Request) {
	userID, code, err := f.target(r)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	var req featureRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			apierror.Write(w, r, err)
			return
		}
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(f.clock.Now()) {
		apierror.Write(w, r, apierror.New(apierror.Validation, "expiresAt must be in the future"))
		return
	}

	fa := &models.FeatureAssignment{
		UserID:      userID,
		FeatureCode: code,
		Enabled:     req.Enabled == nil || *req.Enabled,
		ExpiresAt:   req.ExpiresAt,
	}
	if err := f.writer.Upsert(r.Context(), fa); err != nil {
		apierror.Write(w, r, apierror.Wrap(apierror.ServiceUnavailable, "Feature store unavailable", err))
		return
	}

	slog.Info("feature assignment updated",
		"caller", auth.FromContext(r.Context()).UserID,
		"user_id", userID,
		"feature", code,
		"enabled", fa.Enabled,
	)
	apierror.JSON(w, http.StatusOK, fa)
}

// Delete revokes a feature assignment.
func (f *Features) Delete(w http.ResponseWriter, r *http.Request) {
	userID, code, err := f.target(r)
	if err != nil {
		apierror.Write(w, r, err)
		return
	}

	found, err := f.writer.Delete(r.Context(), userID, code)
	if err != nil {
		apierror.Write(w, r, apierror.Wrap(apierror.ServiceUnavailable, "Feature store unavailable", err))
		return
	}
	if !found {
		apierror.Write(w, r, apierror.New(apierror.NotFound, "Feature assignment not found"))
		return
	}

	slog.Info("feature assignment revoked",
		"caller", auth.FromContext(r.Context()).UserID,
		"user_id", userID,
		"feature", code,
	)
	w.WriteHeader(http.StatusNoContent)
}
