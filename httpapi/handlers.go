package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-costhook/auth"
	costcommand "github.com/goliatone/go-costhook/command"
	"github.com/goliatone/go-costhook/core"
	costquery "github.com/goliatone/go-costhook/query"
)

type validatable interface {
	Validate() error
}

type executor[M any] interface {
	Execute(ctx context.Context, msg M) error
}

type querier[M any, R any] interface {
	Query(ctx context.Context, msg M) (R, error)
}

// execute validates msg, runs the command and returns the result it stored.
func execute[T any, M validatable](ctx context.Context, cmd executor[M], msg M) (T, error) {
	var zero T
	if err := msg.Validate(); err != nil {
		return zero, err
	}
	collector := gocmd.NewResult[T]()
	if err := cmd.Execute(gocmd.ContextWithResult(ctx, collector), msg); err != nil {
		return zero, err
	}
	out, _ := collector.Load()
	return out, nil
}

func query[R any, M validatable](ctx context.Context, q querier[M, R], msg M) (R, error) {
	if err := msg.Validate(); err != nil {
		var zero R
		return zero, err
	}
	return q.Query(ctx, msg)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleProtectedHealth(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "user_id": principal.UserID})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := query[core.UserProfile](r.Context(), s.queries.GetProfile, costquery.GetProfileMessage{AuthUserID: userID(r)})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile))
}

type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Timezone    *string `json:"timezone"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var body updateProfileRequest
	if err := s.decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	profile, err := execute[core.UserProfile](r.Context(), s.commands.UpdateProfile, costcommand.UpdateProfileMessage{
		Input: core.UpdateProfileInput{
			AuthUserID:  userID(r),
			DisplayName: body.DisplayName,
			Timezone:    body.Timezone,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProfileResponse(profile))
}

func (s *Server) handleListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := query[[]core.ProviderInstance](r.Context(), s.queries.ListProviders, costquery.ListProvidersMessage{UserID: userID(r)})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(providers, newProviderResponse))
}

type createProviderRequest struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Credentials map[string]any `json:"credentials"`
}

func (s *Server) handleCreateProvider(w http.ResponseWriter, r *http.Request) {
	var body createProviderRequest
	if err := s.decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	providerType, err := core.ParseProviderType(body.Type)
	if err != nil {
		writeError(w, err)
		return
	}
	credentials, err := core.CredentialBundleFromMap(body.Credentials)
	if err != nil {
		writeError(w, err)
		return
	}
	provider, err := execute[core.ProviderInstance](r.Context(), s.commands.CreateProvider, costcommand.CreateProviderMessage{
		Input: core.CreateProviderInput{
			UserID:      userID(r),
			Type:        providerType,
			Name:        body.Name,
			Credentials: credentials,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newProviderResponse(provider))
}

func (s *Server) handleGetProvider(w http.ResponseWriter, r *http.Request) {
	provider, err := query[core.ProviderInstance](r.Context(), s.queries.GetProvider, costquery.GetProviderMessage{
		UserID:     userID(r),
		ProviderID: r.PathValue("id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProviderResponse(provider))
}

type updateProviderRequest struct {
	Name        *string        `json:"name"`
	Credentials map[string]any `json:"credentials"`
}

func (s *Server) handleUpdateProvider(w http.ResponseWriter, r *http.Request) {
	var body updateProviderRequest
	if err := s.decode(w, r, &body); err != nil {
		writeError(w, err)
		return
	}
	var credentials core.CredentialBundle
	if body.Credentials != nil {
		bundle, err := core.CredentialBundleFromMap(body.Credentials)
		if err != nil {
			writeError(w, err)
			return
		}
		credentials = bundle
	}
	provider, err := execute[core.ProviderInstance](r.Context(), s.commands.UpdateProvider, costcommand.UpdateProviderMessage{
		Input: core.UpdateProviderInput{
			UserID:      userID(r),
			ProviderID:  r.PathValue("id"),
			Name:        body.Name,
			Credentials: credentials,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newProviderResponse(provider))
}

func (s *Server) handleDeleteProvider(w http.ResponseWriter, r *http.Request) {
	purge := false
	if raw := strings.TrimSpace(r.URL.Query().Get("purge")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, badRequest("purge must be a boolean"))
			return
		}
		purge = parsed
	}
	_, err := execute[struct{}](r.Context(), s.commands.DeleteProvider, costcommand.DeleteProviderMessage{
		Input: core.DeleteProviderInput{
			UserID:     userID(r),
			ProviderID: r.PathValue("id"),
			Purge:      purge,
		},
	})
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRequestSync(w http.ResponseWriter, r *http.Request) {
	provider, err := execute[core.ProviderInstance](r.Context(), s.commands.RequestSync, costcommand.RequestSyncMessage{
		UserID:     userID(r),
		ProviderID: r.PathValue("id"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, newProviderResponse(provider))
}

func (s *Server) handleListSyncs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, badRequest("limit must be an integer"))
			return
		}
		limit = parsed
	}
	attempts, err := query[[]core.SyncAttempt](r.Context(), s.queries.ListSyncAttempts, costquery.ListSyncAttemptsMessage{
		UserID:     userID(r),
		ProviderID: r.PathValue("id"),
		Limit:      limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(attempts, newSyncAttemptResponse))
}

func (s *Server) handleListCosts(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	filter := core.CostFilter{
		UserID:       userID(r),
		ProviderID:   strings.TrimSpace(params.Get("provider_id")),
		ProviderType: core.ProviderType(strings.TrimSpace(strings.ToLower(params.Get("provider_type")))),
	}
	var err error
	if filter.StartDate, err = parseDateParam(params.Get("start_date")); err != nil {
		writeError(w, badRequest("start_date must be YYYY-MM-DD or RFC 3339"))
		return
	}
	if filter.EndDate, err = parseDateParam(params.Get("end_date")); err != nil {
		writeError(w, badRequest("end_date must be YYYY-MM-DD or RFC 3339"))
		return
	}
	costs, err := query[[]core.CostRecord](r.Context(), s.queries.ListCosts, costquery.ListCostsMessage{Filter: filter})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapSlice(costs, newCostResponse))
}

// parseDateParam accepts a calendar date (midnight UTC) or an RFC 3339
// timestamp. An empty value is an open bound.
func parseDateParam(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.DateOnly, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return badRequest("request body too large")
		case errors.Is(err, io.EOF):
			return badRequest("request body is required")
		default:
			return badRequest("invalid JSON body: " + err.Error())
		}
	}
	return nil
}

func userID(r *http.Request) string {
	principal, _ := auth.PrincipalFromContext(r.Context())
	return principal.UserID
}
