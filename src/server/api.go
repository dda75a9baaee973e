package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"hive/src/lib"
	"hive/src/models"
	"hive/src/services"
)

const maxBodyBytes = 1 << 20

var errThrottled = errors.New("too many requests, slow down")

type badRequest struct {
	msg string
}

func (e badRequest) Error() string {
	return e.msg
}

// API holds the engine services behind the HTTP surface.
type API struct {
	Identity *services.IdentityResolver
	Roles    *services.RoleClassifier
	Joins    *services.JoinPolicyService
	Events   *services.EventPublicationService
	Feed     *services.FeedModerationService
	Throttle *services.Throttle
	System   *services.SystemActor
	Metrics  *lib.Metrics
	Logger   *slog.Logger
}

type handlerFunc func(w http.ResponseWriter, req *http.Request, caller models.Caller, params httprouter.Params) error

// handle resolves the caller, runs f and renders any returned error.
func (a *API) handle(f handlerFunc) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, params httprouter.Params) {
		caller, err := a.Identity.Resolve(req)
		if err != nil {
			a.writeError(w, req, err)
			return
		}
		if err := f(w, req, caller, params); err != nil {
			a.writeError(w, req, err)
		}
	}
}

// throttled spends one token for the caller.
func (a *API) throttled(caller models.Caller) error {
	if a.Throttle == nil || caller.Anonymous() {
		return nil
	}
	if !a.Throttle.Allow(caller.UserID, time.Now()) {
		a.Metrics.Inc("throttled_requests_total")
		return errThrottled
	}
	return nil
}

func (a *API) writeError(w http.ResponseWriter, req *http.Request, err error) {
	var bad badRequest
	switch {
	case errors.As(err, &bad):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: bad.msg, Kind: string(services.KindInvalidInput)})
		return
	case errors.Is(err, errThrottled):
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: errThrottled.Error(), Kind: "throttled"})
		return
	}

	kind := services.KindOf(err)
	status := statusFor(kind)
	a.Metrics.IncLabeled("http_errors_total", string(kind))
	if status >= http.StatusInternalServerError {
		a.Logger.Error("request failed", "method", req.Method, "path", req.URL.Path, "error", err)
	} else {
		a.Logger.Debug("request denied", "method", req.Method, "path", req.URL.Path, "kind", kind, "error", err)
	}
	writeJSON(w, status, errorBody{Error: services.PublicMessage(err), Kind: string(kind)})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindUnauthenticated:
		return http.StatusUnauthorized
	case services.KindUnauthorized:
		return http.StatusForbidden
	case services.KindInvalidState, services.KindConflict:
		return http.StatusConflict
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// readJSON decodes the request body into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func readJSON(req *http.Request, dst any, allowEmpty bool) error {
	if req.Body == nil {
		if allowEmpty {
			return nil
		}
		return badRequest{msg: "request body is required"}
	}
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if allowEmpty {
				return nil
			}
			return badRequest{msg: "request body is required"}
		}
		return badRequest{msg: "invalid payload"}
	}
	return nil
}

func queryInt(req *http.Request, key string) (int, error) {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest{msg: fmt.Sprintf("%s must be an integer", key)}
	}
	return v, nil
}

func queryInt64Ptr(req *http.Request, key string) (*int64, error) {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, badRequest{msg: fmt.Sprintf("%s must be an integer", key)}
	}
	return &v, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
