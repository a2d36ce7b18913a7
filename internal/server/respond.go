package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/tartampluch/onefam/internal/config"
	"github.com/tartampluch/onefam/internal/store"
)

type errorBody struct {
	Detail string `json:"detail"`
}

type messageBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HeaderContentType, config.MimeJSON)
	w.Header().Set(config.HeaderXContentType, config.MimeNoSniff)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error(config.ErrWriteResp,
			config.LogKeyComponent, config.CompServer,
			config.LogKeyError, err,
		)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorBody{Detail: detail})
}

// writeStoreError maps ErrNotFound to 404 with notFound as detail and
// anything else to a logged 500.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	writeInternal(w, r, err)
}

func writeInternal(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), config.MsgRequestFailed,
		config.LogKeyComponent, config.CompServer,
		config.LogKeyMethod, r.Method,
		config.LogKeyPath, r.URL.Path,
		config.LogKeyError, err,
	)
	writeError(w, http.StatusInternalServerError, config.ErrInternal)
}

// decode reads a size-limited JSON body into dst and validates it. On
// failure the response has been written and false is returned.
func (s *APIServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, config.MaxJSONBodySize)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, config.ErrBadRequestBody)
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		writeError(w, http.StatusUnprocessableEntity, validationDetail(err))
		return false
	}
	return true
}

func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return config.ErrValidation
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case config.ValidateSeedDate:
			msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field(), config.ErrSeedDateInvalid))
		default:
			msgs = append(msgs, fmt.Sprintf("%s: failed '%s'", fe.Field(), fe.Tag()))
		}
	}
	return config.ErrValidation + ": " + strings.Join(msgs, "; ")
}

// queryInt parses an optional integer parameter. Absent yields def.
func queryInt(r *http.Request, name string, def int) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// monthYear reads the optional month and year filters. Zero means "any".
func monthYear(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	month, ok := queryInt(r, config.QueryMonth, 0)
	if !ok || month < 0 || month > 12 {
		writeError(w, http.StatusBadRequest, config.ErrMonthOutOfRange)
		return 0, 0, false
	}
	year, ok := queryInt(r, config.QueryYear, 0)
	if !ok || year < 0 {
		writeError(w, http.StatusBadRequest, config.ErrYearOutOfRange)
		return 0, 0, false
	}
	return month, year, true
}
