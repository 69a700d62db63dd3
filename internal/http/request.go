package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/scheduler"
)

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func pathID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	return id, id != ""
}

// parseTimeQuery reads an RFC 3339 query parameter. A missing parameter yields
// the zero time.
func parseTimeQuery(r *http.Request, name string, vErr *application.ValidationError) time.Time {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		addFieldError(vErr, name, fmt.Sprintf("%s must be an RFC 3339 timestamp", name))
		return time.Time{}
	}
	return parsed
}

// parseListOptions reads the status filter (repeated or comma separated) and
// the sort order.
func parseListOptions(r *http.Request) (application.ListOptions, error) {
	var (
		opts application.ListOptions
		vErr application.ValidationError
	)

	query := r.URL.Query()
	for _, value := range query["status"] {
		for _, part := range strings.Split(value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			status, err := scheduler.ParseDisplayStatus(part)
			if err != nil {
				addFieldError(&vErr, "status", "status must be one of upcoming, in_progress, past, cancelled")
				continue
			}
			opts.Statuses = append(opts.Statuses, status)
		}
	}

	order, err := application.ParseSortOrder(strings.ToLower(strings.TrimSpace(query.Get("order"))))
	if err != nil {
		addFieldError(&vErr, "order", "order must be asc or desc")
	}
	opts.Order = order

	if vErr.HasErrors() {
		return application.ListOptions{}, &vErr
	}
	return opts, nil
}

func addFieldError(vErr *application.ValidationError, field, message string) {
	if vErr.FieldErrors == nil {
		vErr.FieldErrors = make(map[string]string)
	}
	vErr.FieldErrors[field] = message
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	return &trimmed
}
