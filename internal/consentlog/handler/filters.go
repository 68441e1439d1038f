package handler

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"caskhouse/internal/consentlog/models"
	dErrors "caskhouse/pkg/domain-errors"
)

// parseHistoryQuery reads visitor_id, limit and since (RFC 3339).
func parseHistoryQuery(q url.Values) (string, models.Filter, error) {
	var filter models.Filter

	visitorID := strings.TrimSpace(q.Get("visitor_id"))
	if visitorID == "" {
		return "", filter, dErrors.New(dErrors.CodeValidation, "visitor_id is required")
	}

	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return "", filter, dErrors.New(dErrors.CodeValidation, "limit must be a positive integer")
		}
		filter.Limit = n
	}

	if raw := strings.TrimSpace(q.Get("since")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return "", filter, dErrors.New(dErrors.CodeValidation, "since must be an RFC 3339 timestamp")
		}
		filter.Since = t
	}

	return visitorID, filter, nil
}
