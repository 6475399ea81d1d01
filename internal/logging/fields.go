package logging

import "log/slog"

// Common field names for consistent logging across the relay.
const (
	FieldService    = "service"
	FieldSource     = "source"
	FieldEventID    = "event_id"
	FieldCampaignID = "campaign_id"
	FieldStatus     = "status"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldReason     = "reason"
	FieldSlug       = "slug"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// Source returns a slog attribute for the webhook source system.
func Source(name string) slog.Attr {
	return slog.String(FieldSource, name)
}

// EventID returns a slog attribute for a provider event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// CampaignID returns a slog attribute for a created campaign ID.
func CampaignID(id int) slog.Attr {
	return slog.Int(FieldCampaignID, id)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// Reason returns a slog attribute for a failure or skip reason.
func Reason(reason string) slog.Attr {
	return slog.String(FieldReason, reason)
}

// Slug returns a slog attribute for a post slug.
func Slug(slug string) slog.Attr {
	return slog.String(FieldSlug, slug)
}
