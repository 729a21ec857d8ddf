package pipeline

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Metadata carries everything a header publish can express. All fields
// are optional; the body travels separately.
type Metadata struct {
	Title        *string
	Priority     *int
	Tags         []string
	ClickURL     *string
	IconURL      *string
	Actions      *string
	Filename     *string
	Email        *string
	ContentType  *string
	ScheduledFor *time.Time
	CacheFor     *time.Duration
}

// header returns the first present value among the X- and plain variants,
// case-insensitively.
func header(h http.Header, names ...string) (string, bool) {
	for _, name := range names {
		if v := h.Get(name); v != "" {
			return v, true
		}
	}
	return "", false
}

// ParseMetadata reads publish metadata from request headers. Each field
// accepts an X-prefixed and a plain header name. now anchors relative
// schedules.
func ParseMetadata(h http.Header, now time.Time) Metadata {
	var m Metadata

	if v, ok := header(h, "X-Title", "Title", "X-T", "T"); ok {
		m.Title = &v
	}
	if v, ok := header(h, "X-Priority", "Priority", "X-P", "P"); ok {
		p := ParsePriority(v)
		m.Priority = &p
	}
	if v, ok := header(h, "X-Tags", "Tags", "X-Ta", "Ta"); ok {
		for _, tag := range strings.Split(v, ",") {
			if tag = strings.TrimSpace(tag); tag != "" {
				m.Tags = append(m.Tags, tag)
			}
		}
	}
	if v, ok := header(h, "X-Click", "Click"); ok {
		m.ClickURL = &v
	}
	if v, ok := header(h, "X-Icon", "Icon"); ok {
		m.IconURL = &v
	}
	if v, ok := header(h, "X-Actions", "Actions"); ok {
		m.Actions = &v
	}
	if v, ok := header(h, "X-Filename", "Filename"); ok {
		m.Filename = &v
	}
	if v, ok := header(h, "X-Email", "Email"); ok {
		m.Email = &v
	}
	if v, ok := header(h, "X-Markdown", "Markdown", "X-MD", "MD"); ok && isAffirmative(v) {
		md := "text/markdown"
		m.ContentType = &md
	}
	if v, ok := header(h, "X-Delay", "Delay", "X-At", "At", "X-In", "In"); ok {
		if at, parsed := ParseSchedule(v, now); parsed {
			m.ScheduledFor = &at
		}
	}
	if v, ok := header(h, "X-Cache", "Cache"); ok {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			m.CacheFor = &d
		}
	}
	return m
}

func isAffirmative(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "1":
		return true
	}
	return false
}

// ParsePriority maps priority keywords or digits 1..5 to a priority;
// anything unparseable falls back to 3.
func ParsePriority(v string) int {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "min":
		return 1
	case "low":
		return 2
	case "default":
		return 3
	case "high":
		return 4
	case "max", "urgent":
		return 5
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n >= 1 && n <= 5 {
		return n
	}
	return 3
}

// ParseSchedule resolves a scheduling header value to an absolute UTC
// instant. Accepted, in order: a relative duration ("30m", "2h30m"), an
// RFC 3339 timestamp, and a plain "2006-01-02 15:04:05" timestamp
// interpreted as UTC.
func ParseSchedule(v string, now time.Time) (time.Time, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return now.Add(d).UTC(), true
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), true
	}
	if t, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// encodeJSON serializes a value to its stored text form, or nil when the
// value is empty.
func encodeJSON(v any) *string {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}
