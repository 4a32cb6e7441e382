package notify

import (
	"encoding/json"
	"time"
)

// Descriptor is the resolved content of a push notification.
type Descriptor struct {
	Title     string    `yaml:"title"`
	Body      string    `yaml:"body"`
	URL       string    `yaml:"url"`
	Icon      string    `yaml:"icon"`
	Badge     string    `yaml:"badge"`
	Timestamp time.Time `yaml:"-"`
}

// DefaultDescriptor returns the content used for every field a payload does not provide.
func DefaultDescriptor() Descriptor {
	return Descriptor{
		Title: "Piana BI Hub",
		Body:  "New content available",
		URL:   "/dashboard",
		Icon:  "/static/icons/icon-192.png",
		Badge: "/static/icons/icon-192.png",
	}
}

// WithDefaults fills the empty fields of d from defaults.
func (d Descriptor) WithDefaults(defaults Descriptor) Descriptor {
	if d.Title == "" {
		d.Title = defaults.Title
	}
	if d.Body == "" {
		d.Body = defaults.Body
	}
	if d.URL == "" {
		d.URL = defaults.URL
	}
	if d.Icon == "" {
		d.Icon = defaults.Icon
	}
	if d.Badge == "" {
		d.Badge = defaults.Badge
	}
	return d
}

// payload is the schema of a push message. Every field is optional.
type payload struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
	URL   *string `json:"url"`
	Icon  *string `json:"icon"`
	Badge *string `json:"badge"`
}

// ParsePayload merges a push payload over the defaults, field by field.
// Fields present in the payload win, unknown fields are ignored.
// A payload that is not a JSON object yields the defaults unchanged.
func ParsePayload(data []byte, defaults Descriptor, now time.Time) Descriptor {
	d := defaults
	d.Timestamp = now
	if len(data) == 0 {
		return d
	}
	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return d
	}
	set(&d.Title, p.Title)
	set(&d.Body, p.Body)
	set(&d.URL, p.URL)
	set(&d.Icon, p.Icon)
	set(&d.Badge, p.Badge)
	return d
}

func set(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
