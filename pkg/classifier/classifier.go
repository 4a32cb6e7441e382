package classifier

import "strings"

// Label is the category of a request path.
type Label string

const (
	StaticAsset Label = "static-asset"
	Page        Label = "html-page"
	API         Label = "api"
	Other       Label = "other"
)

// Rules hold the path heuristics used to categorize requests.
// They avoid the need for a manifest of every routable URL:
// a path that matches nothing falls through to the default strategy.
type Rules struct {
	// File extensions (without the dot) of static assets.
	Extensions []string `yaml:"extensions"`
	// Path segment that marks a static asset wherever it appears, e.g. `/static/`.
	StaticPrefix string `yaml:"staticPrefix"`
	// Prefix of dynamic API routes, which are never intercepted.
	APIPrefix string `yaml:"apiPrefix"`
	// Prefixes of top-level page routes.
	PageRoutes []string `yaml:"pageRoutes"`
	// Path of the offline page.
	OfflinePath string `yaml:"offlinePath"`
}

// DefaultRules returns the rules for the hub application.
func DefaultRules() Rules {
	return Rules{
		Extensions:   []string{"css", "js", "png", "jpg", "jpeg", "svg", "gif", "woff", "woff2", "ttf"},
		StaticPrefix: "/static/",
		APIPrefix:    "/api/",
		PageRoutes:   []string{"/dashboard", "/events", "/archive", "/home"},
		OfflinePath:  "/offline",
	}
}

// WithDefaults returns the rules with empty fields filled in from DefaultRules.
func (r Rules) WithDefaults() Rules {
	d := DefaultRules()
	if r.Extensions == nil {
		r.Extensions = d.Extensions
	}
	if r.StaticPrefix == "" {
		r.StaticPrefix = d.StaticPrefix
	}
	if r.APIPrefix == "" {
		r.APIPrefix = d.APIPrefix
	}
	if r.PageRoutes == nil {
		r.PageRoutes = d.PageRoutes
	}
	if r.OfflinePath == "" {
		r.OfflinePath = d.OfflinePath
	}
	return r
}

// IsStaticAsset reports whether the path ends in a static file extension
// or contains the static prefix segment.
func (r Rules) IsStaticAsset(p string) bool {
	for _, ext := range r.Extensions {
		if strings.HasSuffix(p, "."+ext) {
			return true
		}
	}
	return r.StaticPrefix != "" && strings.Contains(p, r.StaticPrefix)
}

// IsPage reports whether the path is an HTML page:
// the root, the offline page, one of the page routes,
// or any extension-less path outside the API.
func (r Rules) IsPage(p string) bool {
	if p == "/" || p == r.OfflinePath {
		return true
	}
	for _, route := range r.PageRoutes {
		if strings.HasPrefix(p, route) {
			return true
		}
	}
	return !strings.Contains(p, ".") && !r.IsAPI(p)
}

// IsAPI reports whether the path is under the API prefix.
func (r Rules) IsAPI(p string) bool {
	return r.APIPrefix != "" && strings.HasPrefix(p, r.APIPrefix)
}

// Classify returns the label of the path.
// API takes precedence over everything, static assets over pages.
func (r Rules) Classify(p string) Label {
	switch {
	case r.IsAPI(p):
		return API
	case r.IsStaticAsset(p):
		return StaticAsset
	case r.IsPage(p):
		return Page
	default:
		return Other
	}
}
