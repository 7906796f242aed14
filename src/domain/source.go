package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source is a registered content tree: a go-getter URL (git, http, file)
// plus where Markdown and assets live inside it and which internal routes
// the site serves.
type Source struct {
	Id         uuid.UUID `json:"id"`
	Name       string    `json:"name"`
	Url        string    `json:"url"`
	ContentDir string    `json:"contentDir"`
	AssetDir   string    `json:"assetDir"`
	Routes     Routes    `json:"routes"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Routes []string

// Set returns the normalized route set used for internal link matching.
func (self Routes) Set() map[string]struct{} {
	set := make(map[string]struct{}, len(self))
	for _, route := range self {
		set[NormalizeRoute(route)] = struct{}{}
	}
	return set
}

// NormalizeRoute strips the query, fragment and any trailing slash
// so that /services, /services/ and /services?utm=x all compare equal.
func NormalizeRoute(route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	if route != "/" {
		route = strings.TrimRight(route, "/")
	}
	return route
}
