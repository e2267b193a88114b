package routes

import "net/http"

// Group organizes routes under a common prefix. Children inherit the
// parent prefix.
type Group struct {
	Prefix   string
	Routes   []Route
	Children []Group
}

// Walk calls fn for every route in groups with the route's full path
// prefix, visiting parents before children.
func Walk(fn func(prefix string, route Route), groups ...Group) {
	for _, group := range groups {
		walkGroup(fn, "", group)
	}
}

func walkGroup(fn func(string, Route), parentPrefix string, group Group) {
	fullPrefix := parentPrefix + group.Prefix
	for _, route := range group.Routes {
		fn(fullPrefix, route)
	}
	for _, child := range group.Children {
		walkGroup(fn, fullPrefix, child)
	}
}

// Register adds all routes from the given groups to the mux.
func Register(mux *http.ServeMux, groups ...Group) {
	Walk(func(prefix string, route Route) {
		mux.HandleFunc(route.Method+" "+prefix+route.Pattern, route.Handler)
	}, groups...)
}
