package gateway

import (
	"net/http"
	"strings"
)

// Route rewrites one inbound path shape to the panel's endpoint shape.
// Pattern and Rewrite use {name} placeholders, each matching one non-empty segment.
type Route struct {
	Method  string
	Pattern string
	Rewrite string
}

// Routes is the static mapping table, relative to the gateway prefix on the
// inbound side and to the endpoint root on the upstream side.
var Routes = []Route{
	{Method: http.MethodGet, Pattern: "/client/{id}", Rewrite: "/getClientTrafficsById/{id}"},
	{Method: http.MethodGet, Pattern: "/list", Rewrite: "/list"},
	{Method: http.MethodGet, Pattern: "/inbound/{id}", Rewrite: "/get/{id}"},
	{Method: http.MethodPost, Pattern: "/client/{email}/ips", Rewrite: "/clientIps/{email}"},
	{Method: http.MethodPost, Pattern: "/client/{id}/reset/{email}", Rewrite: "/{id}/resetClientTraffic/{email}"},
}

// MapPath returns the upstream path for a stripped inbound path. Paths that
// match no route are returned unchanged.
func MapPath(routes []Route, method, path string) string {
	segments := splitPath(path)
	for _, route := range routes {
		if route.Method != method {
			continue
		}
		params, ok := match(splitPath(route.Pattern), segments)
		if !ok {
			continue
		}
		return expand(route.Rewrite, params)
	}
	return path
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func match(pattern, segments []string) (map[string]string, bool) {
	if len(pattern) != len(segments) {
		return nil, false
	}
	params := make(map[string]string)
	for i, part := range pattern {
		if name, ok := placeholder(part); ok {
			if segments[i] == "" {
				return nil, false
			}
			params[name] = segments[i]
			continue
		}
		if part != segments[i] {
			return nil, false
		}
	}
	return params, true
}

func expand(rewrite string, params map[string]string) string {
	parts := splitPath(rewrite)
	for i, part := range parts {
		if name, ok := placeholder(part); ok {
			parts[i] = params[name]
		}
	}
	return "/" + strings.Join(parts, "/")
}

func placeholder(part string) (string, bool) {
	if len(part) > 2 && part[0] == '{' && part[len(part)-1] == '}' {
		return part[1 : len(part)-1], true
	}
	return "", false
}
