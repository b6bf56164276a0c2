// Package router maps client paths to pages.
package router

import (
	"net/url"
	"strings"
)

// Page identifies a top-level screen.
type Page int

const (
	PageLobby Page = iota
	PageRoom
)

func (p Page) String() string {
	switch p {
	case PageRoom:
		return "room"
	default:
		return "lobby"
	}
}

const (
	// LobbyPath is the root path.
	LobbyPath = "/"

	roomPrefix = "/room/"
)

// Route is the result of resolving a path.
type Route struct {
	Page Page
	// Code is the raw room code parameter. It is not normalized or validated.
	Code string
	// Path is the canonical path of the route.
	Path string
	// Redirect is set when the requested path was unknown and the caller
	// should replace it with Path.
	Redirect bool
}

// RoomPath builds the path of a room page.
func RoomPath(code string) string {
	return roomPrefix + url.PathEscape(code)
}

// Resolve maps path to a route. Unknown paths resolve to the lobby with Redirect set.
func Resolve(path string) Route {
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return Route{Page: PageLobby, Path: LobbyPath}
	}

	if rest, ok := strings.CutPrefix(trimmed+"/", roomPrefix); ok {
		param := strings.TrimSuffix(rest, "/")
		if param != "" && !strings.Contains(param, "/") {
			code, err := url.PathUnescape(param)
			if err == nil && code != "" {
				return Route{Page: PageRoom, Code: code, Path: RoomPath(code)}
			}
		}
	}

	return Route{Page: PageLobby, Path: LobbyPath, Redirect: true}
}
