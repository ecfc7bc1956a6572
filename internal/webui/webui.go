package webui

import "busstatus.transit.org/internal/app"

// WebUI serves the HTML debug pages.
type WebUI struct {
	*app.Application
}
