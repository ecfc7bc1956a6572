package webui

import (
	"embed"
	"html/template"
	"net/http"
	"time"

	"github.com/davecgh/go-spew/spew"
)

//go:embed debug_index.html
var templateFS embed.FS

var debugTemplate = template.Must(template.ParseFS(templateFS, "debug_index.html"))

var dataTypes = []string{"routes", "stops", "shapes", "services_today", "schedule_today", "index_stats"}

type debugData struct {
	Title     string
	Pre       string
	DataTypes []string
}

var dumper = spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, SortKeys: true}

// debugPagePolicy replaces the API's CSP so the page's inline stylesheet loads.
const debugPagePolicy = "default-src 'none'; style-src 'unsafe-inline'; frame-ancestors 'none';"

func writeDebugData(w http.ResponseWriter, title string, data interface{}) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", debugPagePolicy)

	err := debugTemplate.Execute(w, debugData{
		Title:     title,
		Pre:       dumper.Sdump(data),
		DataTypes: dataTypes,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (webUI *WebUI) debugIndexHandler(w http.ResponseWriter, r *http.Request) {
	if webUI.RequestHasInvalidAPIKey(r) {
		http.Error(w, "permission denied", http.StatusUnauthorized)
		return
	}

	dataType := r.URL.Query().Get("dataType")
	manager := webUI.GtfsManager
	now := time.Now().In(manager.Location())

	var data interface{}
	var title string
	var err error

	switch dataType {
	case "routes":
		data, err = manager.GetRoutes(now)
		title = "GTFS Static - Routes"
	case "stops":
		data, err = manager.ListStops()
		title = "GTFS Static - Stops"
	case "shapes":
		data, err = manager.GetShapes()
		title = "GTFS Static - Shapes"
	case "services_today":
		today, todayErr := manager.TodaySchedule(now)
		if todayErr == nil {
			data = today.Services.IDs()
		}
		err = todayErr
		title = "Active Services - " + now.Format("2006-01-02")
	case "schedule_today":
		today, todayErr := manager.TodaySchedule(now)
		if todayErr == nil {
			data = today.Counts()
		}
		err = todayErr
		title = "Daily Schedule - Slots per Stop and Route"
	case "index_stats":
		data = manager.IndexStats()
		title = "Timetable Index"
	default:
		data = map[string]interface{}{
			"error":      "Please use one of the listed data types.",
			"data_types": dataTypes,
		}
		title = "Choose a data type"
	}

	if err != nil {
		data = map[string]string{"error": err.Error()}
	}

	writeDebugData(w, title, data)
}
