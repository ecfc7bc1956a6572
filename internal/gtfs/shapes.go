package gtfs

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/twpayne/go-polyline"

	"busstatus.transit.org/internal/models"
	"busstatus.transit.org/internal/schedule"
)

type shapeVertex struct {
	seq      int
	lat, lon float64
}

// buildRouteShapes groups shapes.txt into ordered polylines colored by the
// first route found using each shape. Points with unparsable values are dropped.
func buildRouteShapes(feed *StaticFeed, index *schedule.Index) []models.RouteShape {
	vertices := map[string][]shapeVertex{}
	for _, p := range feed.Shapes {
		id := strings.TrimSpace(p.ShapeID)
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(p.Lat), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(p.Lon), 64)
		seq, seqErr := strconv.Atoi(strings.TrimSpace(p.Sequence))
		if id == "" || latErr != nil || lonErr != nil || seqErr != nil {
			continue
		}
		vertices[id] = append(vertices[id], shapeVertex{seq: seq, lat: lat, lon: lon})
	}

	routeOfShape := map[string]string{}
	for _, trip := range feed.Trips {
		shapeID := strings.TrimSpace(trip.ShapeID)
		if shapeID == "" {
			continue
		}
		if _, ok := routeOfShape[shapeID]; !ok {
			routeOfShape[shapeID] = strings.TrimSpace(trip.RouteID)
		}
	}

	shapes := make([]models.RouteShape, 0, len(vertices))
	for id, points := range vertices {
		slices.SortStableFunc(points, func(a, b shapeVertex) int { return cmp.Compare(a.seq, b.seq) })

		coords := make([][]float64, len(points))
		for i, p := range points {
			coords[i] = []float64{p.lat, p.lon}
		}

		shape := models.RouteShape{
			ShapeID:  id,
			Color:    schedule.DefaultRouteColor,
			Points:   coords,
			Polyline: string(polyline.EncodeCoords(coords)),
		}
		if routeID, ok := routeOfShape[id]; ok {
			shape.RouteID = routeID
			shape.Color = index.Route(routeID).Color
		}
		shapes = append(shapes, shape)
	}

	slices.SortFunc(shapes, func(a, b models.RouteShape) int { return strings.Compare(a.ShapeID, b.ShapeID) })
	return shapes
}

// buildStops keeps the stops that have an ID and usable coordinates.
func buildStops(feed *StaticFeed) []models.Stop {
	stops := make([]models.Stop, 0, len(feed.Stops))
	for _, row := range feed.Stops {
		id := strings.TrimSpace(row.StopID)
		lat, latErr := strconv.ParseFloat(strings.TrimSpace(row.Lat), 64)
		lon, lonErr := strconv.ParseFloat(strings.TrimSpace(row.Lon), 64)
		if id == "" || latErr != nil || lonErr != nil {
			continue
		}
		stops = append(stops, models.Stop{
			StopID: id,
			Code:   strings.TrimSpace(row.Code),
			Name:   strings.TrimSpace(row.Name),
			Lat:    lat,
			Lon:    lon,
		})
	}
	return stops
}

// regionBounds covers every stop and shape point. It is the zero value when
// the feed has no coordinates.
func regionBounds(stops []models.Stop, shapes []models.RouteShape) models.RegionBounds {
	var minLat, maxLat, minLon, maxLon float64
	first := true
	extend := func(lat, lon float64) {
		if first {
			minLat, maxLat, minLon, maxLon = lat, lat, lon, lon
			first = false
			return
		}
		minLat = min(minLat, lat)
		maxLat = max(maxLat, lat)
		minLon = min(minLon, lon)
		maxLon = max(maxLon, lon)
	}

	for _, s := range stops {
		extend(s.Lat, s.Lon)
	}
	for _, shape := range shapes {
		for _, p := range shape.Points {
			extend(p[0], p[1])
		}
	}
	if first {
		return models.RegionBounds{}
	}

	return models.RegionBounds{
		Lat:     (minLat + maxLat) / 2,
		Lon:     (minLon + maxLon) / 2,
		LatSpan: maxLat - minLat,
		LonSpan: maxLon - minLon,
	}
}
