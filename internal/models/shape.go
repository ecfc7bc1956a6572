package models

// RouteShape is one shapes.txt polyline with the color of a route that uses it.
type RouteShape struct {
	ShapeID  string      `json:"shape_id"`
	RouteID  string      `json:"route_id,omitempty"`
	Color    string      `json:"color"`
	Points   [][]float64 `json:"points"`
	Polyline string      `json:"polyline"`
}

type ShapesResponse struct {
	Shapes []RouteShape `json:"shapes"`
}
