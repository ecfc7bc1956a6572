package models

type Route struct {
	RouteID     string `json:"route_id"`
	Badge       string `json:"badge"`
	ShortName   string `json:"short_name"`
	LongName    string `json:"long_name"`
	Color       string `json:"color"`
	TextColor   string `json:"text_color"`
	ActiveToday bool   `json:"active_today"`
}

type RoutesResponse struct {
	ServiceDate string  `json:"service_date"`
	Routes      []Route `json:"routes"`
}
