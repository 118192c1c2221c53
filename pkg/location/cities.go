package location

// Coordinate is a captured device position.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SupportedCity is a static reference entry used for nearest-match lookup.
// The list is passed into the Resolver at construction so tests can
// substitute fixtures.
type SupportedCity struct {
	ID        string  `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DefaultCities is the built-in city table for the public deployment.
var DefaultCities = []SupportedCity{
	{ID: "new-york", Latitude: 40.7128, Longitude: -74.0060},
	{ID: "london", Latitude: 51.5074, Longitude: -0.1278},
	{ID: "paris", Latitude: 48.8566, Longitude: 2.3522},
	{ID: "berlin", Latitude: 52.5200, Longitude: 13.4050},
	{ID: "madrid", Latitude: 40.4168, Longitude: -3.7038},
	{ID: "budapest", Latitude: 47.4979, Longitude: 19.0402},
	{ID: "moscow", Latitude: 55.7558, Longitude: 37.6173},
	{ID: "mumbai", Latitude: 19.0760, Longitude: 72.8777},
	{ID: "singapore", Latitude: 1.3521, Longitude: 103.8198},
	{ID: "sydney", Latitude: -33.8688, Longitude: 151.2093},
}

// FindNearestSupportedCity scans cities linearly and returns the id of the
// closest one by great-circle distance. ok is false for an empty list.
func FindNearestSupportedCity(lat, lng float64, cities []SupportedCity) (string, bool) {
	bestID := ""
	bestKm := -1.0
	for _, c := range cities {
		km := HaversineKm(lat, lng, c.Latitude, c.Longitude)
		if bestKm < 0 || km < bestKm {
			bestKm = km
			bestID = c.ID
		}
	}
	return bestID, bestID != ""
}
