// Package cities is the static reference table of tracked Indian cities.
package cities

// City describes one tracked city.
type City struct {
	Name  string
	State string
	Lat   float64
	Lng   float64
}

// Cities is ordered by population; Default picks from the front.
var Cities = []City{
	{Name: "New Delhi", State: "Delhi", Lat: 28.6139, Lng: 77.2090},
	{Name: "Mumbai", State: "Maharashtra", Lat: 19.0760, Lng: 72.8777},
	{Name: "Bengaluru", State: "Karnataka", Lat: 12.9716, Lng: 77.5946},
	{Name: "Kolkata", State: "West Bengal", Lat: 22.5726, Lng: 88.3639},
	{Name: "Chennai", State: "Tamil Nadu", Lat: 13.0827, Lng: 80.2707},
	{Name: "Hyderabad", State: "Telangana", Lat: 17.3850, Lng: 78.4867},
	{Name: "Pune", State: "Maharashtra", Lat: 18.5204, Lng: 73.8567},
	{Name: "Ahmedabad", State: "Gujarat", Lat: 23.0225, Lng: 72.5714},
	{Name: "Surat", State: "Gujarat", Lat: 21.1702, Lng: 72.8311},
	{Name: "Jaipur", State: "Rajasthan", Lat: 26.9124, Lng: 75.7873},
	{Name: "Lucknow", State: "Uttar Pradesh", Lat: 26.8467, Lng: 80.9462},
	{Name: "Patna", State: "Bihar", Lat: 25.5941, Lng: 85.1376},
	{Name: "Kochi", State: "Kerala", Lat: 9.9312, Lng: 76.2673},
	{Name: "Guwahati", State: "Assam", Lat: 26.1445, Lng: 91.7362},
	{Name: "Chandigarh", State: "Chandigarh", Lat: 30.7333, Lng: 76.7794},
}

// Default returns the names of the first n cities, used when INGEST_CITIES
// is not configured.
func Default(n int) []string {
	if n <= 0 || n > len(Cities) {
		n = len(Cities)
	}
	names := make([]string, 0, n)
	for _, c := range Cities[:n] {
		names = append(names, c.Name)
	}
	return names
}
