package gtfs

// Stop is one GTFS stop with its coordinate.
type Stop struct {
	ID   string
	Name string
	Lat  float64
	Lng  float64
}
