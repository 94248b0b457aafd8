package geocode

import "github.com/transitops/trafficwatch/config"

// Region is a named rectangle of the service area. Regions are checked in
// order, most specific first, so nested rectangles work as a fallback chain
// (city centre inside the wider metro area).
type Region struct {
	Name string
	Box  config.BBox
}

// Corridor is the envelope of a known arterial road, used to annotate bare
// coordinate strings when no better description exists.
type Corridor struct {
	Name string
	Box  config.BBox
}

// DublinRegions covers the Greater Dublin service area, inner rectangles
// first.
func DublinRegions() []Region {
	return []Region{
		{Name: "Dublin City Centre", Box: config.BBox{MinLat: 53.335, MinLng: -6.290, MaxLat: 53.360, MaxLng: -6.235}},
		{Name: "Dublin Docklands", Box: config.BBox{MinLat: 53.340, MinLng: -6.235, MaxLat: 53.352, MaxLng: -6.195}},
		{Name: "North Dublin", Box: config.BBox{MinLat: 53.360, MinLng: -6.450, MaxLat: 53.500, MaxLng: -6.050}},
		{Name: "South Dublin", Box: config.BBox{MinLat: 53.200, MinLng: -6.450, MaxLat: 53.335, MaxLng: -6.050}},
		{Name: "West Dublin", Box: config.BBox{MinLat: 53.280, MinLng: -6.600, MaxLat: 53.430, MaxLng: -6.290}},
		{Name: "Greater Dublin", Box: config.BBox{MinLat: 53.100, MinLng: -6.700, MaxLat: 53.650, MaxLng: -5.990}},
	}
}

// DublinCorridors covers the arterial roads most disruptions cluster on.
// Envelopes are generous; they only qualify a coordinate string.
func DublinCorridors() []Corridor {
	return []Corridor{
		{Name: "M50", Box: config.BBox{MinLat: 53.230, MinLng: -6.430, MaxLat: 53.410, MaxLng: -6.330}},
		{Name: "M1 / Swords Road", Box: config.BBox{MinLat: 53.370, MinLng: -6.280, MaxLat: 53.500, MaxLng: -6.180}},
		{Name: "N4 / Chapelizod bypass", Box: config.BBox{MinLat: 53.335, MinLng: -6.450, MaxLat: 53.365, MaxLng: -6.290}},
		{Name: "N7 / Naas Road", Box: config.BBox{MinLat: 53.300, MinLng: -6.480, MaxLat: 53.340, MaxLng: -6.310}},
		{Name: "N11 / Stillorgan Road", Box: config.BBox{MinLat: 53.230, MinLng: -6.230, MaxLat: 53.330, MaxLng: -6.140}},
		{Name: "North Quays", Box: config.BBox{MinLat: 53.344, MinLng: -6.310, MaxLat: 53.352, MaxLng: -6.240}},
	}
}
