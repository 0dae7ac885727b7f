package provider

import (
	"encoding/json"

	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/geo"
)

type venueSearch struct {
	Response struct {
		Venues []venue `json:"venues"`
	} `json:"response"`
}

type venue struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location struct {
		Address string  `json:"address"`
		Lat     float64 `json:"lat"`
		Lng     float64 `json:"lng"`
	} `json:"location"`
	Categories []struct {
		ShortName string `json:"shortName"`
	} `json:"categories"`
}

// parseVenues turns a venue search reply into places annotated with their
// distance from loc.
func parseVenues(loc domain.Location, data []byte) ([]*domain.Place, error) {
	raw := &venueSearch{}
	if err := json.Unmarshal(data, raw); err != nil {
		return nil, err
	}

	here := geo.LatLng{Lat: loc.Lat, Lon: loc.Lon}
	places := []*domain.Place{}
	for _, v := range raw.Response.Venues {
		p := domain.NewPlace(v.Name, v.ID)
		p.Address = v.Location.Address
		if len(v.Categories) > 0 {
			p.Category = v.Categories[0].ShortName
		}
		p.Lat = v.Location.Lat
		p.Lon = v.Location.Lng
		p.SetDistance(geo.Distance(here, geo.LatLng{Lat: p.Lat, Lon: p.Lon}))
		places = append(places, p)
	}

	return places, nil
}
