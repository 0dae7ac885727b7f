package export

import (
	"github.com/voidshard/cashster/pkg/domain"
)

const DateFormat = "2006-01-02 15:04:05"

// Header is the first row of a new spreadsheet.
func Header() []interface{} {
	return []interface{}{
		"TX ID",
		"Amount",
		"Date",
		"Place",
		"Address",
		"Category",
		"FoursquareID",
		"Latitude",
		"Longitude",
	}
}

// Row is how a transaction shows up in the spreadsheet. Dates are in local
// time.
func Row(tx *domain.Transaction) []interface{} {
	p := tx.Place
	if p == nil {
		p = &domain.Place{}
	}
	return []interface{}{
		tx.ID,
		tx.Amount.StringFixed(2),
		tx.Time.Local().Format(DateFormat),
		p.Name,
		p.Address,
		p.Category,
		p.RemoteID,
		p.Lat,
		p.Lon,
	}
}
