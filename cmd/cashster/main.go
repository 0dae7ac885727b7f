/*Basic command structure*/
package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// cli commands / args available
var cli struct {
	Globals globals `embed`

	Places placesCmd `cmd help:"List places to choose from around a location."`
	Add    addCmd    `cmd help:"Record a cash transaction."`
	Sync   syncCmd   `cmd help:"Export pending transactions to the spreadsheet now."`
	Link   linkCmd   `cmd help:"Link a Google account to export to."`
	Forget forgetCmd `cmd help:"Delete a stored place."`
	Status statusCmd `cmd help:"Show what's stored and where it goes."`
	Serve  serveCmd  `cmd help:"Serve the local HTTP API."`
}

func main() {
	// a .env file is optional
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		os.Stderr.WriteString("failed to read .env: " + err.Error() + "\n")
	}

	ctx := kong.Parse(&cli,
		kong.Name("cashster"),
		kong.Description("Quick cash expense entry, exported to Google Sheets."),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
