package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/voidshard/cashster/pkg/api"
	"github.com/voidshard/cashster/pkg/domain"
	"github.com/voidshard/cashster/pkg/export"
	"github.com/voidshard/cashster/pkg/keypad"
	"github.com/voidshard/cashster/pkg/places"
)

type placesCmd struct {
	locationFlags `embed`

	Filter  string        `arg optional help:"Only places whose name contains this."`
	Timeout time.Duration `default:"10s" help:"How long to wait for remote places."`
}

func (c *placesCmd) Run(g *globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	search, err := a.search(ctx, c.location(), c.Filter, c.Timeout)
	if err != nil {
		return err
	}
	printPlaces(search)
	return nil
}

type addCmd struct {
	locationFlags `embed`

	Amount  string        `arg help:"Amount, eg. 12.50. An expense unless --income, a leading - flips it."`
	Filter  string        `short:"f" help:"Search text; also offered as a new place."`
	Place   int           `short:"p" default:"-1" help:"Index of the place to use (see 'places')."`
	Yes     bool          `short:"y" help:"Use the first place offered if none is given."`
	Timeout time.Duration `default:"10s" help:"How long to wait for remote places."`
}

func (c *addCmd) Run(g *globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := enterAmount(a, c.Amount); err != nil {
		return err
	}

	search, err := a.search(ctx, c.location(), c.Filter, c.Timeout)
	if err != nil {
		return err
	}
	if c.Place >= 0 && a.session.Select(c.Place) == nil {
		return fmt.Errorf("%w: no place at %d", domain.ErrNotFound, c.Place)
	}

	receipt, err := a.session.Confirm(ctx)
	if errors.Is(err, domain.ErrFirstPlace) {
		first := search.Selected()
		if !c.Yes {
			printPlaces(search)
			return fmt.Errorf("%w: pass --yes to use %q or --place to pick another", err, first.Name)
		}
		receipt, err = a.session.Confirm(ctx)
	}
	if err != nil {
		return err
	}

	tx := receipt.Transaction
	fmt.Printf("%s %s @ %s\n", tx.ID, tx.Amount.StringFixed(2), tx.Place.Name)

	if receipt.Sync == nil {
		return nil
	}
	res, err := awaitSync(ctx, receipt.Sync)
	if err != nil {
		fmt.Println("interrupted, the export may not have finished")
		return err
	}
	printResult(res)
	return nil
}

// awaitSync blocks until the export reports back or ctx is done. Rows are
// only cleared once the sheet has them, so leaving early risks a second
// export of the same rows from the next run.
func awaitSync(ctx context.Context, results <-chan *export.Result) (*export.Result, error) {
	select {
	case res, ok := <-results:
		if !ok || res == nil {
			return nil, fmt.Errorf("export ended without a result")
		}
		return res, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

type syncCmd struct{}

func (c *syncCmd) Run(g *globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.exporter == nil {
		return errNoGoogle
	}
	res, err := a.exporter.Run(ctx)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

type linkCmd struct {
	Account string `help:"Name of the account, for your reference."`
}

func (c *linkCmd) Run(g *globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.authorizer == nil {
		return errNoGoogle
	}
	a.authorizer.Prompt = func(url string) {
		fmt.Println("Go to the following URL to continue: ", url)
	}
	if err := a.authorizer.Authorize(ctx); err != nil {
		return err
	}
	if c.Account != "" {
		if err := a.prefs.SetAccount(c.Account); err != nil {
			return err
		}
	}

	fmt.Println("linked", a.prefs.Account())
	return nil
}

type forgetCmd struct {
	locationFlags `embed`

	Index  int    `arg help:"Index of the place (see 'places')."`
	Filter string `short:"f" help:"Search text used when listing."`
}

func (c *forgetCmd) Run(g *globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// local places are all there is to forget, no need to wait on remote
	if err := a.session.SetLocation(c.location()); err != nil {
		return err
	}
	if _, err := a.session.Search(ctx, c.Filter); err != nil {
		return err
	}

	p, err := a.session.Forget(ctx, c.Index)
	if err != nil {
		return err
	}
	fmt.Println("forgot", p.Name)
	return nil
}

type statusCmd struct{}

func (c *statusCmd) Run(g *globals) error {
	ctx := context.Background()
	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	st, err := a.session.Status(ctx)
	if err != nil {
		return err
	}

	doc := st.DocumentID
	if doc == "" {
		doc = "(none yet)"
	}
	account := a.prefs.Account()
	if account == "" {
		account = "(not linked)"
	}
	if a.prefs.Token() == nil {
		account += ", no token"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "store\t%s\n", g.Store)
	fmt.Fprintf(w, "account\t%s\n", account)
	fmt.Fprintf(w, "spreadsheet\t%s\n", doc)
	fmt.Fprintf(w, "places\t%d\n", st.Places)
	fmt.Fprintf(w, "pending\t%d\n", st.Pending)
	return w.Flush()
}

type serveCmd struct {
	Addr    string   `default:"127.0.0.1:8400" env:"CASHSTER_ADDR" help:"Address to serve on."`
	Origins []string `name:"cors-origin" env:"CASHSTER_CORS_ORIGINS" help:"Browser origins allowed to call the API."`
}

func (c *serveCmd) Run(g *globals) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := g.open(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := []api.Option{api.WithMetrics(a.metrics)}
	if len(c.Origins) > 0 {
		opts = append(opts, api.WithCORS(c.Origins...))
	}
	return api.New(a.session, a.logger, opts...).ListenAndServe(ctx, c.Addr)
}

func (a *app) search(ctx context.Context, loc *domain.Location, filter string, timeout time.Duration) (*places.Search, error) {
	if err := a.session.SetLocation(loc); err != nil {
		return nil, err
	}
	search, err := a.session.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := search.Wait(wctx); err != nil {
		a.logger.Warn("gave up waiting for remote places")
	}
	return search, nil
}

// enterAmount types amount on the session keypad.
func enterAmount(a *app, amount string) error {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return fmt.Errorf("%w: amount %q", domain.ErrInvalid, amount)
	}

	cents := d.Abs().Shift(2)
	if !cents.Equal(cents.Truncate(0)) {
		return fmt.Errorf("%w: amount %q has more than 2 decimals", domain.ErrInvalid, amount)
	}
	digits := cents.String()
	if len(digits) > keypad.MaxDigits {
		return domain.ErrTooMuch
	}

	for _, k := range digits {
		if err := a.session.Press(string(k)); err != nil {
			return err
		}
	}
	if d.IsNegative() {
		a.session.ToggleSign()
	}
	return nil
}

func printPlaces(search *places.Search) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tNAME\tCATEGORY\tDISTANCE\tFROM")
	for i, p := range search.Items() {
		dist := ""
		if p.Distance != nil {
			dist = fmt.Sprintf("%.0fm", *p.Distance)
		}
		mark := ""
		if i == search.SelectedIndex() {
			mark = "*"
		}
		fmt.Fprintf(w, "%d%s\t%s\t%s\t%s\t%s\n", i, mark, p.Name, p.Category, dist, p.Origin)
	}
	w.Flush()

	if err := search.RemoteErr(); err != nil {
		fmt.Println("remote places unavailable:", err)
	}
}

func printResult(res *export.Result) {
	if res.Err != nil {
		fmt.Println("export failed, transactions are kept:", res.Err)
		return
	}
	fmt.Printf("exported %d transaction(s) to %s\n", res.Exported, res.DocumentID)
}
