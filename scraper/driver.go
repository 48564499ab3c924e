package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/use-agent/gamedeck/config"
	"github.com/use-agent/gamedeck/extractor"
	"github.com/use-agent/gamedeck/models"
)

// State is the pagination state of a view.
type State int

const (
	// Expanding means a load-more control may still be present.
	Expanding State = iota
	// Settled means no load-more control remains; the catalog is complete.
	Settled
)

func (s State) String() string {
	switch s {
	case Expanding:
		return "expanding"
	case Settled:
		return "settled"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Expansion reports how far pagination got.
type Expansion struct {
	State State
	Steps int // load-more activations performed
}

// Driver materializes a full catalog by activating the load-more control
// until it disappears.
type Driver struct {
	sel extractor.Selectors
	cfg config.ScraperConfig
}

// NewDriver creates a Driver using sel to locate cards and the control.
func NewDriver(sel extractor.Selectors, cfg config.ScraperConfig) *Driver {
	return &Driver{sel: sel, cfg: cfg}
}

// WaitRendered blocks until the first card is visible. A failure means the
// view never initialised.
func (d *Driver) WaitRendered(ctx context.Context, page Page) error {
	if d.cfg.RenderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RenderTimeout)
		defer cancel()
	}
	if err := page.WaitVisible(ctx, d.sel.Card); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return models.NewScrapeError(models.ErrCodeTimeout,
				fmt.Sprintf("no catalog card became visible within %s", d.cfg.RenderTimeout), err)
		}
		return models.NewScrapeError(models.ErrCodeViewInit, "catalog cards did not render", err)
	}
	return nil
}

// Expand activates the load-more control until none remains. After each
// activation it waits SettleDelay, then polls until the control is gone or
// the card count grew; neither happening within SettleTimeout is a
// pagination failure. On error the returned Expansion is still Expanding
// and the page keeps whatever was loaded so far.
func (d *Driver) Expand(ctx context.Context, page Page) (Expansion, error) {
	exp := Expansion{State: Expanding}

	for exp.State == Expanding {
		present, err := page.Count(ctx, d.sel.LoadMore)
		if err != nil {
			return exp, d.failure(exp, "failed to query load-more control", err)
		}
		if present == 0 {
			exp.State = Settled
			break
		}

		before, err := page.Count(ctx, d.sel.Card)
		if err != nil {
			return exp, d.failure(exp, "failed to count catalog cards", err)
		}

		if err := page.Click(ctx, d.sel.LoadMore); err != nil {
			return exp, d.failure(exp, "load-more activation failed", err)
		}
		exp.Steps++
		if exp.Steps == 1 {
			slog.Info("expanding full catalog, this may take several minutes")
		}

		if err := sleep(ctx, d.cfg.SettleDelay); err != nil {
			return exp, d.failure(exp, "interrupted while settling", err)
		}

		after := before
		err = Poll(ctx, d.cfg.PollInterval, d.cfg.SettleTimeout, func(ctx context.Context) (bool, error) {
			more, err := page.Count(ctx, d.sel.LoadMore)
			if err != nil {
				return false, err
			}
			if more == 0 {
				return true, nil
			}
			after, err = page.Count(ctx, d.sel.Card)
			if err != nil {
				return false, err
			}
			return after > before, nil
		})
		if err != nil {
			if errors.Is(err, ErrPollTimeout) {
				return exp, d.failure(exp,
					fmt.Sprintf("catalog did not grow within %s after activation", d.cfg.SettleTimeout), err)
			}
			return exp, d.failure(exp, "failed while waiting for catalog to grow", err)
		}

		slog.Debug("load-more step settled", "step", exp.Steps, "cardsBefore", before, "cardsAfter", after)
	}

	return exp, nil
}

func (d *Driver) failure(exp Expansion, msg string, err error) error {
	return models.NewScrapeError(models.ErrCodePagination,
		fmt.Sprintf("%s (after %d steps)", msg, exp.Steps), err)
}
