package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"github.com/alanyoungcy/basketopt/internal/domain"
	"github.com/alanyoungcy/basketopt/internal/optimizer"
)

// orderFile is the offline input: either this object or a bare array of
// offer rows.
type orderFile struct {
	OrderID int64                  `json:"order_id"`
	Items   []domain.RequestedItem `json:"items"`
	Offers  []domain.OfferRow      `json:"offers"`
}

func optimizeCommand() *cli.Command {
	defaults := optimizer.DefaultConfig()
	return &cli.Command{
		Name:  "optimize",
		Usage: "Optimize one order from an offer feed file",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "offers",
				Aliases:  []string{"o"},
				Usage:    "Path to the offer feed JSON",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "exclusions",
				Aliases: []string{"x"},
				Usage:   "Path to an exclusions JSON ({\"keywords\":[],\"products\":[]})",
			},
			&cli.StringFlag{
				Name:  "engine",
				Value: defaults.Engine,
				Usage: "Scoring engine (auto, direct, batch)",
			},
			&cli.Int64Flag{
				Name:  "direct-threshold",
				Value: defaults.DirectThreshold,
				Usage: "Largest space auto mode scores with the direct engine",
			},
			&cli.Int64Flag{
				Name:  "max-combinations",
				Value: defaults.MaxCombinations,
				Usage: "Refuse orders with more combinations than this",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "text",
				Usage:   "Output format (text, json)",
			},
		},
		Action: runOptimize,
	}
}

func runOptimize(c *cli.Context) error {
	if limit := c.Int64("max-combinations"); limit <= 0 {
		return fmt.Errorf("--max-combinations must be positive, got %d", limit)
	}
	in, err := readInput(c.String("offers"), c.String("exclusions"))
	if err != nil {
		return err
	}
	cfg := optimizer.Config{
		Engine:          c.String("engine"),
		DirectThreshold: c.Int64("direct-threshold"),
		MaxCombinations: c.Int64("max-combinations"),
	}
	res, err := optimize(c.Context, cfg, in, newLogger(c.String("log-level")))
	if err != nil {
		return err
	}
	return writeResult(c.App.Writer, res, c.String("format"))
}

// optimize runs one order and folds fatal outcomes into the result status.
func optimize(ctx context.Context, cfg optimizer.Config, in optimizer.Input, logger *slog.Logger) (*domain.OptimizationResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := optimizer.New(cfg, logger).Optimize(ctx, in)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	status, msg := domain.StatusFor(err)
	logger.Warn("optimization did not succeed", slog.String("error", err.Error()))
	return &domain.OptimizationResult{
		OrderID:  in.OrderID,
		Status:   status,
		Message:  msg,
		Baskets:  []domain.Basket{},
		Warnings: []domain.Warning{},
	}, nil
}

func readInput(offersPath, exclusionsPath string) (optimizer.Input, error) {
	raw, err := os.ReadFile(offersPath)
	if err != nil {
		return optimizer.Input{}, fmt.Errorf("read offers: %w", err)
	}
	order, err := decodeOrder(raw)
	if err != nil {
		return optimizer.Input{}, fmt.Errorf("decode offers %s: %w", offersPath, err)
	}
	in := optimizer.Input{OrderID: order.OrderID, Items: order.Items, Offers: order.Offers}

	if exclusionsPath != "" {
		raw, err := os.ReadFile(exclusionsPath)
		if err != nil {
			return optimizer.Input{}, fmt.Errorf("read exclusions: %w", err)
		}
		if err := json.Unmarshal(raw, &in.Exclusions); err != nil {
			return optimizer.Input{}, fmt.Errorf("decode exclusions %s: %w", exclusionsPath, err)
		}
	}
	return in, nil
}

func decodeOrder(raw []byte) (orderFile, error) {
	var order orderFile
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		err := json.Unmarshal(raw, &order.Offers)
		return order, err
	}
	err := json.Unmarshal(raw, &order)
	return order, err
}

func writeResult(w io.Writer, res *domain.OptimizationResult, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "text", "":
		return writeText(w, res)
	default:
		return fmt.Errorf("unknown format %q (valid: text, json)", format)
	}
}

func writeText(w io.Writer, res *domain.OptimizationResult) error {
	money := optimizer.FormatMoney
	fmt.Fprintf(w, "status: %s", res.Status)
	if res.Message != "" {
		fmt.Fprintf(w, " (%s)", res.Message)
	}
	fmt.Fprintln(w)
	if res.Status != domain.StatusSuccess {
		return nil
	}
	fmt.Fprintf(w, "engine: %s, combinations: %d, elapsed: %s\n\n", res.Engine, res.Combinations, res.Elapsed)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, b := range res.Baskets {
		m := b.Metrics
		fmt.Fprintf(tw, "#%d %s\ttotal %s\tgoods %s\tdelivery %s\ttopup %s\tloss %s\n",
			b.Rank, b.Kind, money(m.TotalCost), money(m.TotalGoodsCost),
			money(m.TotalDeliveryCost), money(m.TotalTopup), money(m.TotalLoss))
		for _, o := range b.Offers {
			fmt.Fprintf(tw, "  item %d\t%s\t%s\t%s\n", o.RequestedItemID, o.VendorName, o.ProductName, money(o.ItemCost))
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, name := range domain.MissingMonoVendors(res.Warnings) {
		fmt.Fprintf(w, "warning: no single-vendor basket for %s\n", name)
	}
	return nil
}

func validateFeesCommand() *cli.Command {
	return &cli.Command{
		Name:  "validate-fees",
		Usage: "Check a delivery fee model and print the fee for an amount",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "model",
				Aliases:  []string{"m"},
				Usage:    "Path to the fee model JSON",
				Required: true,
			},
			&cli.Float64Flag{
				Name:    "amount",
				Aliases: []string{"a"},
				Usage:   "Order amount to price",
			},
		},
		Action: func(c *cli.Context) error {
			raw, err := os.ReadFile(c.String("model"))
			if err != nil {
				return fmt.Errorf("read model: %w", err)
			}
			return validateFees(c.App.Writer, raw, c.Float64("amount"))
		},
	}
}

func validateFees(w io.Writer, raw []byte, amount float64) error {
	model, err := optimizer.ParseFeeModel(raw)
	if err != nil {
		return err
	}
	if err := optimizer.ValidateFeeModel(model); err != nil {
		return err
	}
	fmt.Fprintf(w, "tiers: %d\n", len(model.Tiers))
	fmt.Fprintf(w, "fee at %s: %s\n", optimizer.FormatMoney(amount), optimizer.FormatMoney(optimizer.TierFee(model, amount)))
	return nil
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelWarn
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
