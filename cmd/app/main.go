package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"FinForecast/internal/di"
	"FinForecast/internal/report"
	"FinForecast/internal/usecase"
	"FinForecast/pkg/config"
	applogger "FinForecast/pkg/logger"
	"FinForecast/pkg/util"
)

type cliFlags struct {
	mode    string
	symbols string
	start   string
	end     string
	window  int
	out     string
	save    bool
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	var f cliFlags
	flag.StringVar(&f.mode, "mode", "serve", "serve | analyze | forecast")
	flag.StringVar(&f.symbols, "symbols", "", "comma separated tickers, e.g. AAPL,MSFT")
	flag.StringVar(&f.start, "start", "", "first day (YYYY-MM-DD), default one year before -end")
	flag.StringVar(&f.end, "end", "", "last day (YYYY-MM-DD), default today")
	flag.IntVar(&f.window, "window", 0, "forecast window, default from config")
	flag.StringVar(&f.out, "out", "", "artifact directory, default report.output_dir")
	flag.BoolVar(&f.save, "save", false, "write the xlsx workbook or forecast chart")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	switch f.mode {
	case "serve":
		err = serve(cfg)
	case "analyze", "forecast":
		err = runOnce(cfg, f)
	default:
		err = fmt.Errorf("unknown mode %q", f.mode)
	}
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}

func serve(cfg *config.Config) error {
	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	// Run blocks until SIGINT/SIGTERM
	return app.Run(context.Background())
}

func runOnce(cfg *config.Config, f cliFlags) error {
	symbols := util.ParseSymbols(f.symbols)
	if len(symbols) == 0 {
		return fmt.Errorf("-symbols is required in %s mode", f.mode)
	}
	start, end, err := cliRange(f.start, f.end)
	if err != nil {
		return err
	}
	out := f.out
	if out == "" {
		out = cfg.Report.OutputDir
	}

	svc, cleanup, err := di.InitializeServices(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if f.mode == "forecast" {
		return runForecast(ctx, svc, symbols[0], start, end, f.window, f.save, out)
	}
	return runAnalysis(ctx, svc, symbols, start, end, f.window, f.save, out)
}

func runAnalysis(ctx context.Context, svc *di.Services, symbols []string, start, end time.Time, window int, save bool, out string) error {
	params := usecase.AnalysisParams{Symbols: symbols, Start: start, End: end}
	if !save {
		rep, err := svc.Analysis.Analyze(ctx, params)
		if err != nil {
			return err
		}
		return printJSON(rep)
	}

	bundle, err := svc.Reports.Build(ctx, usecase.ReportParams{Analysis: params, Window: window})
	if err != nil {
		return err
	}
	for section, msg := range bundle.Errors {
		svc.Log.Warn("report section skipped", applogger.String("section", section), applogger.String("error", msg))
	}
	path := filepath.Join(out, fmt.Sprintf("analysis_%s_%s.xlsx", strings.Join(symbols, "-"), util.FormatDate(end)))
	if err := ensureDir(out); err != nil {
		return err
	}
	if err := report.SaveWorkbook(path, report.Workbook{
		Prices:   bundle.Analysis.Prices,
		Analysis: bundle.Analysis.Report,
		Forecast: bundle.Forecast,
	}); err != nil {
		return err
	}
	svc.Log.Info("workbook written", applogger.String("path", path))
	return printJSON(bundle.Analysis.Report)
}

func runForecast(ctx context.Context, svc *di.Services, symbol string, start, end time.Time, window int, save bool, out string) error {
	res, err := svc.Forecast.Forecast(ctx, usecase.ForecastParams{Symbol: symbol, Start: start, End: end, Window: window})
	if err != nil {
		return err
	}
	if save {
		img, err := report.RenderForecastChart(res)
		if err != nil {
			return err
		}
		if err := ensureDir(out); err != nil {
			return err
		}
		path := filepath.Join(out, fmt.Sprintf("forecast_%s_%s.png", res.Symbol, util.FormatDate(end)))
		if err := os.WriteFile(path, img, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		svc.Log.Info("chart written", applogger.String("path", path))
	}
	return printJSON(res)
}

func cliRange(start, end string) (time.Time, time.Time, error) {
	from, to := util.TrailingRange(time.Now(), 365)
	if end != "" {
		t, ok := util.ParseDate(end)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -end %q", end)
		}
		to = t
		from = to.AddDate(-1, 0, 0)
	}
	if start != "" {
		t, ok := util.ParseDate(start)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid -start %q", start)
		}
		from = t
	}
	return from, to, nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
