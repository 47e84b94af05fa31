package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/tender-pricer/internal/ai"
	"mspro-labs/tender-pricer/internal/config"
	"mspro-labs/tender-pricer/internal/db"
	"mspro-labs/tender-pricer/internal/models"
	"mspro-labs/tender-pricer/internal/names"
	"mspro-labs/tender-pricer/internal/ranker"
	"mspro-labs/tender-pricer/internal/scraper"
	"mspro-labs/tender-pricer/internal/session"
	"mspro-labs/tender-pricer/internal/tender"
)

var runFlags struct {
	output     string
	sheet      string
	noHeadless bool
	auth       bool
	noAutoSave bool
	noCache    bool
	rank       bool
}

var runCmd = &cobra.Command{
	Use:   "run [tender.xlsx]",
	Short: "Price every product of a tender workbook and write the results",
	Long: `Extracts the product list from the tender workbook, looks each product up
on the marketplace and writes a reconciled copy of the workbook. Snapshots are
saved while the run progresses. Press Ctrl+C once to stop after the current
product, twice to save immediately and exit.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		input := "tender_list.xlsx"
		if len(args) == 1 {
			input = args[0]
		}
		runPricing(input)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.output, "output", "o", "auto", `output workbook ("auto" picks results_<timestamp>.xlsx)`)
	f.StringVar(&runFlags.sheet, "sheet", "", "sheet to reconcile (default: active sheet, then the others)")
	f.BoolVar(&runFlags.noHeadless, "no-headless", false, "show the browser window")
	f.BoolVar(&runFlags.auth, "auth", false, "load marketplace cookies to get business prices")
	f.BoolVar(&runFlags.noAutoSave, "no-auto-save", false, "only save once at the end of the run")
	f.BoolVar(&runFlags.noCache, "no-cache", false, "ignore cached lookups")
	f.BoolVar(&runFlags.rank, "rank", false, "rank search results by embedding similarity (needs GEMINI_API_KEY)")
	rootCmd.AddCommand(runCmd)
}

// autoOutputName builds results_<timestamp>[_auth].xlsx.
func autoOutputName(now time.Time, auth bool) string {
	suffix := ""
	if auth {
		suffix = "_auth"
	}
	return fmt.Sprintf("results_%s%s.xlsx", now.Format("20060102_150405"), suffix)
}

func runPricing(input string) {
	// 1. Config & DB
	appCfg, database := mustOpenDB()
	rel := &releaser{}
	defer rel.release()
	rel.add(func() { database.Close() })
	siteCfg, err := config.LoadSiteConfig(appCfg.ConfigPath)
	if err != nil {
		log.Fatalf("Failed to load site config: %v", err)
	}

	// 2. Extract products. This is the only step that aborts the run.
	records, table, err := tender.ExtractProducts(input)
	if err != nil {
		log.Fatalf("Failed to read tender workbook: %v", err)
	}
	log.Printf("Found %d products in %s", len(records), describeTable(table))
	if len(records) == 0 {
		log.Println("No products to price. Exiting.")
		return
	}

	output := runFlags.output
	if output == "auto" {
		output = autoOutputName(time.Now(), runFlags.auth)
	}

	// 3. Session & run record
	sess := session.New(context.Background(), input, output, tender.Options{Sheet: runFlags.sheet})
	pending := make([]models.ItemResult, len(records))
	for i, rec := range records {
		pending[i] = models.ItemResult{Index: i, Name: rec.Name, Raw: rec.Raw, Status: models.StatusPending}
	}
	run := db.Run{
		ID:           sess.ID,
		InputPath:    input,
		OutputPath:   output,
		Sheet:        runFlags.sheet,
		BusinessAuth: runFlags.auth,
	}
	if err := db.CreateRun(database, run, pending); err != nil {
		log.Fatalf("Failed to register run: %v", err)
	}

	// 4. Signals
	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go session.WatchSignals(watchCtx, sess, sigs, rel.exitFunc(os.Exit))

	// 5. Browser
	if runFlags.auth {
		report, err := scraper.CheckCookies(appCfg.CookiesPath, time.Now())
		if err != nil || !report.Usable() {
			log.Printf("⚠️ Cookies at %s look unusable (%v); business prices may be missing", appCfg.CookiesPath, err)
		}
	}
	sc, err := scraper.New(sess.Context(), siteCfg, scraper.Options{
		Headless:     appCfg.Headless && !runFlags.noHeadless,
		BusinessAuth: runFlags.auth,
		CookiesPath:  appCfg.CookiesPath,
	})
	if err != nil {
		log.Fatalf("Failed to start browser: %v", err)
	}
	rel.add(sc.Close)
	if runFlags.auth && !sc.Authenticated {
		log.Println("⚠️ Business account not detected; continuing with regular prices")
	}

	if runFlags.rank {
		aiClient, err := ai.NewClient(sess.Context())
		if err != nil {
			log.Printf("⚠️ Warning: ranking disabled, could not initialize AI (check GEMINI_API_KEY): %v", err)
		} else {
			rel.add(aiClient.Close)
			sc.WithFilter(&ranker.Ranker{DB: database, Embedder: aiClient, MinScore: siteCfg.Ranking.MinScore})
		}
	}

	var lookup session.Lookup = sc
	if !runFlags.noCache && appCfg.LookupCacheTTL > 0 {
		lookup = &cachedLookup{database: database, next: sc, ttl: appCfg.LookupCacheTTL}
	}

	// 6. Run
	autoSave := appCfg.AutoSaveEvery
	if runFlags.noAutoSave {
		autoSave = 0
	}
	events := make(chan session.Event, 64)
	runner := &session.Runner{
		Session:       sess,
		Lookup:        lookup,
		Events:        events,
		AutoSaveEvery: autoSave,
		Record:        func(it models.ItemResult) error { return db.SaveItem(database, sess.ID, it) },
	}
	done := make(chan session.Summary, 1)
	go func() { done <- runner.Run(records) }()

	total := len(records)
	session.Drain(events, appCfg.PollInterval, func(ev session.Event) {
		printEvent(ev, total)
	})
	sum := <-done

	// 7. Finish
	run.Status = db.RunFinished
	if sess.Stopped() {
		run.Status = db.RunStopped
	}
	run.Total, run.Success, run.Errors, run.NotFound, run.Saves = sum.Total, sum.Success, sum.Errors, sum.NotFound, sum.Saves
	if err := db.FinishRun(database, run); err != nil {
		log.Printf("Failed to record run result: %v", err)
	}
	printSummary(sum, output, time.Since(sess.StartedAt))
}

func printEvent(ev session.Event, total int) {
	switch ev.Kind {
	case session.EventRowUpdated:
		it := ev.Item
		if !it.Status.Done() {
			return
		}
		fmt.Printf("[%d/%d] %-8s %-40s %12s %12s\n", it.Index+1, total, it.Status,
			names.Truncate(it.Name, 40), it.Result.Regular.Display(), it.Result.Business.Display())
	case session.EventAutoSave:
		if ev.OK {
			fmt.Printf("💾 Saved (%s)\n", ev.Message)
		} else {
			fmt.Printf("⚠️ Save skipped or failed (%s)\n", ev.Message)
		}
	case session.EventFinished:
		fmt.Printf("✅ %s\n", ev.Message)
	}
}

func printSummary(sum session.Summary, output string, elapsed time.Duration) {
	fmt.Println()
	fmt.Println("📊 Run statistics")
	fmt.Println("------------------------------------")
	fmt.Printf("Products:        %d\n", sum.Total)
	fmt.Printf("Processed:       %d\n", sum.Processed)
	fmt.Printf("Found:           %d\n", sum.Success)
	fmt.Printf("Not found:       %d\n", sum.NotFound)
	fmt.Printf("Errors:          %d\n", sum.Errors)
	fmt.Printf("Pending:         %d\n", sum.Pending)
	fmt.Printf("Regular prices:  %d\n", sum.Regular)
	fmt.Printf("Business prices: %d\n", sum.Business)
	fmt.Printf("Saves:           %d\n", sum.Saves)
	fmt.Printf("Duration:        %s\n", elapsed.Round(time.Second))
	if sum.Saves > 0 {
		fmt.Printf("Output:          %s\n", output)
	}
}

// releaser closes run resources once, in reverse order, whether the run ends
// normally or a forced exit cuts it short.
type releaser struct {
	mu   sync.Mutex
	fns  []func()
	done bool
}

func (r *releaser) add(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
}

func (r *releaser) release() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	for i := len(r.fns) - 1; i >= 0; i-- {
		r.fns[i]()
	}
}

// exitFunc wraps exit so resources are released before the process ends.
func (r *releaser) exitFunc(exit func(code int)) func(code int) {
	return func(code int) {
		r.release()
		exit(code)
	}
}

// cachedLookup serves repeated products from the lookup cache and stores
// fresh marketplace results.
type cachedLookup struct {
	database *sql.DB
	next     session.Lookup
	ttl      time.Duration
}

func (c *cachedLookup) Lookup(ctx context.Context, name string) (models.PriceResult, error) {
	res, ok, err := db.GetCachedLookup(c.database, name, c.ttl)
	if err != nil {
		log.Printf("Cache read failed for %q: %v", names.Truncate(name, 40), err)
	} else if ok {
		return res, nil
	}

	res, err = c.next.Lookup(ctx, name)
	if err != nil {
		return res, err
	}
	if err := db.SaveCachedLookup(c.database, name, res); err != nil {
		log.Printf("Cache write failed for %q: %v", names.Truncate(name, 40), err)
	}
	return res, nil
}
