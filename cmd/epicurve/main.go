// EpiCurve — outbreak time-series analysis and projection.
//
// Main CLI entrypoint using cobra command framework.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/outbreaklab/epicurve/api"
	"github.com/outbreaklab/epicurve/internal/config"
	"github.com/outbreaklab/epicurve/internal/datasource"
	"github.com/outbreaklab/epicurve/internal/pipeline"
	"github.com/outbreaklab/epicurve/internal/report"
	"github.com/outbreaklab/epicurve/pkg/models"
)

// Build-time variables (set via -ldflags).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Global config
var cfg *config.Config

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "epicurve",
	Short: "EpiCurve — outbreak time-series analysis and projection",
	Long: `EpiCurve analyses daily case and death counts for a region:
smoothing, outbreak event detection (start, peak, end), sigmoid curve
fitting, and forward projection of the outbreak's course.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		configFile, _ := cmd.Flags().GetString("config")
		if configFile != "" {
			cfg, err = config.LoadFromFile(configFile)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config/config.yaml)")
	rootCmd.PersistentFlags().String("data", "", "local feed snapshot file (overrides data.local_file)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(predictCmd)
	rootCmd.AddCommand(newsCmd)
	rootCmd.AddCommand(serveCmd)
}

// --- Version Command ---

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("EpiCurve %s\n", version)
		fmt.Printf("  commit:  %s\n", commit)
		fmt.Printf("  built:   %s\n", date)
	},
}

// --- Regions Command ---

var regionsCmd = &cobra.Command{
	Use:   "regions",
	Short: "List regions available in the data feed",
	RunE: func(cmd *cobra.Command, args []string) error {
		ds, err := loadDataset(cmd)
		if err != nil {
			return err
		}

		var regions []datasource.RegionInfo
		if find, _ := cmd.Flags().GetString("find"); find != "" {
			regions = ds.Find(find)
			if len(regions) == 0 {
				fmt.Printf("no regions matching %q\n", find)
				return nil
			}
		} else {
			regions = ds.Regions()
		}

		for _, r := range regions {
			fmt.Printf("  %-4s %-40s %4d days\n", r.GeoID, r.Name, r.Days)
		}
		fmt.Printf("\n%d region(s)\n", len(regions))
		return nil
	},
}

func init() {
	regionsCmd.Flags().String("find", "", "filter regions by name substring")
}

// --- Analyze Command ---

var analyzeCmd = &cobra.Command{
	Use:   "analyze [geoId]",
	Short: "Run the full analysis for a region and print the report",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := analyzeRegion(cmd, args[0])
		if err != nil {
			return err
		}

		opts := report.DefaultOptions()
		opts.RecentDays, _ = cmd.Flags().GetInt("days")
		opts.PredictDays, _ = cmd.Flags().GetInt("predict")
		fmt.Print(report.Render(r, opts))
		return nil
	},
}

func init() {
	analyzeCmd.Flags().Int("days", 7, "rows in the recent-data table")
	analyzeCmd.Flags().Int("predict", 14, "rows in the prediction table")
}

// --- Show Command ---

var showCmd = &cobra.Command{
	Use:   "show [geoId]",
	Short: "Show recent raw and smoothed data for a region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := analyzeRegion(cmd, args[0])
		if err != nil {
			return err
		}
		days, _ := cmd.Flags().GetInt("days")
		fmt.Print(report.Recent(r, days))
		return nil
	},
}

func init() {
	showCmd.Flags().Int("days", 14, "number of recent days to show")
}

// --- Predict Command ---

var predictCmd = &cobra.Command{
	Use:   "predict [geoId]",
	Short: "Project the outbreak curve forward for a region",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := analyzeRegion(cmd, args[0])
		if err != nil {
			return err
		}

		if r.Cases.Model == nil {
			if r.Cases.FitError != "" {
				return fmt.Errorf("no fitted curve for %s: %s", r.GeoID, r.Cases.FitError)
			}
			return fmt.Errorf("no fitted curve for %s", r.GeoID)
		}

		days, _ := cmd.Flags().GetInt("days")
		fmt.Print(report.Prediction(r, days))
		return nil
	},
}

func init() {
	predictCmd.Flags().Int("days", 14, "number of days to project")
}

// --- News Command ---

var newsCmd = &cobra.Command{
	Use:   "news [region name]",
	Short: "Show outbreak news headlines",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		news := datasource.NewNews(cfg.Data.NewsFeedURL)
		limit, _ := cmd.Flags().GetInt("limit")

		var items []models.NewsItem
		var err error
		if len(args) > 0 {
			items, err = news.ForRegion(ctx, strings.Join(args, " "), limit)
		} else {
			items, err = news.Latest(ctx, limit)
		}
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("no news items found")
			return nil
		}
		for _, it := range items {
			fmt.Printf("%s  %s\n    %s\n", it.PublishedAt.Format("2006-01-02"), it.Title, it.URL)
		}
		return nil
	},
}

func init() {
	newsCmd.Flags().Int("limit", 10, "maximum number of headlines")
}

// --- Serve Command (API Server) ---

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := api.NewServer(cfg)

		// A local snapshot skips the initial network fetch.
		if file := localFile(cmd); file != "" {
			client := datasource.NewClient(cfg.Data.FeedURL, time.Duration(cfg.Data.CacheTTLSec)*time.Second)
			ds, err := client.LoadFile(file)
			if err != nil {
				return err
			}
			srv.SetDataset(ds)
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port)
		fmt.Printf("Starting EpiCurve API server on %s\n", addr)
		return srv.ListenAndServe(addr)
	},
}

// --- Helpers ---

func localFile(cmd *cobra.Command) string {
	if file, _ := cmd.Flags().GetString("data"); file != "" {
		return file
	}
	return cfg.Data.LocalFile
}

func loadDataset(cmd *cobra.Command) (*datasource.Dataset, error) {
	client := datasource.NewClient(cfg.Data.FeedURL, time.Duration(cfg.Data.CacheTTLSec)*time.Second)

	if file := localFile(cmd); file != "" {
		return client.LoadFile(file)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()
	return client.Fetch(ctx)
}

func analyzeRegion(cmd *cobra.Command, geoID string) (*models.Report, error) {
	ds, err := loadDataset(cmd)
	if err != nil {
		return nil, err
	}
	region, err := ds.Region(geoID)
	if err != nil {
		return nil, err
	}

	pipe := pipeline.New(cfg.Analysis)
	return pipe.Run(pipeline.Input{
		GeoID:      region.GeoID,
		Region:     region.Name,
		Population: region.Population,
		Cases:      region.Cases,
		Deaths:     region.Deaths,
	})
}
