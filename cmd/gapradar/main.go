package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gapradar",
		Short: "Find supply vs demand gaps across digital product marketplaces",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(scrapeCmd())
	root.AddCommand(computeCmd())
	root.AddCommand(reportCmd())
	root.AddCommand(serveCmd())

	return root
}

func scrapeCmd() *cobra.Command {
	var (
		platforms []string
		category  string
		week      string
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Collect raw marketplace metrics for a category",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(platforms, category, week)
		},
	}

	cmd.Flags().StringSliceVar(&platforms, "platform", nil, "specific platforms to scrape (e.g., etsy,reddit)")
	cmd.Flags().StringVar(&category, "category", "", "product category to scrape (required)")
	cmd.Flags().StringVar(&week, "week", "", "week start date YYYY-MM-DD (default: current week)")
	cmd.MarkFlagRequired("category")
	return cmd
}

func computeCmd() *cobra.Command {
	var week string

	cmd := &cobra.Command{
		Use:   "compute",
		Short: "Run the normalization and gap score pipeline for a week",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(week)
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "week start date YYYY-MM-DD (default: current week)")
	return cmd
}

func reportCmd() *cobra.Command {
	var (
		week       string
		jsonOutput bool
		xlsxPath   string
		publish    bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the weekly opportunity summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(week, jsonOutput, xlsxPath, publish)
		},
	}

	cmd.Flags().StringVar(&week, "week", "", "week start date YYYY-MM-DD (default: current week)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "export summary to an xlsx file")
	cmd.Flags().BoolVar(&publish, "publish", false, "publish summary to Notion")
	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server with background task workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
