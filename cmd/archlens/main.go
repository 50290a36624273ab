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
		Use:   "archlens",
		Short: "Ingest, classify and browse engineering blog posts",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")

	root.AddCommand(ingestCmd())
	root.AddCommand(postsCmd())
	root.AddCommand(sourcesCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())

	return root
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass over all configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest()
		},
	}
}

func postsCmd() *cobra.Command {
	var (
		jsonOutput bool
		category   string
		sourceID   string
		keywords   string
	)

	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List stored posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPosts(category, sourceID, keywords, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	cmd.Flags().StringVar(&category, "category", "", "filter by category (WHAT, HOW, WHY)")
	cmd.Flags().StringVar(&sourceID, "source", "", "filter by source id")
	cmd.Flags().StringVar(&keywords, "keywords", "", "substring match against title or tags")
	return cmd
}

func sourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List configured sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSources()
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func runCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start daemon with periodic ingestion and HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}
