package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/screenshotos/screenshotos/internal/config"
	"github.com/screenshotos/screenshotos/internal/index"
	"github.com/screenshotos/screenshotos/internal/logger"
	"github.com/screenshotos/screenshotos/internal/sidecar"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Query the screenshot library",
}

var indexSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search screenshots by name, tag, or recognized text",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := loadIndex()
		if err != nil {
			return err
		}

		query := ""
		if len(args) > 0 {
			query = args[0]
		}
		limit, _ := cmd.Flags().GetInt("limit")

		for _, e := range idx.Search(query, limit) {
			tags := ""
			if len(e.Tags) > 0 {
				tags = "  [" + strings.Join(e.Tags, ", ") + "]"
			}
			fmt.Printf("%s  %s%s\n", e.Timestamp.Format("2006-01-02 15:04"), e.ImagePath, tags)
		}
		return nil
	},
}

var indexTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List every tag in the library",
	RunE: func(cmd *cobra.Command, args []string) error {
		idx, err := loadIndex()
		if err != nil {
			return err
		}
		for _, tag := range idx.AllTags() {
			fmt.Println(tag)
		}
		return nil
	},
}

// loadIndex scans the save directory synchronously. CLI queries are
// one-shot; there is no long-lived process to rescan in the background.
func loadIndex() (*index.Indexer, error) {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize config manager: %w", err)
	}
	cfg := configMgr.Get()
	logger.Init(cfg.LogLevel, true)

	store := sidecar.NewStore()
	idx := index.NewIndexer(store)
	idx.ComputePerceptualHashes = false

	entries, err := store.ScanDirectory(cfg.SaveDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", cfg.SaveDirectory, err)
	}
	for _, e := range entries {
		idx.AddImage(e.ImagePath)
	}
	return idx, nil
}

func init() {
	indexSearchCmd.Flags().Int("limit", 20, "maximum results to print")
	indexCmd.AddCommand(indexSearchCmd)
	indexCmd.AddCommand(indexTagsCmd)
	rootCmd.AddCommand(indexCmd)
}
