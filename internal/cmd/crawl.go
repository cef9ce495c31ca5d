package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/studyshelf/studyshelf/internal/catalog"
	"github.com/studyshelf/studyshelf/internal/config"
	"github.com/studyshelf/studyshelf/internal/crawl"
	"github.com/studyshelf/studyshelf/internal/logging"
)

// crawlOutput is the --json shape of a one-shot crawl.
type crawlOutput struct {
	Coordinate catalog.Coordinate `json:"coordinate"`
	Total      int                `json:"total"`
	Materials  []catalog.Material `json:"materials"`
	Subjects   []string           `json:"subjects"`
}

// NewCrawlCommand creates the crawl command
func NewCrawlCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl a repository folder once and print the catalog",
		Long: `Crawl a remote repository folder once and print the resulting catalog
grouped by subject, without starting a server.

Flags override the corresponding environment variables; --json emits the
raw catalog for piping into other tools.

Examples:
  studyshelf crawl --owner stanford-cs --repo course-materials
  studyshelf crawl --owner acme --repo docs --ref v2 --root materials
  studyshelf crawl --owner acme --repo docs --json | jq '.materials[].path'`,
		Args: cobra.NoArgs,
		RunE: crawlCommand,
	}

	cmd.Flags().String("owner", "", "Repository owner (default: REPO_OWNER)")
	cmd.Flags().String("repo", "", "Repository name (default: REPO_NAME)")
	cmd.Flags().String("ref", "", "Branch, tag or commit (default: REPO_REF)")
	cmd.Flags().String("root", "", "Folder to crawl from (default: REPO_ROOT)")
	cmd.Flags().String("api-url", "", "GitHub-compatible API base URL (default: GITHUB_API_URL)")
	cmd.Flags().Int("workers", 0, "Concurrent directory listings (default: CRAWL_WORKERS)")
	cmd.Flags().Bool("json", false, "Print the catalog as JSON")

	return cmd
}

// crawlCommand implements the crawl command logic
func crawlCommand(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Keep structured logs out of the table output.
	if err := logging.Init(logging.Config{Level: "error", Format: "console"}); err != nil {
		return err
	}
	defer logging.Sync()

	flagOr := func(name, fallback string) string {
		if v, _ := cmd.Flags().GetString(name); v != "" {
			return v
		}
		return fallback
	}

	cfg.GitHubAPIURL = flagOr("api-url", cfg.GitHubAPIURL)
	if workers, _ := cmd.Flags().GetInt("workers"); workers >= 1 {
		cfg.CrawlWorkers = workers
	}

	coord := catalog.Coordinate{
		Owner: flagOr("owner", cfg.RepoOwner),
		Repo:  flagOr("repo", cfg.RepoName),
		Ref:   flagOr("ref", cfg.RepoRef),
		Root:  flagOr("root", cfg.RepoRoot),
	}
	if err := coord.Validate(); err != nil {
		return err
	}

	lister, err := newLister(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("source init failed: %w", err)
	}

	start := time.Now()
	materials, err := crawl.New(lister, cfg.CrawlWorkers).Crawl(cmd.Context(), coord)
	if err != nil {
		return err
	}
	sorted, subjects := catalog.Build(materials, coord.Root)
	took := time.Since(start)

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(crawlOutput{
			Coordinate: coord,
			Total:      len(sorted),
			Materials:  sorted,
			Subjects:   subjects,
		})
	}

	printCatalog(coord, sorted, subjects, took)
	return nil
}

// printCatalog renders the catalog as a subject-grouped table.
func printCatalog(coord catalog.Coordinate, materials []catalog.Material, subjects []string, took time.Duration) {
	if !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
	bold := color.New(color.Bold)
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	bold.Println(coord.String())
	fmt.Printf("%d material(s) in %d subject(s), crawled in %s\n",
		len(materials), len(subjects), took.Round(time.Millisecond))

	if len(materials) == 0 {
		fmt.Println("\nNo materials found")
		return
	}

	for _, subject := range subjects {
		fmt.Println()
		cyan.Println(subject)
		for _, m := range materials {
			if m.Subject != subject {
				continue
			}
			fmt.Printf("  %-8s  %-42s %9s  %s\n",
				m.Kind, m.Name, humanize.Bytes(uint64(m.Size)), gray.Sprint(m.Path))
		}
	}
}
