package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/facultyhub/internal/models"
)

func listCmd() *cobra.Command {
	var (
		asJSON bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the faculty directory and latest news",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			st, err := newStore(ctx, logger)
			if err != nil {
				return fmt.Errorf("list: connecting to store: %w", err)
			}
			defer func() { _ = st.Close() }()

			dir, err := newEngine(st, logger).Directory(ctx)
			if err != nil {
				return fmt.Errorf("list: loading directory: %w", err)
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(dir)
			}
			printDirectory(dir, limit)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the directory as JSON")
	cmd.Flags().IntVar(&limit, "news", 10, "max news items to print")
	return cmd
}

func printDirectory(dir *models.Directory, newsLimit int) {
	byBranch := make(map[string][]models.Professor)
	for _, p := range dir.Professors {
		byBranch[p.Branch] = append(byBranch[p.Branch], p)
	}

	for _, d := range dir.Departments {
		fmt.Printf("%s (%s)\n", d.Name, d.ID)
		for _, bid := range d.Branches {
			name := bid
			if b, ok := dir.Branches[bid]; ok {
				name = b.Name
			}
			profs := byBranch[bid]
			sort.Slice(profs, func(i, j int) bool { return profs[i].Email < profs[j].Email })
			fmt.Printf("  %s [%s]: %d professors\n", name, bid, len(profs))
			for _, p := range profs {
				fmt.Printf("    %s <%s> ID: %s\n", truncate(p.Name, 40), p.Email, p.ID)
			}
		}
	}
	if len(dir.Departments) == 0 {
		fmt.Println("No departments found.")
	}

	if len(dir.News) > 0 {
		fmt.Println()
		fmt.Println("Latest news:")
	}
	for i, n := range dir.News {
		if i >= newsLimit {
			break
		}
		fmt.Printf("[%d] %s  %s\n", i+1, n.PublishedAt.Format("2006-01-02"), truncate(n.Title, 100))
	}
}
