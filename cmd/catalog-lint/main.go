package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/uxlens/uxaudit_backend/models"
)

// catalog-lint validates a rule catalog file before it is deployed. Exit code
// is non-zero on the first malformed rule.
func main() {
	flag.Parse()
	path := flag.Arg(0)
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: catalog-lint <catalog.json>")
		os.Exit(2)
	}

	os.Setenv("RULE_CATALOG_PATH", path)
	if err := models.LoadRuleCatalog(); err != nil {
		fmt.Fprintln(os.Stderr, "catalog-lint:", err)
		os.Exit(1)
	}

	catalog := models.GetRuleCatalog()
	fmt.Printf("catalog %s: %d rules OK\n", catalog.Version, catalog.Len())
	counts := catalog.CountByCategory()
	categories := make([]string, 0, len(counts))
	for category := range counts {
		categories = append(categories, string(category))
	}
	sort.Strings(categories)
	for _, category := range categories {
		fmt.Printf("  %s: %d\n", category, counts[models.RuleCategory(category)])
	}
}
