package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/gemclash/gem-server-go/internal/gem"
)

// Standalone catalog checker: loads the YAML template files the server
// would load and reports what they contain. Run before shipping catalog
// changes.
//
//	go run scripts/validate_catalog.go -gems data/gems.yaml -augmentations data/augmentations.yaml
func main() {
	gemsPath := flag.String("gems", "data/gems.yaml", "path to the gem template file")
	augsPath := flag.String("augmentations", "data/augmentations.yaml", "path to the augmentation template file")
	flag.Parse()

	absGems, err := filepath.Abs(*gemsPath)
	if err != nil {
		log.Fatalf("resolve gems path: %v", err)
	}
	absAugs, err := filepath.Abs(*augsPath)
	if err != nil {
		log.Fatalf("resolve augmentations path: %v", err)
	}

	fmt.Println("=== Gem Catalog Validation ===")
	fmt.Printf("Gems:          %s\n", absGems)
	fmt.Printf("Augmentations: %s\n", absAugs)

	catalog, err := gem.Load(absGems, absAugs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FAILED: %v\n", err)
		os.Exit(1)
	}

	starters := 0
	replacements := 0
	advanced := 0
	for _, tmpl := range catalog.Templates() {
		switch {
		case tmpl.Advanced:
			advanced++
		case tmpl.ReplacesID != "":
			replacements++
		default:
			starters++
		}
		scope := tmpl.ClassID
		if scope == "" {
			scope = "any"
		}
		fmt.Printf("  %-18s %-6s %-7s value=%-3d cost=%d mastery=%-3d class=%s\n",
			tmpl.ID, tmpl.Color, tmpl.Kind, tmpl.BaseValue, tmpl.BaseCost, tmpl.BaseMastery, scope)
	}

	fmt.Printf("\nTemplates: %d (%d starter, %d class replacement, %d advanced)\n",
		starters+replacements+advanced, starters, replacements, advanced)
	fmt.Println("Catalog OK")
}
