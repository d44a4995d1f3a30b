package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"overlay-engine/core/config"
	"overlay-engine/core/database"
	"overlay-engine/feature/catalog"
	"overlay-engine/feature/overlay"
	"overlay-engine/feature/pricing"
)

// Prints the stored overlay of one table next to its base rows.
//
//	debug_overlay detail salvage mithril-ore daily
func main() {
	if len(os.Args) != 5 {
		fmt.Println("usage: debug_overlay <detail|main> <category> <key> <tier>")
		os.Exit(2)
	}
	kind := catalog.Kind(os.Args[1])
	if kind != catalog.KindDetail && kind != catalog.KindMain {
		log.Fatalf("unknown kind %q", os.Args[1])
	}
	tier, ok := pricing.ParseTier(os.Args[4])
	if !ok {
		log.Fatalf("unknown tier %q", os.Args[4])
	}
	target := catalog.Target{Kind: kind, Category: os.Args[2], Key: os.Args[3]}

	// Load config
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal(err)
	}

	// Connect to DB
	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()

	fmt.Println("=== Base table ===")
	docs, err := catalog.NewRepository(db).LoadAll(ctx)
	if err != nil {
		log.Fatal(err)
	}
	found := false
	for _, doc := range docs {
		if doc.Target == target {
			printJSON(doc.Body)
			found = true
			break
		}
	}
	if !found {
		fmt.Printf("%s not found in catalog\n", target)
	}

	fmt.Printf("\n=== Overlay (%s) ===\n", tier)
	rec, err := overlay.NewGormStore(db).Get(ctx, target, tier)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Content hash: %s\n", rec.Hash())
	printJSON(rec.Body)
}

func printJSON(raw []byte) {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(out.String())
}
