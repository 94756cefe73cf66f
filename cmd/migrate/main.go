// Package main applies the embedded database migrations.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/facturo/facturo/internal/migrate"
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		direction   = flag.String("direction", migrate.Up, "Migration direction: up or down")
		showVersion = flag.Bool("version", false, "Print the applied schema version and exit")
	)
	flag.Parse()

	if *showVersion {
		version, dirty, err := migrate.Version(*databaseURL)
		if err != nil {
			fmt.Fprintln(os.Stderr, "migrate:", err)
			os.Exit(1)
		}
		fmt.Printf("version %d (dirty=%t)\n", version, dirty)
		return
	}

	if err := migrate.Run(*databaseURL, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Println("migrations applied:", *direction)
}
