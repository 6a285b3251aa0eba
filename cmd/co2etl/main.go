// Command co2etl fetches CO2 and weather data, stages it in an object store,
// and builds the warehouse tables derived from it.
package main

import (
	"os"

	_ "github.com/marcboeker/go-duckdb/v2" // registers the duckdb driver
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
