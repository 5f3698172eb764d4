// stockcheck reports writes to Medication.CurrentStock that bypass the
// lifecycle package.
//
//	go run ./cmd/stockcheck ./...
package main

import (
	"medsidekick/tools/stockwrites"

	"golang.org/x/tools/go/analysis/singlechecker"
)

func main() {
	singlechecker.Main(stockwrites.Analyzer)
}
