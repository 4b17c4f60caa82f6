package main

import (
	"go-civitai-scrape/cmd/civitai-scrape/cmd"
)

func main() {
	// Execute the root command (defined in cmd/root.go)
	cmd.Execute()
}
