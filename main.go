package main

import (
	"log"

	"apiflow/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatalf("apiflow: %v", err)
	}
}
