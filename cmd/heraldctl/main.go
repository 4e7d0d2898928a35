package main

import (
	"log"

	"github.com/heraldhq/herald/cmd/heraldctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
