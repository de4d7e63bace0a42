package main

import (
	"log"
	"os"

	"github.com/viant/mcpb"
)

func main() {
	if err := mcpb.RunRelay(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
