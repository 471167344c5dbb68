package main

import (
	"log"

	"github.com/mkorolev/sitegate/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
