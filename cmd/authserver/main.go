package main

import (
	"log"

	"github.com/tech-arch1tect/authsession"
)

func main() {
	app, err := authsession.New()
	if err != nil {
		log.Fatalf("Failed to build application: %v", err)
	}
	app.Run()
}
