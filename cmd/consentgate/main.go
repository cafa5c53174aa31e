package main

import (
	"log"

	"github.com/MrSnakeDoc/consentgate/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ consentgate failed to start: %v", err)
	}
}
