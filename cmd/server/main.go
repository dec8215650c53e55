package main

import (
	"context"
	"log"

	"answersheet/internal/app"
)

func main() {
	application, err := app.NewApp(context.Background())
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}
	defer application.Close()

	if err := application.Run(context.Background()); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
