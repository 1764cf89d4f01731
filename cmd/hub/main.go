package main

import (
	"log"

	"github.com/yashkhare05/Uptime/internal/app"
)

func main() {
	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ uptime hub stopped with error: %v", err)
	}
}
