package main

import (
	"flag"
	"log"

	"github.com/peerclass/asset-service/internal/gateway/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.Parse()

	gateway, err := app.New(configPath)
	if err != nil {
		log.Fatalf("Failed to initialize gateway: %v", err)
	}

	if err := gateway.Run(); err != nil {
		log.Fatalf("Gateway error: %v", err)
	}
}
