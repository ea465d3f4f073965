package main

import (
	"flag"
	"log"

	"github.com/peerclass/asset-service/internal/asset/app"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.Parse()

	node, err := app.New(configPath)
	if err != nil {
		log.Fatalf("Failed to initialize asset node: %v", err)
	}

	if err := node.Run(); err != nil {
		log.Fatalf("Asset node error: %v", err)
	}
}
