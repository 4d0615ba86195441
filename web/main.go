package main

import (
	"flag"
	"log"
	"os"

	"github.com/df07/go-light-estimator/pkg/config"
	"github.com/df07/go-light-estimator/pkg/runstore"
	"github.com/df07/go-light-estimator/web/server"
)

func main() {
	// Parse command line flags
	port := flag.Int("port", 8080, "Port to serve on")
	configPath := flag.String("config", "", "JSON configuration file")
	dbPath := flag.String("db", "", "Record solves in this sqlite database")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Printf("Error loading config: %v", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Create and start web server
	webServer := server.NewServer(*port, cfg)
	if *dbPath != "" {
		store, err := runstore.Open(*dbPath)
		if err != nil {
			log.Printf("Error opening run database: %v", err)
			os.Exit(1)
		}
		defer store.Close()
		webServer.WithStore(store)
	}

	log.Printf("Light Estimator Web Server")
	log.Printf("Visit http://localhost:%d to start solving", *port)

	if err := webServer.Start(); err != nil {
		log.Printf("Error starting server: %v", err)
		os.Exit(1)
	}
}
