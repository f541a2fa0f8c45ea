// Package main — точка входа signaling-service (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/psds-microservice/signaling-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
