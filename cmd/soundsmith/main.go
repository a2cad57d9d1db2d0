package main

import (
	"log"

	"github.com/ManuelReschke/SoundSmith/internal/pkg/server"
)

func main() {
	log.Fatal(server.Run())
}
