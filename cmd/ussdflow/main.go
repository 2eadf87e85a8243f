package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Optional .env for local development; deployed environments inject
	// real environment variables.
	_ = godotenv.Load()
	Execute()
}
