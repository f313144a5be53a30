// Command tutor is the terminal client for the Socratic tutor.
package main

import (
	"github.com/ashureev/socratic-tutor/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cli.Execute()
}
