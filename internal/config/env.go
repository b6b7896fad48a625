package config

import (
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads environment variables from a .env file when one is present.
// A missing file is not an error; the process environment always wins.
func LoadEnv() error {
	if _, err := os.Stat(".env"); os.IsNotExist(err) {
		return nil
	}

	return godotenv.Load(".env")
}
