package config

import (
	"os"

	"github.com/joho/godotenv"
)

// Functions

// LoadEnv looks for an .env file in the working
// directory of lark and merges credential values
// defined there into the supplied config. Real
// environment variables win over .env entries so
// that deployments can override the file. A missing
// .env file is not an error.
func LoadEnv(conf *Config) {

	// Load environment file, if present.
	_ = godotenv.Load(".env")

	if host := os.Getenv("LARK_HOST"); host != "" {
		conf.Client.Host = host
	}

	if port := os.Getenv("LARK_PORT"); port != "" {
		conf.Client.Port = port
	}

	if username := os.Getenv("LARK_USERNAME"); username != "" {
		conf.Client.Username = username
	}

	if password := os.Getenv("LARK_PASSWORD"); password != "" {
		conf.Client.Password = password
	}
}
