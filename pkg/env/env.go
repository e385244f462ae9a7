package env

import (
	"os"

	"github.com/joho/godotenv"
)

// environment holds the current environment value retrieved from the ENVIRONMENT variable.
var environment = os.Getenv("ENVIRONMENT")

// IsDevelopment returns true if the current environment is set to "development".
func IsDevelopment() bool {
	return environment == "development"
}

// IsProduction returns true if the current environment is set to "production".
func IsProduction() bool {
	return environment == "production"
}

// IsRemote returns true if the application is running in either "production" or "development" mode.
func IsRemote() bool {
	return IsProduction() || IsDevelopment()
}

// IsLocal returns true when ENVIRONMENT is "local" or unset.
func IsLocal() bool {
	return environment == "local" || environment == ""
}

func GetEnvironment() string {
	if environment == "" {
		return "local"
	}
	return environment
}

// Load reads the given dotenv files (".env" when none are given) into the process
// environment without overriding variables that are already set. Missing files
// are not an error. ENVIRONMENT is re-read afterwards so a value coming from the
// file is honoured.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	environment = os.Getenv("ENVIRONMENT")
	return nil
}
