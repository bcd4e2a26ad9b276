package utils

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnv loads the given dotenv files (".env" when none) into the process
// environment. Variables already set win. Missing files are skipped and the
// paths that were actually read are returned.
func LoadEnv(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	var loaded []string
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}
