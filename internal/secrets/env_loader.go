package secrets

import (
	"fmt"
	"os"
	"strings"
)

// fileSuffix marks a variable holding the path of a file with the secret,
// as mounted by Docker and Kubernetes secret volumes.
const fileSuffix = "_FILE"

// EnvLoader returns a Loader that reads the named environment variables.
// When KEY is unset but KEY_FILE is, the value is read from that file.
// Surrounding whitespace is trimmed and blank values are omitted. An
// unreadable KEY_FILE fails the load, so a reload keeps the previous values.
func EnvLoader(keys ...string) Loader {
	return func() (map[string]string, error) {
		vals := make(map[string]string, len(keys))
		for _, k := range keys {
			v, err := lookupEnv(k)
			if err != nil {
				return nil, err
			}
			if v != "" {
				vals[k] = v
			}
		}
		return vals, nil
	}
}

func lookupEnv(key string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v, nil
	}
	path := strings.TrimSpace(os.Getenv(key + fileSuffix))
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s%s: %w", key, fileSuffix, err)
	}
	return strings.TrimSpace(string(data)), nil
}
