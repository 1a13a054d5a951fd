package config

import (
	"bufio"
	"os"
	"strings"
)

// loadEnvFiles applies KEY=VALUE pairs from the given files when they exist.
// Variables already present in the process environment are left alone.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			key, val, ok := parseEnvLine(scanner.Text())
			if !ok {
				continue
			}
			if _, set := os.LookupEnv(key); set {
				continue
			}
			_ = os.Setenv(key, val)
		}
		_ = f.Close()
	}
}

func parseEnvLine(raw string) (string, string, bool) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	line = strings.TrimPrefix(line, "export ")
	key, val, found := strings.Cut(line, "=")
	if !found {
		return "", "", false
	}
	key = strings.TrimSpace(key)
	val = strings.TrimSpace(val)
	switch {
	case len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"':
		val = val[1 : len(val)-1]
	case len(val) >= 2 && val[0] == '\'' && val[len(val)-1] == '\'':
		val = val[1 : len(val)-1]
	default:
		if i := strings.Index(val, " #"); i >= 0 {
			val = strings.TrimSpace(val[:i])
		}
	}
	return key, val, key != ""
}
