package loader

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// EnvLoader reads prefixed environment variables.
type EnvLoader struct {
	prefix string // Environment variable prefix (e.g., "BROADCASTER_")
	lookup func(string) (string, bool)
}

// NewEnvLoader creates a new environment variable loader.
// The prefix should include the trailing underscore (e.g., "BROADCASTER_").
func NewEnvLoader(prefix string) *EnvLoader {
	return NewEnvLoaderWithLookup(prefix, os.LookupEnv)
}

// NewEnvLoaderWithLookup creates a loader that reads variables through
// lookup instead of the process environment.
func NewEnvLoaderWithLookup(prefix string, lookup func(string) (string, bool)) *EnvLoader {
	return &EnvLoader{
		prefix: prefix,
		lookup: lookup,
	}
}

// Name returns the full variable name for key, e.g. "LOG_LEVEL" becomes
// "BROADCASTER_LOG_LEVEL".
func (l *EnvLoader) Name(key string) string {
	return l.prefix + key
}

// String returns the value of the variable for key and whether it is set.
// Empty values count as set.
func (l *EnvLoader) String(key string) (string, bool) {
	return l.lookup(l.Name(key))
}

// Bool parses the variable for key as a boolean.
func (l *EnvLoader) Bool(key string) (value, ok bool, err error) {
	s, ok := l.String(key)
	if !ok {
		return false, false, nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "on", "1":
		return true, true, nil
	case "false", "no", "off", "0", "":
		return false, true, nil
	}
	return false, true, fmt.Errorf("%s: invalid boolean %q", l.Name(key), s)
}

// IntList parses the variable for key as a comma separated list of
// integers. An empty value yields an empty, non-nil list.
func (l *EnvLoader) IntList(key string) ([]int, bool, error) {
	s, ok := l.String(key)
	if !ok {
		return nil, false, nil
	}
	values := []int{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, true, fmt.Errorf("%s: invalid integer %q", l.Name(key), part)
		}
		values = append(values, n)
	}
	return values, true, nil
}
