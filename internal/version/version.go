package version

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Version is overridden at build time with -ldflags "-X ...version.Version=1.2.3".
var Version = "dev"

// Load returns the version recorded in the file at path when it holds a
// valid release number, and Version otherwise.
func Load(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return Version
	}

	v := strings.TrimPrefix(strings.TrimSpace(string(data)), "v")
	if _, err := ExtractMajorVersion(v); err != nil {
		return Version
	}
	return v
}

// Release formats the version the way Sentry groups releases.
func Release(name, v string) string {
	return name + "@" + v
}

func ExtractMajorVersion(version string) (int, error) {
	if version == "" {
		return 0, fmt.Errorf("empty version string")
	}

	parts := strings.Split(version, ".")
	if len(parts) > 3 {
		return 0, fmt.Errorf("invalid version format")
	}
	numbers := make([]int, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid version component %q: %v", part, err)
		}
		if n < 0 {
			return 0, fmt.Errorf("version component cannot be negative")
		}
		numbers[i] = n
	}

	return numbers[0], nil
}
