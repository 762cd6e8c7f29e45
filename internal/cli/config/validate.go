package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

var (
	validOutputs    = []string{"auto", "text", "markdown", "json"}
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"text", "json"}
)

// Validate checks the loaded values and parses as_of.
func (c *Config) Validate() error {
	if c.Snapshot == "" {
		return fmt.Errorf("snapshot is required")
	}
	if !slices.Contains(validOutputs, c.OutputFormat) {
		return fmt.Errorf("invalid output %q: expected one of %s", c.OutputFormat, strings.Join(validOutputs, ", "))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		return fmt.Errorf("invalid log_level %q: expected one of %s", c.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if !slices.Contains(validLogFormats, c.LogFormat) {
		return fmt.Errorf("invalid log_format %q: expected one of %s", c.LogFormat, strings.Join(validLogFormats, ", "))
	}
	if c.UI.Port < 0 || c.UI.Port > 65535 {
		return fmt.Errorf("invalid ui.port %d", c.UI.Port)
	}

	c.asOf = time.Time{}
	if c.AsOf != "" {
		t, err := parseAsOf(c.AsOf)
		if err != nil {
			return fmt.Errorf("invalid as_of %q: expected YYYY-MM-DD or RFC3339", c.AsOf)
		}
		c.asOf = t
	}
	return nil
}

func parseAsOf(s string) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
