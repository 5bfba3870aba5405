package record

import (
	"strings"
)

var flatStripper = strings.NewReplacer("{", "", "}", "", `"`, "")

// Fields splits a flat `key:value,key:value` line into a map. Braces and
// double quotes are ignored; pairs that do not split into exactly two parts
// on ':' are dropped.
func Fields(line string) map[string]string {
	line = flatStripper.Replace(line)
	out := make(map[string]string, 12)
	for _, item := range strings.Split(line, ",") {
		parts := strings.Split(item, ":")
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		out[key] = strings.TrimSpace(parts[1])
	}
	return out
}
