package logs

import (
	"encoding/json"
	"strings"

	"vidtranslate/internal/logging"
)

var levelRank = map[string]int{
	"debug": 0,
	"info":  1,
	"warn":  2,
	"error": 3,
}

// Filter selects daemon log lines by job and minimum level. It understands
// both the JSON and console log formats. The zero value matches everything.
type Filter struct {
	JobID    string
	MinLevel string
}

func (f Filter) empty() bool {
	return strings.TrimSpace(f.JobID) == "" && f.minRank() == 0
}

func (f Filter) minRank() int {
	return levelRank[strings.ToLower(strings.TrimSpace(f.MinLevel))]
}

// Match reports whether line passes the filter.
func (f Filter) Match(line string) bool {
	if f.empty() {
		return true
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}
	level, jobID, isJSON := parseLine(trimmed)

	if rank, ok := levelRank[level]; ok && rank < f.minRank() {
		return false
	}

	want := strings.TrimSpace(f.JobID)
	if want == "" {
		return true
	}
	if isJSON {
		return jobID == want || strings.HasPrefix(jobID, want)
	}
	return strings.Contains(trimmed, "["+logging.ShortJobID(want)+"]")
}

func parseLine(line string) (level, jobID string, isJSON bool) {
	if strings.HasPrefix(line, "{") {
		var record map[string]any
		if err := json.Unmarshal([]byte(line), &record); err == nil {
			level, _ = record["level"].(string)
			jobID, _ = record[logging.FieldJobID].(string)
			return strings.ToLower(level), jobID, true
		}
	}
	fields := strings.Fields(line)
	if len(fields) > 1 {
		level = strings.ToLower(fields[1])
	}
	return level, "", false
}
