package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// buildLogEntry wraps one log line in the Loki push format.
func buildLogEntry(level, message string, attrs []slog.Attr) map[string]any {
	job := os.Getenv("APP_NAME")
	if job == "" {
		job = "product-service"
	}

	return map[string]any{
		"streams": []map[string]any{
			{
				"stream": map[string]string{
					"level": level,
					"job":   job,
				},
				"values": [][]string{
					{
						strconv.FormatInt(time.Now().UnixNano(), 10),
						buildLogLine(level, message, attrs),
					},
				},
			},
		},
	}
}

func buildLogLine(level, message string, attrs []slog.Attr) string {
	logData := map[string]any{
		"level":   level,
		"message": message,
		"time":    time.Now().Format(time.RFC3339),
	}
	for _, attr := range attrs {
		logData[attr.Key] = attr.Value.Resolve().Any()
	}

	jsonBytes, _ := json.Marshal(logData)
	return string(jsonBytes)
}
