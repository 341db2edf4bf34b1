// Package logger emits one JSON line per event: a snake_case action
// name, an optional acting user, and free-form details. Request bodies
// logged through the summary helpers have credential fields redacted.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

type entry struct {
	Time    string                 `json:"time"`
	Level   LogLevel               `json:"level"`
	Action  string                 `json:"action"`
	UserID  string                 `json:"user_id,omitempty"`
	Error   string                 `json:"error,omitempty"`
	Caller  string                 `json:"caller,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type Logger struct {
	mu       sync.Mutex
	output   io.Writer
	colorize bool
}

var global *Logger

func New(output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}
	return &Logger{output: output, colorize: output == os.Stdout}
}

func Init() {
	global = New(os.Stdout)
}

var levelColors = map[LogLevel]string{
	LevelWarn:  "\033[33m",
	LevelError: "\033[31m",
}

func (l *Logger) write(level LogLevel, action, userID string, details map[string]interface{}, err error) {
	e := entry{
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Level:   level,
		Action:  action,
		UserID:  userID,
		Caller:  callSite(),
		Details: details,
	}
	if err != nil {
		e.Error = err.Error()
	}

	line, marshalErr := json.Marshal(e)
	if marshalErr != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if color, ok := levelColors[level]; ok && l.colorize {
		fmt.Fprintf(l.output, "%s%s\033[0m\n", color, line)
		return
	}
	fmt.Fprintf(l.output, "%s\n", line)
}

// callSite names the origin of the logging call, trimmed to the last
// two path elements.
func callSite() string {
	_, file, line, ok := runtime.Caller(3)
	if !ok {
		return ""
	}
	parts := strings.Split(file, "/")
	if len(parts) > 2 {
		parts = parts[len(parts)-2:]
	}
	return fmt.Sprintf("%s:%d", strings.Join(parts, "/"), line)
}

func Info(action string, details map[string]interface{}) {
	if global != nil {
		global.write(LevelInfo, action, "", details, nil)
	}
}

func InfoWithUser(userID string, action string, details map[string]interface{}) {
	if global != nil {
		global.write(LevelInfo, action, userID, details, nil)
	}
}

func Warn(action string, details map[string]interface{}) {
	if global != nil {
		global.write(LevelWarn, action, "", details, nil)
	}
}

func WarnWithUser(userID string, action string, details map[string]interface{}) {
	if global != nil {
		global.write(LevelWarn, action, userID, details, nil)
	}
}

func Error(action string, err error, details map[string]interface{}) {
	if global != nil {
		global.write(LevelError, action, "", details, err)
	}
}

func ErrorWithUser(userID string, action string, err error, details map[string]interface{}) {
	if global != nil {
		global.write(LevelError, action, userID, details, err)
	}
}

func GetUserIDFromContext(c *fiber.Ctx) *string {
	if id, ok := c.Locals("userID").(string); ok {
		return &id
	}
	return nil
}

// Any key containing one of these substrings is redacted, which also
// catches variants like resetToken or currentPassword.
var sensitiveKeys = []string{"password", "secret", "token"}

func redact(fields map[string]interface{}) {
	for key := range fields {
		lower := strings.ToLower(key)
		for _, needle := range sensitiveKeys {
			if strings.Contains(lower, needle) {
				fields[key] = "[REDACTED]"
				break
			}
		}
	}
}

const bodySummaryLimit = 1024

func GetRequestBodySummary(c *fiber.Ctx) string {
	body := c.Body()
	switch {
	case len(body) == 0:
		return "empty"
	case len(body) > bodySummaryLimit:
		return fmt.Sprintf("large (%d bytes)", len(body))
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return fmt.Sprintf("binary (%d bytes)", len(body))
	}
	redact(fields)
	summary, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf("binary (%d bytes)", len(body))
	}
	if len(summary) > 200 {
		return string(summary[:200]) + "..."
	}
	return string(summary)
}

func GetResponseSizeSummary(c *fiber.Ctx) string {
	body := c.Response().Body()
	switch {
	case len(body) == 0:
		return "empty"
	case len(body) > bodySummaryLimit:
		return fmt.Sprintf("large (%d bytes)", len(body))
	default:
		return fmt.Sprintf("small (%d bytes)", len(body))
	}
}

func GenerateRequestID() string {
	return uuid.New().String()
}
