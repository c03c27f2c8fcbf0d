package middleware

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	slowRequestThreshold = 500 * time.Millisecond
	errorStatusFloor     = 400
)

// Logger returns gin's request logger restricted to slow or failed requests.
func Logger() gin.HandlerFunc {
	return LoggerTo(os.Stdout, slowRequestThreshold)
}

func LoggerTo(out io.Writer, slow time.Duration) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		Output:    out,
		Formatter: filteredFormatter(slow),
	})
}

// filteredFormatter renders "15:04:05 | 200 | 1.23ms | GET /path" and drops fast, successful requests.
func filteredFormatter(slow time.Duration) gin.LogFormatter {
	return func(p gin.LogFormatterParams) string {
		if p.StatusCode < errorStatusFloor && p.Latency < slow {
			return ""
		}
		line := fmt.Sprintf("%s | %d | %v | %s %s",
			p.TimeStamp.Format("15:04:05"), p.StatusCode, p.Latency, p.Method, p.Path)
		if msg := strings.TrimSpace(p.ErrorMessage); msg != "" {
			line += " | " + msg
		}
		return line + "\n"
	}
}
