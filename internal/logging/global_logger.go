package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/linkmark/internal/config"
	"github.com/router-for-me/linkmark/internal/util"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	setupOnce      sync.Once
	writerMu       sync.Mutex
	logWriter      *lumberjack.Logger
	ginInfoWriter  *io.PipeWriter
	ginErrorWriter *io.PipeWriter
	cleaner        *dirCleaner
)

// LogFormatter renders entries as
// [2026-03-02 10:14:04] [1f0c9a2e] [info ] [manager.go:88] signed in store=file
type LogFormatter struct{}

// logFieldOrder lists the fields printed after the message, in order.
var logFieldOrder = []string{"component", "state", "store", "source", "category", "status", "attempt", "error"}

// Format renders a single log entry.
func (m *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	buffer := entry.Buffer
	if buffer == nil {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	reqID := "--------"
	if id, ok := entry.Data["request_id"].(string); ok && id != "" {
		reqID = ShortRequestID(id)
	}

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	var fields []string
	for _, k := range logFieldOrder {
		if v, ok := entry.Data[k]; ok {
			fields = append(fields, fmt.Sprintf("%s=%v", k, v))
		}
	}
	fieldsStr := ""
	if len(fields) > 0 {
		fieldsStr = " " + strings.Join(fields, " ")
	}

	if entry.Caller != nil {
		_, _ = fmt.Fprintf(buffer, "[%s] [%s] [%-5s] [%s:%d] %s%s\n", timestamp, reqID, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message, fieldsStr)
	} else {
		_, _ = fmt.Fprintf(buffer, "[%s] [%s] [%-5s] %s%s\n", timestamp, reqID, level, message, fieldsStr)
	}
	return buffer.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance and Gin writers.
// It is safe to call multiple times; initialization happens only once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})

		ginInfoWriter = log.StandardLogger().Writer()
		gin.DefaultWriter = ginInfoWriter
		ginErrorWriter = log.StandardLogger().WriterLevel(log.ErrorLevel)
		gin.DefaultErrorWriter = ginErrorWriter
		gin.DebugPrintFunc = func(format string, values ...interface{}) {
			log.StandardLogger().Infof(strings.TrimRight(format, "\r\n"), values...)
		}

		log.RegisterExitHandler(closeLogOutputs)
	})
}

// ResolveLogDirectory returns $WRITABLE_PATH/logs when set, otherwise {auth-dir}/logs.
func ResolveLogDirectory(cfg *config.Config) string {
	if base := util.WritablePath(); base != "" {
		return filepath.Join(base, "logs")
	}
	if cfg == nil {
		return "logs"
	}
	authDir, err := util.ResolveAuthDir(cfg.AuthDir)
	if err != nil || authDir == "" {
		log.Warnf("Failed to resolve auth-dir %q for log directory: %v", cfg.AuthDir, err)
		return "logs"
	}
	return filepath.Join(authDir, "logs")
}

// ConfigureLogOutput switches the global log destination between a rotating
// linkmark.log file and console. console is used only when file logging is off;
// the popup passes io.Discard so log lines do not tear the terminal UI.
func ConfigureLogOutput(cfg *config.Config, console io.Writer) error {
	SetupBaseLogger()
	if console == nil {
		console = os.Stdout
	}

	writerMu.Lock()
	defer writerMu.Unlock()

	logDir := ResolveLogDirectory(cfg)
	activePath := ""
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if cfg.LoggingToFile {
		if err := os.MkdirAll(logDir, 0o755); err != nil {
			return fmt.Errorf("logging: failed to create log directory: %w", err)
		}
		activePath = filepath.Join(logDir, "linkmark.log")
		logWriter = &lumberjack.Logger{
			Filename:   activePath,
			MaxSize:    5,
			MaxBackups: 3,
		}
		log.SetOutput(logWriter)
	} else {
		log.SetOutput(console)
	}

	if cleaner != nil {
		cleaner.stop()
		cleaner = nil
	}
	if cfg.LogsMaxTotalSizeMB > 0 {
		cleaner = startDirCleaner(logDir, int64(cfg.LogsMaxTotalSizeMB)<<20, activePath)
	}
	return nil
}

func closeLogOutputs() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if cleaner != nil {
		cleaner.stop()
		cleaner = nil
	}
	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
	if ginInfoWriter != nil {
		_ = ginInfoWriter.Close()
		ginInfoWriter = nil
	}
	if ginErrorWriter != nil {
		_ = ginErrorWriter.Close()
		ginErrorWriter = nil
	}
}
