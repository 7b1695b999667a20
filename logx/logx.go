package logx

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
)

const (
	defaultLogDir     = "./logs"
	defaultLogFile    = "walletd.log"
	defaultMaxSizeMB  = 50
	defaultMaxAgeDays = 7
)

// Options controls where and how much the process logs.
type Options struct {
	File       string
	MaxSizeMB  int
	MaxAgeDays int
	Stdout     bool
	Level      string
}

var levels = map[string]int{"error": 0, "warn": 1, "info": 2, "debug": 3}

var (
	mu       sync.RWMutex
	logger   = log.New(os.Stderr, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	rotator  *lumberjack.Logger
	maxLevel = levels["info"]
)

// Init points the package logger at a rotating file. LOGFILE,
// LOGFILE_MAX_SIZE_MB and LOGFILE_MAX_AGE_DAYS override opts when set.
func Init(opts Options) {
	filename := opts.File
	if filename == "" {
		filename = filepath.Join(defaultLogDir, defaultLogFile)
	}
	if logFile := os.Getenv("LOGFILE"); logFile != "" {
		filename = filepath.Join(defaultLogDir, logFile)
	}

	r := &lumberjack.Logger{
		Filename: filename,
		MaxSize:  envInt("LOGFILE_MAX_SIZE_MB", opts.MaxSizeMB, defaultMaxSizeMB), // megabytes
		MaxAge:   envInt("LOGFILE_MAX_AGE_DAYS", opts.MaxAgeDays, defaultMaxAgeDays), // days
	}

	var out io.Writer = r
	if opts.Stdout {
		out = io.MultiWriter(r, os.Stdout)
	}

	mu.Lock()
	defer mu.Unlock()
	if rotator != nil {
		_ = rotator.Close()
	}
	rotator = r
	logger = log.New(out, "", log.Ldate|log.Ltime|log.Lmicroseconds)
	setLevel(opts.Level)
}

// SetOutput replaces the destination, mostly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger.SetOutput(w)
}

// SetLevel ignores unknown names.
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	setLevel(level)
}

func setLevel(level string) {
	if l, ok := levels[strings.ToLower(level)]; ok {
		maxLevel = l
	}
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

func envInt(name string, configured, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			panic("Invalid value for " + name + ": " + err.Error())
		}
		return v
	}
	if configured > 0 {
		return configured
	}
	return fallback
}

func write(level, color, category string, content []interface{}) {
	mu.RLock()
	defer mu.RUnlock()
	if levels[level] > maxLevel {
		return
	}
	message := fmt.Sprint(content...)
	coloredCategory := fmt.Sprintf("%s[%s][%s]%s", color, strings.ToUpper(level), category, ColorReset)
	logger.Printf("%s: %s", coloredCategory, message)
}

func Info(category string, content ...interface{}) {
	write("info", ColorGreen, category, content)
}

func Error(category string, content ...interface{}) {
	write("error", ColorRed, category, content)
}

func Warn(category string, content ...interface{}) {
	write("warn", ColorYellow, category, content)
}

func Debug(category string, content ...interface{}) {
	write("debug", ColorBlue, category, content)
}

// Errorf logs an error message and returns a formatted error
func Errorf(format string, args ...interface{}) error {
	err := fmt.Errorf(format, args...)
	Error("ERROR", err.Error())
	return err
}
