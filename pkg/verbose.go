package sumcache

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Verbose levels
const (
	LevelSilent   = -1 // warnings and errors only
	LevelInfo     = 0
	LevelDebug    = 1
	LevelDetailed = 2
	LevelTrace    = 3
)

var globalVerboseLevel int
var debugFlags map[string]bool

var (
	logMu     sync.Mutex
	logOutput io.Writer = os.Stderr
	logColour           = isTerminal(os.Stderr)
)

const (
	colourReset  = "\033[0m"
	colourCyan   = "\033[36m"
	colourGreen  = "\033[32m"
	colourYellow = "\033[33m"
	colourRed    = "\033[31m"
)

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// SetLogOutput redirects log output. Colour is enabled only when w is a terminal.
func SetLogOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logOutput = w
	logColour = isTerminal(w)
}

// SetVerboseLevel sets the global verbose level
func SetVerboseLevel(level int) {
	globalVerboseLevel = level
}

// GetVerboseLevel returns the current verbose level
func GetVerboseLevel() int {
	return globalVerboseLevel
}

func writeLog(tag, colour, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(msg, "\n") {
		msg += "\n"
	}

	logMu.Lock()
	defer logMu.Unlock()
	if logColour {
		fmt.Fprintf(logOutput, "%s[%s]%s %s", colour, tag, colourReset, msg)
		return
	}
	fmt.Fprintf(logOutput, "[%s] %s", tag, msg)
}

// VerboseEnter logs function entry at level 3+ and returns a defer function for exit logging
func VerboseEnter() func() {
	if globalVerboseLevel < LevelTrace {
		return func() {}
	}

	pc, _, _, ok := runtime.Caller(1)
	if !ok {
		return func() {}
	}

	funcName := runtime.FuncForPC(pc).Name()
	if idx := strings.LastIndex(funcName, "."); idx != -1 {
		funcName = funcName[idx+1:]
	}

	writeLog("TRACE", colourCyan, "Entering function: %s", funcName)

	return func() {
		writeLog("TRACE", colourCyan, "Exiting function: %s", funcName)
	}
}

// VerboseLog logs a message at the specified verbose level
func VerboseLog(level int, format string, args ...interface{}) {
	if globalVerboseLevel >= level {
		writeLog(fmt.Sprintf("VERBOSE-%d", level), colourCyan, format, args...)
	}
}

// Infof logs at the default level; suppressed in silent mode
func Infof(format string, args ...interface{}) {
	if globalVerboseLevel >= LevelInfo {
		writeLog("INFO", colourGreen, format, args...)
	}
}

// Warnf always logs
func Warnf(format string, args ...interface{}) {
	writeLog("WARNING", colourYellow, format, args...)
}

// Errorf always logs
func Errorf(format string, args ...interface{}) {
	writeLog("ERROR", colourRed, format, args...)
}

// SetDebugFlags sets the debug flags from a comma-separated string
// Supports both simple flags ("flush,decide") and key:value format ("flush:true,decide:false")
func SetDebugFlags(flagsStr string) {
	debugFlags = make(map[string]bool)
	if flagsStr == "" {
		return
	}

	flags := strings.Split(flagsStr, ",")
	for _, flag := range flags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}

		parts := strings.SplitN(flag, ":", 2)
		flagName := strings.ToLower(parts[0])
		flagValue := true

		if len(parts) > 1 {
			switch strings.ToLower(parts[1]) {
			case "true", "1", "yes", "on":
				flagValue = true
			case "false", "0", "no", "off":
				flagValue = false
			default:
				flagValue = true
			}
		}

		debugFlags[flagName] = flagValue
	}
}

// IsDebugEnabled returns true if the specified debug flag is enabled
func IsDebugEnabled(flag string) bool {
	if debugFlags == nil {
		return false
	}
	return debugFlags[strings.ToLower(flag)]
}
