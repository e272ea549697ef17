package observability

import (
	"fmt"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
)

// Server log profiles accepted in logging.profile.
const (
	ProfileStructured = "structured"
	ProfileSimple     = "simple"
)

var (
	// CLILogger is used by one-shot commands.
	CLILogger *logging.Logger

	// ServerLogger is used by serve and every long-running component.
	ServerLogger *logging.Logger
)

// InitCLILogger installs the SIMPLE-profile CLI logger; verbose enables
// debug output.
func InitCLILogger(serviceName string, verbose bool) {
	logger, err := logging.NewCLI(serviceName)
	if err != nil {
		fatal("Failed to initialize CLI logger", err)
	}
	if verbose {
		logger.SetLevel(logging.DEBUG)
	}
	CLILogger = logger
}

// InitServerLogger installs ServerLogger, exiting on failure.
func InitServerLogger(serviceName, logLevel, profile string, namespace ...string) {
	logger, err := NewServerLogger(serviceName, logLevel, profile, namespace...)
	if err != nil {
		fatal("Failed to initialize server logger", err)
	}
	ServerLogger = logger
}

// NewServerLogger builds a server logger without installing it. The
// simple profile writes console lines; anything else writes JSON to
// stderr with the correlation middleware.
func NewServerLogger(serviceName, logLevel, profile string, namespace ...string) (*logging.Logger, error) {
	level, _ := ParseLevel(logLevel)
	static := map[string]any{}
	if len(namespace) > 0 && namespace[0] != "" {
		static["namespace"] = namespace[0]
	}

	if strings.EqualFold(profile, ProfileSimple) {
		return logging.New(&logging.LoggerConfig{
			Profile:      logging.ProfileSimple,
			DefaultLevel: level,
			Service:      serviceName,
			StaticFields: static,
			Sinks:        []logging.SinkConfig{stderrSink("console")},
			EnableCaller: true,
		})
	}

	return logging.New(&logging.LoggerConfig{
		Profile:      logging.ProfileStructured,
		DefaultLevel: level,
		Service:      serviceName,
		Environment:  "production",
		StaticFields: static,
		Middleware: []logging.MiddlewareConfig{
			{Name: "correlation", Enabled: true, Order: 100, Config: map[string]any{}},
		},
		Sinks:            []logging.SinkConfig{stderrSink("json")},
		EnableCaller:     true,
		EnableStacktrace: true,
	})
}

func stderrSink(format string) logging.SinkConfig {
	return logging.SinkConfig{
		Type:    "console",
		Format:  format,
		Console: &logging.ConsoleSinkConfig{Stream: "stderr", Colorize: false},
	}
}

// ParseLevel maps a config level to the logger's severity name. Unknown
// values map to INFO and report false.
func ParseLevel(level string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return "TRACE", true
	case "debug":
		return "DEBUG", true
	case "info", "":
		return "INFO", true
	case "warn", "warning":
		return "WARN", true
	case "error":
		return "ERROR", true
	default:
		return "INFO", false
	}
}

// fatal reports a logger setup failure on stderr and exits with the
// config-invalid code, since no logger exists yet.
func fatal(msg string, err error) {
	code := foundry.ExitConfigInvalid
	fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	if info, ok := foundry.GetExitCodeInfo(code); ok {
		fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", info.Code, info.Name, info.Description)
		os.Exit(info.Code)
	}
	os.Exit(int(code))
}
