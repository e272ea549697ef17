package cmd

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	apperrors "github.com/hunterino/MiniKeybaord/internal/errors"
	"github.com/hunterino/MiniKeybaord/internal/observability"
)

// ExitCodeFor maps a command error to a semantic foundry exit code.
func ExitCodeFor(err error) foundry.ExitCode {
	var envelope *errors.ErrorEnvelope
	if !stderrors.As(err, &envelope) {
		return foundry.ExitFailure
	}
	switch envelope.Code {
	case apperrors.CodeConfigInvalid:
		return foundry.ExitConfigInvalid
	case apperrors.CodeServiceUnavailable:
		return foundry.ExitExternalServiceUnavailable
	default:
		return foundry.ExitFailure
	}
}

// ExitOnError reports err from a failed command and exits with the code
// ExitCodeFor picks.
func ExitOnError(err error) {
	ExitWithCode(observability.CLILogger, ExitCodeFor(err), "Command failed", err)
}

// ExitWithCode logs err with the exit code metadata, then exits. A nil
// logger writes to stderr instead.
func ExitWithCode(logger *logging.Logger, exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}

	if logger == nil {
		writeExitStderr(info.Code, info.Name, info.Description, msg, err)
		os.Exit(info.Code)
	}

	fields := []zap.Field{
		zap.Int("exit_code", info.Code),
		zap.String("exit_name", info.Name),
		zap.String("exit_category", info.Category),
	}
	var envelope *errors.ErrorEnvelope
	if stderrors.As(err, &envelope) {
		fields = append(fields,
			zap.String("error_code", envelope.Code),
			zap.String("error_message", envelope.Message),
			zap.String("correlation_id", envelope.CorrelationID),
		)
		if envelope.Context != nil {
			fields = append(fields, zap.Any("error_context", envelope.Context))
		}
		if original, ok := envelope.Original.(error); ok {
			err = original
		}
	}
	fields = append(fields, zap.Error(err))
	logger.Error(msg, fields...)

	os.Exit(info.Code)
}

// ExitWithCodeStderr is for failures before the logger exists.
func ExitWithCodeStderr(exitCode foundry.ExitCode, msg string, err error) {
	info, ok := foundry.GetExitCodeInfo(exitCode)
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v (exit code: %d)\n", msg, err, exitCode)
		os.Exit(int(exitCode))
	}
	writeExitStderr(info.Code, info.Name, info.Description, msg, err)
	os.Exit(info.Code)
}

func writeExitStderr(code int, name, description, msg string, err error) {
	var envelope *errors.ErrorEnvelope
	switch {
	case err == nil:
		fmt.Fprintf(os.Stderr, "FATAL: %s\n", msg)
	case stderrors.As(err, &envelope):
		fmt.Fprintf(os.Stderr, "FATAL: %s [%s]: %s (correlation: %s)\n",
			msg, envelope.Code, envelope.Message, envelope.CorrelationID)
	default:
		fmt.Fprintf(os.Stderr, "FATAL: %s: %v\n", msg, err)
	}
	fmt.Fprintf(os.Stderr, "Exit Code: %d (%s) - %s\n", code, name, description)
}
