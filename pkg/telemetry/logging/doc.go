// Package logging builds the service's structured logger.
//
// It configures a log/slog handler from configuration:
//   - JSON or text output
//   - level filtering (debug, info, warn, error)
//   - optional source locations
//   - redaction of secret-bearing attributes (password, token, ...)
//   - request ids carried on the context
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, "req-123")
//	logger.InfoContext(ctx, "policies replaced", "count", 3)
//	// {"level":"INFO","msg":"policies replaced","count":3,"request_id":"req-123"}
package logging
