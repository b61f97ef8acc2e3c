// Package logging configures log/slog for threadgate.
//
// # Usage
//
//	logger, err := logging.Setup(cfg.Telemetry.Logging, os.Stderr)
//	if err != nil {
//	    return err
//	}
//	logger.Info("Proxy starting", "listen", cfg.Proxy.ListenAddress)
//
// Components derive their own loggers from the default:
//
//	log := slog.Default().With("component", "relay")
//
// Request handlers attach the request id and thread alias to the context
// and recover them with FromContext:
//
//	ctx = logging.WithAlias(ctx, "conv-42")
//	logging.FromContext(ctx, log).Info("Recovered thread")
//
// # Redaction
//
// The handler's ReplaceAttr hook masks:
//
//   - values under keys naming a secret (api_key, token, authorization, ...)
//   - OpenAI style keys: sk-abc123xyz → sk-***
//   - Google API keys: AIzaSy... → AIza***
//   - bearer tokens: Bearer eyJ... → Bearer ***
//
// Custom patterns from telemetry.logging.redact_patterns are applied after
// the built-in ones.
package logging
