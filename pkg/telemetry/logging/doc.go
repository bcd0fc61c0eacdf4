// Package logging builds conduit's log/slog logger.
//
// New returns a plain *slog.Logger whose handler redacts credentials before
// they are written and adds request_id, provider and model from the record's
// context:
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging, os.Stderr))
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger)
//
//	ctx = logging.WithRequestID(ctx, id)
//	slog.InfoContext(ctx, "completion finished",
//	    "api_key", key, // logged as ***
//	)
//
// # Redaction
//
//   - values under keys such as api_key, authorization or secret become ***
//   - sk-... keys anywhere in a string become sk-***
//   - Bearer tokens become Bearer ***
//   - key=/token= query parameters are masked
//
// Error values are rendered and scanned too, since vendor error bodies can
// echo request headers.
package logging
