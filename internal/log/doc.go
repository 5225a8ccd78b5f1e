// Package log provides slog loggers that keep secrets out of crawl logs.
//
// Crawl logs are full of URLs, and URLs sometimes carry credentials: a
// proxy address with a password, a signed download link, a page reached
// through a token parameter. SecureHandler wraps any slog.Handler and
// masks those parts while leaving the rest of the URL readable. It also
// masks attributes whose key names a secret (cookie, authorization,
// password) and values that look like bearer tokens or API keys.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Warn("failed to retrieve page",
//	    "url", "https://user:pw@example.com/a?token=abc", // password and token masked
//	)
//	slog.SetDefault(logger)
package log
