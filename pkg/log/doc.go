/*
Package log provides structured logging for vein using zerolog.

It wraps a single global zerolog.Logger, initialized once via Init, plus
component-scoped child loggers for consistent structured fields across
every package.

# Usage

	import "github.com/cuemby/vein/pkg/log"

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

	proxyLog := log.WithComponent("proxy")
	proxyLog.Info().Str("method", "GET").Msg("request")

	gemLog := log.WithGem("rails")
	gemLog.Info().Str("version", "7.1.0").Msg("manifest analyzed")

	assetLog := log.WithAsset("gem", "rails-7.1.0.gem")
	assetLog.Debug().Msg("cache miss")

	originLog := log.WithOrigin("https://rubygems.org")
	originLog.Warn().Msg("circuit breaker open")

# Design Patterns

Global Logger:
  - Package-level zerolog.Logger, initialized once in cmd/vein's
    cobra.OnInitialize hook, before any subcommand runs.

Context Loggers:
  - WithComponent/WithGem/WithAsset/WithOrigin attach one structured
    field and return a child logger; callers chain further fields with
    .With() when a call site needs more than one.

Structured fields over string interpolation:
  - Call sites on child loggers attach values with .Str/.Int/.Err
    rather than fmt.Sprintf into Msg, so logs stay parseable by
    downstream aggregators. The package-level Warn/Info/Error/Debug
    helpers take a plain message; pkg/manifest's analyzer warnings
    append the error text to that message.
*/
package log
