// Package internal contains the core implementation packages for injector.
//
// This package follows Go's internal package convention, making these
// packages unavailable for import by external modules while providing
// all the core functionality for the injector CLI tool.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - injector: Path normalization, tag registry, region rewriting and the run orchestrator
//   - manifest: Expansion of package manifests (bower.json) into ordered dependency files
//   - config: Configuration loading, per-target option merging and validation
//   - inspect: Marker region scanning and problem reports for templates
//   - watcher: File system monitoring with debouncing
//   - livereload: WebSocket hub telling browsers to reload
//   - errors: Structured errors with codes, context and suggestions
//   - logging: Structured logging on log/slog
//   - version: Build information
//
// # Inter-Package Communication
//
// Data flows one way through a run:
//
//   - Config resolves targets and expands source patterns
//   - Injector normalizes, renders and groups files, asking manifest expanders about manifests
//   - Injector rewrites each tag's regions and writes the destination
//   - Watcher triggers new runs; the live reload hub announces written destinations
//
// # Testing Strategy
//
// Each package has unit tests next to its code. Property tests built with
// gopter run behind the property build tag:
//
//	go test -tags property ./...
//
// For detailed documentation, see the individual package documentation.
package internal
