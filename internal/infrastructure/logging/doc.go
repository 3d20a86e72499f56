// Package logging configures structured logging on top of log/slog.
//
// Entries are JSON by default (text for local runs), carry service and
// version attributes, and have secret-looking attributes (password, dsn,
// *_secret, *_token) replaced before they are written.
//
//	logging:
//	  level: info      # debug, info, warn, error
//	  format: json     # json, text
//	  output: stdout   # stdout, stderr, discard
//
// Components take a narrow Logger interface; pass log.Component("name").
package logging
