//go:build ruleguard

// Package gorules defines ruleguard checks for birdsong conventions.
// Run with: golangci-lint run (gocritic ruleguard checker, rules: rules/rules.go)
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// EnhancedErrors flags stdlib errors.New outside the errors package itself.
// Errors crossing a package boundary are built with the internal builder so
// they carry component and category.
func EnhancedErrors(m dsl.Matcher) {
	m.Match(`errors.New($msg)`).
		Where(m.File().Imports("errors") && !m.File().PkgPath.Matches(`/internal/errors$`)).
		Report(`use internal/errors: errors.Newf($msg).Component(...).Category(...).Build()`)
}

// ModuleLogger flags the stdlib log package; use logger.Global().Module(name).
func ModuleLogger(m dsl.Matcher) {
	m.Match(
		`log.Printf($*_)`,
		`log.Println($*_)`,
		`log.Print($*_)`,
		`log.Fatalf($*_)`,
		`log.Fatal($*_)`,
	).
		Where(m.File().Imports("log")).
		Report(`use the package module logger instead of the standard log package`)
}

// NoPrintInLibraries flags fmt printing to stdout in internal packages. Only
// commands write to the terminal, through cobra's OutOrStdout.
func NoPrintInLibraries(m dsl.Matcher) {
	m.Match(
		`fmt.Println($*_)`,
		`fmt.Printf($*_)`,
		`fmt.Print($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`internal packages log instead of printing to stdout`)
}

// SharedHTTPClient flags package-level HTTP helpers that bypass the shared
// client's timeouts, User-Agent and hooks.
func SharedHTTPClient(m dsl.Matcher) {
	m.Match(
		`http.Get($*_)`,
		`http.Post($*_)`,
		`http.Head($*_)`,
		`http.DefaultClient.Do($*_)`,
	).
		Where(!m.File().PkgPath.Matches(`/internal/httpclient$`)).
		Report(`use internal/httpclient so requests get the default timeout and User-Agent`)
}

// WaitGroupGo suggests wg.Go over the manual Add/Done pattern (Go 1.25+).
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report(`use $wg.Go(func() { $body }) instead of manual Add/Done`).
		Suggest(`$wg.Go(func() { $body })`)
}

// TimeSince suggests time.Since over time.Now().Sub.
func TimeSince(m dsl.Matcher) {
	m.Match(`time.Now().Sub($t)`).
		Report(`use time.Since($t)`).
		Suggest(`time.Since($t)`)
}
