// Package policy decides which URLs belong to a crawl.
//
// A crawl is scoped by three independent predicates, all evaluated against
// the crawl's base URL rather than the page a link was found on:
//
//   - SameOrigin: scheme and host must match the base
//   - WithinDepth: the path must sit at or below the base path, no more than
//     maxDepth segments deeper
//   - ResourceAllowed: PDFs and EPUBs are gated by flags
//
// Policy bundles the three with their parameters into an immutable value
// that is built once per crawl and shared by every worker.
package policy
