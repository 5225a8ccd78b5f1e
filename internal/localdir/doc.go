// Package localdir builds a corpus from the files of a local directory tree.
//
// The tree is walked with an explicit stack of pending directories. A
// Filter decides which files are included by extension and which
// directories are pruned by pattern before they are ever pushed. Files in
// the root directory are always considered; the root itself is never
// pruned.
package localdir
