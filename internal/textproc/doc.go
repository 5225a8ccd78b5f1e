// Package textproc post-processes corpus text.
//
// Compress produces the "compressed" corpus: accents folded to ASCII,
// characters outside a conservative ASCII set dropped, whitespace collapsed,
// everything lower-cased and English stopwords removed. The result is much
// smaller than the raw corpus and still useful as model context.
package textproc
