// Package textproc normalises catalog and knowledge base text before it is
// embedded or lexically weighted.
//
// The same pipeline runs at build time and at query time so that query terms
// and indexed terms always agree:
//
//	lowercase -> fold accents -> split on letters/digits -> drop stop words -> stem
package textproc
