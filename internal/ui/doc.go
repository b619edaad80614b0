// Package ui holds the shared terminal styling for one-shot CLI output:
// the semantic color palette, status symbols and table rendering.
//
// Long-running views (the monitor dashboard) keep their own styles in the
// monitor package.
package ui
