// Package file keeps user-editable state under ~/.smartmarket: config.toml
// and the answer prompt templates.
package file
