// Package file provides file-based implementations of driven port
// interfaces: TOML pipeline configuration and user-editable prompt
// templates.
package file
