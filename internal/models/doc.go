// Package models defines the domain types passed between the upload
// pipeline stages, the metadata index and the CLI.
package models
