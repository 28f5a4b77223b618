// Package services holds the index business logic between the HTTP
// handlers and the repositories.
package services
