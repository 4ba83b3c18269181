// Package dbtest starts a disposable PostgreSQL container with every migration
// applied. It is only built with the integration tag.
package dbtest
