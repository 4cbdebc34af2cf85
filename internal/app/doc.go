// Package app assembles mangabridge's components from a loaded configuration.
package app
