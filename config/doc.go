// Package config handles application configuration loading and validation.
//
// Configuration is loaded from a YAML file and validated using struct tags.
// Each upstream disruption feed is declared as a source entry carrying its
// endpoint, auth, geographic filter, and polling budget.
package config
