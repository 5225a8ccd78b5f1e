// Package config holds the settings of a sitecorpus run: crawl limits,
// politeness, output location and history storage. Settings come from CLI
// flags and an optional YAML file (.sitecorpus) whose per-host entries
// override the global values.
package config
