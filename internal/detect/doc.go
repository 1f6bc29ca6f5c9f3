// Package detect builds ProjectProfiles from project manifest files.
//
// Detection is intentionally declarative: a framework is recognized by
// the presence of its package in package.json dependencies (checked in
// priority order, meta-frameworks before the tools they build on), the
// package manager by the lockfile present in the workspace, and the
// dev script by convention ("dev", then "start", then the framework
// default). Projects without a recognizable manifest fall back to the
// generic framework.
//
// package.json is parsed tolerantly (comments and trailing commas are
// accepted) and queried with gjson rather than unmarshalled into
// structs — only a handful of paths matter.
package detect
