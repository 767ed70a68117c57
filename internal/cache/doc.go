// Package cache defines the disk-backed store that holds downloaded dataset
// archives under <BaseDir>/<CacheDir>/<file>. The store exposes existence
// probes, path resolution and read/write/remove primitives with safe
// semantics (temp file + rename), and reports a per-file Status so the fetch
// layer can decide whether a refresh is needed. The filesystem is the single
// source of truth: nothing is memoised between calls.
package cache
