// Package idx decodes the IDX binary layout used by MNIST-style datasets: a
// 4-byte big-endian magic number (2049 for labels, 2051 for images), the
// big-endian dimension fields, then one unsigned byte per element. Archives
// are usually gzip-compressed; Decode handles both the compressed and the
// already-extracted forms kept in the cache.
package idx
