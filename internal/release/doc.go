// Package release handles node binary releases: expanding the download URL
// convention for a version and CPU architecture, fetching gzip tarballs,
// verifying them against a published sums file, extracting the node binary,
// and installing it with rollback on checksum mismatch.
package release
