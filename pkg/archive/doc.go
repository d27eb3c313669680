// Package archive packs and unpacks gzipped tarballs of snapshot artifact
// trees, used when a backup is uploaded as a single compressed blob.
package archive
