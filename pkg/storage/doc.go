/*
Package storage provides uniform object I/O for snapshots over pluggable
backends.

The Backend interface covers put, get, list, tree upload/download and
prefix deletion. Two implementations exist:

Local:
  - Rooted at a configured base directory; a bucket is a subdirectory
  - Put writes through a temp file plus rename, so a reader never sees a
    partially written object
  - List returns slash-separated paths relative to the bucket

S3:
  - Built on aws-sdk-go-v2; all objects live in one configured bucket and
    the Backend bucket argument becomes a key prefix within it
  - Credentials come from the ambient chain (pod service-account style)
    unless an explicit access key pair is configured
  - List pages through ListObjectsV2 internally

Backends never interpret payloads. Errors are classified as NotFound,
Transport or Config via the sentinel errors in pkg/types.
*/
package storage
