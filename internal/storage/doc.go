// Package storage defines the backend abstraction that maps artifact names
// to bytes. Two variants exist: a local filesystem store (atomic temp file +
// rename writes) and an S3-compatible object store (HeadObject existence,
// staged PutObject writes carrying delivery metadata). The variant is chosen
// once at boot; the rest of the system programs against the Backend
// capability set only. Existence of an artifact at its canonical name is the
// cache record itself — there is no separate index.
package storage
