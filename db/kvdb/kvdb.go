// Package kvdb is a small bucketed key-value store used for state that lives
// outside the search indexes, such as ingestion run statuses.
package kvdb

const BucketRuns = "runs"

type DB interface {
	Set(bucket string, key string, value []byte) error
	Get(bucket string, key string) ([]byte, error)
	Delete(bucket string, key string) error
	Keys(bucket string) ([]string, error)
	Close() error
}
