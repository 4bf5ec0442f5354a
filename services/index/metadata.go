package index

// StatusStore persists run statuses so they outlive the run and the process.
type StatusStore interface {
	Set(bucket string, key string, value []byte) error
	Get(bucket string, key string) ([]byte, error)
	Keys(bucket string) ([]string, error)
}
