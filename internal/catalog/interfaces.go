package catalog

// Store is the set of local services edited by the CLI and announced by the daemon
type Store interface {
	Put(rec Record) error
	PutAll(recs []Record) error
	Get(id string) (Record, error)
	List() ([]Record, error)
	Delete(id string) error
	Close() error
}
