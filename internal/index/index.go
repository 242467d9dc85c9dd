package index

// DocumentIndex defines the index operations services depend on.
type DocumentIndex interface {
	UpsertDocument(d DocumentRow, body string, media []string) error
	DeleteDocument(path string) error
	GetChecksum(path string) (string, error)
	GetDocument(path string) (*DocumentRow, error)
	ListDocuments(limit, offset int, tag, sort string) ([]DocumentRow, int, error)
	Search(query string, limit int) ([]SearchResult, error)
	Referrers(url string) ([]string, error)
	AllChecksums() (map[string]string, error)
	Ping() error
	Close() error
}

var _ DocumentIndex = (*DB)(nil)
