package storage

// Store persists named JSON documents. The embedding index keeps one
// document per job; every save rewrites the whole document.
type Store interface {
	Save(name string, v any) error
	// Load fills dst and reports whether the document existed. A corrupt
	// document is reported as an error with exists=true so callers can
	// choose to treat it as absent.
	Load(name string, dst any) (exists bool, err error)
	Delete(name string) error
	Exists(name string) bool
}
