package interfaces

// StorageManager owns the database connection and the stores built on it
type StorageManager interface {
	AuditStorage() AuditStorage
	DB() interface{}
	Close() error
}
