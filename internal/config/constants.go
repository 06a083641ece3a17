package config

const (
	// DefaultDatabasePath is the default path for the library database.
	DefaultDatabasePath = "./bookshelf.db"

	// DefaultUserID owns CLI imports and exports when no user is given.
	DefaultUserID = "local"
)
