package database

import (
	"database/sql"
	"log"

	"github.com/tallyhq/tally/config"
	"github.com/tallyhq/tally/internal/cache"

	_ "github.com/lib/pq"
)

// Datasource bundles the Postgres connection with the cache tier. It is
// injected into the service layer; nothing in this package holds global
// connection state, so tests can construct as many instances as they need.
type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := ConnectDB(configuration.DataSource.Dns)
	if err != nil {
		return nil, err
	}
	newCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	return &Datasource{Conn: con, Cache: newCache}, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	return db, nil
}
