// Package database handles database connections.
//
// It provides a wrapper around GORM to configure MySQL connections based on the
// application's configuration. The sqlite driver is accepted as well so that the
// repositories can be exercised against an in-memory database in tests and local runs.
//
// # Usage
//
//	db, err := database.Connect(cfg.Database)
//	if err != nil {
//	    log.Fatal("Database connection failed", err)
//	}
package database
