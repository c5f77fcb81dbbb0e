package postgres

import "contractgen/internal/storage"

func init() {
	storage.Register(storage.KindPostgres, New)
}
