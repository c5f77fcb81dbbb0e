// Package all registers every database backend with the storage registry.
package all

import (
	_ "contractgen/internal/storage/mssql"
	_ "contractgen/internal/storage/mysql"
	_ "contractgen/internal/storage/postgres"
	_ "contractgen/internal/storage/sqlite"
)
