package internal

import (
	// Blank imports register the database/sql drivers the sql notification
	// driver can be configured with.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
)
