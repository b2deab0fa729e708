package repository

import sq "github.com/Masterminds/squirrel"

// psql is the Squirrel statement builder shared by all repositories, set up for PostgreSQL $n placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
