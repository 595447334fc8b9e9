package common

import (
	"fmt"
	"regexp"
	"time"

	"github.com/jonas747/engage/common/config"
)

var (
	createTableRegex = regexp.MustCompile(`(?i)create table if not exists ([0-9a-z_]*) *\(`)
	addIndexRegex    = regexp.MustCompile(`(?i)create (unique )?index if not exists ([0-9a-z_]*) on ([0-9a-z_]*)`)
)

// InitSchemas runs the provided schema statements, skipping the ones whose
// table or index already exists, holding a redis lock while doing so in case
// multiple processes start up at once
func InitSchemas(name string, schemas ...string) {
	if err := BlockingLockRedisKey("schema_init", time.Minute*10, 60*60); err != nil {
		panic(err)
	}

	defer UnlockRedisKey("schema_init")

	for i, v := range schemas {
		initSchema(v, fmt.Sprintf("%s[%d]", name, i))
	}
}

func initSchema(schema string, name string) {
	if config.NoSchemaInit.GetBool() {
		return
	}

	skip, err := checkSkipSchemaInit(schema)
	if err != nil {
		logger.WithError(err).Error("Failed checking if we should skip schema: ", name)
	}

	if skip {
		return
	}

	logger.Info("Schema initialization: ", name, ": not skipped")

	_, err = PQ.Exec(schema)
	if err != nil {
		UnlockRedisKey("schema_init")
		logger.WithError(err).Fatal("failed initializing postgres db schema for ", name)
	}
}

func checkSkipSchemaInit(schema string) (exists bool, err error) {
	if matches := createTableRegex.FindAllStringSubmatch(schema, -1); len(matches) > 0 {
		return TableExists(matches[0][1])
	}

	if matches := addIndexRegex.FindAllStringSubmatch(schema, -1); len(matches) > 0 {
		return indexExists(matches[0][3], matches[0][2])
	}

	return false, nil
}

func TableExists(table string) (b bool, err error) {
	const query = `
SELECT EXISTS
(
	SELECT 1
	FROM information_schema.tables
	WHERE table_schema = 'public'
	AND table_name = $1
);`

	err = PQ.QueryRow(query, table).Scan(&b)
	return b, err
}

func indexExists(table, index string) (b bool, err error) {
	const query = `
SELECT EXISTS
(
	SELECT 1
	FROM
		pg_class t,
		pg_class i,
		pg_index ix
	WHERE
		t.oid = ix.indrelid
		AND i.oid = ix.indexrelid
		AND t.relkind = 'r'
		AND t.relname = $1
		AND i.relname = $2
);`

	err = PQ.QueryRow(query, table, index).Scan(&b)
	return b, err
}
