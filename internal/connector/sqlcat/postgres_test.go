package sqlcat

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metahub/mex-core/internal/filter"
)

func newMockPostgres(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	b, mock := newMockBase(t)
	b.DriverName = "postgres"
	return &Postgres{Base: b}, mock
}

func TestPostgresListCatalogsSkipsTemplates(t *testing.T) {
	p, mock := newMockPostgres(t)
	mock.ExpectQuery("FROM pg_database").
		WillReturnRows(sqlmock.NewRows([]string{"datname"}).
			AddRow("appdb").
			AddRow("analytics"))

	catalogs, err := p.ListCatalogs(context.Background())
	require.NoError(t, err)
	assert.Len(t, catalogs, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListSchemasPushesScopePatterns(t *testing.T) {
	p, mock := newMockPostgres(t)

	// The include pattern travels server-side as a regex argument.
	mock.ExpectQuery("SELECT schema_name").
		WithArgs("^prod$").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).AddRow("prod"))

	f := filter.Compile(filter.Spec{Include: map[string]string{"^prod$": filter.Star}})
	schemas, err := p.ListSchemas(context.Background(), "appdb", f)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "prod", schemas[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListSchemasReappliesMatcherClientSide(t *testing.T) {
	p, mock := newMockPostgres(t)

	// Server-side regex dialects can over-match; anything the compiled
	// matcher rejects must still be dropped.
	mock.ExpectQuery("SELECT schema_name").
		WithArgs("^prod$").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).
			AddRow("prod").
			AddRow("production"))

	f := filter.Compile(filter.Spec{Include: map[string]string{"^prod$": filter.Star}})
	schemas, err := p.ListSchemas(context.Background(), "appdb", f)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "prod", schemas[0].Name)
}

func TestPostgresListSchemasQualifiedIncludeSkipsPushdown(t *testing.T) {
	p, mock := newMockPostgres(t)

	// A qualified scope pattern cannot be compared to the bare
	// schema_name server-side; the query runs unfiltered and the
	// compiled matcher selects client-side.
	mock.ExpectQuery("SELECT schema_name").
		WillReturnRows(sqlmock.NewRows([]string{"schema_name"}).
			AddRow("prod").
			AddRow("stage"))

	f := filter.Compile(filter.Spec{Include: map[string]string{`^appdb\.prod$`: filter.Star}})
	schemas, err := p.ListSchemas(context.Background(), "appdb", f)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "prod", schemas[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListTablesPushesChildPatterns(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT table_name, table_type").
		WithArgs("prod", "^orders.*$", "(?:.*_tmp$)|(?:^pg_temp)").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}).
			AddRow("orders", "BASE TABLE").
			AddRow("orders_eu", "BASE TABLE"))

	f := filter.Compile(filter.Spec{
		Include:  map[string]string{"^prod$": "^orders.*$"},
		Exclude:  map[string]string{"^prod$": ".*_tmp$"},
		DenyList: "^pg_temp",
	})
	tables, err := p.ListTables(context.Background(), "appdb", "prod", f)
	require.NoError(t, err)
	assert.Len(t, tables, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListTablesStarIncludeSkipsPushdown(t *testing.T) {
	p, mock := newMockPostgres(t)

	// A star include admits all children: nothing useful to push down,
	// only the schema argument remains.
	mock.ExpectQuery("SELECT table_name, table_type").
		WithArgs("prod").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "table_type"}).
			AddRow("orders", "BASE TABLE"))

	f := filter.Compile(filter.Spec{Include: map[string]string{"^prod$": filter.Star}})
	tables, err := p.ListTables(context.Background(), "appdb", "prod", f)
	require.NoError(t, err)
	assert.Len(t, tables, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListColumnsPrecision(t *testing.T) {
	p, mock := newMockPostgres(t)

	mock.ExpectQuery("FROM information_schema.columns").
		WithArgs("prod", "orders").
		WillReturnRows(sqlmock.NewRows([]string{
			"column_name", "data_type", "is_nullable", "numeric_precision", "numeric_scale", "character_maximum_length", "ordinal_position",
		}).
			AddRow("amount", "numeric", "NO", 12, 2, 0, 1).
			AddRow("label", "varchar", "YES", 0, 0, 255, 2))

	columns, err := p.ListColumns(context.Background(), "appdb", "prod", "orders")
	require.NoError(t, err)
	require.Len(t, columns, 2)
	assert.Equal(t, 12, columns[0].Precision)
	assert.Equal(t, 2, columns[0].Scale)
	assert.Equal(t, 255, columns[1].Length)
}

func TestRegexOpsCaseSensitivity(t *testing.T) {
	match, noMatch := regexOps(filter.Compile(filter.Spec{}))
	assert.Equal(t, "~", match)
	assert.Equal(t, "!~", noMatch)

	match, noMatch = regexOps(filter.Compile(filter.Spec{Options: filter.Options{CaseInsensitive: true}}))
	assert.Equal(t, "~*", match)
	assert.Equal(t, "!~*", noMatch)
}
