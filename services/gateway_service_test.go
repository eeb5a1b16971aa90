package services

import (
	"bytes"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"dbgateway/pkg/secrets"
	"dbgateway/repository"
	"dbgateway/services/connector"
	"dbgateway/services/dberrors"
	"dbgateway/services/dto"
)

// fakeConnector is a scriptable connector substitute registered through
// the registry builder table.
type fakeConnector struct {
	connectErr error
	execErr    error
	rs         *connector.ResultSet
	schema     []connector.TableSchema

	cfg     connector.Config
	queries []string
}

func (f *fakeConnector) Connect() error { return f.connectErr }
func (f *fakeConnector) Disconnect()    {}

func (f *fakeConnector) ExecuteQuery(query string, params ...any) (*connector.ResultSet, error) {
	f.queries = append(f.queries, query)
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.rs != nil {
		return f.rs, nil
	}
	return &connector.ResultSet{Columns: []string{"1"}, Types: []string{"INT"}, Rows: [][]any{{int64(1)}}}, nil
}

func (f *fakeConnector) GetSchema() ([]connector.TableSchema, error) {
	return f.schema, nil
}

type gatewayFixture struct {
	svc  GatewayService
	mock sqlmock.Sqlmock
	fake *fakeConnector
}

func newFixture(t *testing.T) *gatewayFixture {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	gdb, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{})
	require.NoError(t, err)

	fake := &fakeConnector{}
	reg := connector.NewRegistryWith(map[connector.Engine]connector.Builder{
		connector.EngineMySQL: func(cfg connector.Config) connector.Connector {
			fake.cfg = cfg
			return fake
		},
	})

	codec, err := secrets.NewCodec(bytes.Repeat([]byte{0x11}, secrets.KeySize))
	require.NoError(t, err)

	svc := NewGatewayServiceWithDeps(
		repository.NewDatabaseDefRepositoryWithDB(gdb),
		repository.NewBaseRepositoryWithDB(gdb),
		codec,
		reg,
	)
	return &gatewayFixture{svc: svc, mock: mock, fake: fake}
}

func testCodec(t *testing.T) *secrets.Codec {
	t.Helper()
	codec, err := secrets.NewCodec(bytes.Repeat([]byte{0x11}, secrets.KeySize))
	require.NoError(t, err)
	return codec
}

func validCreateRequest(name string) dto.DatabaseCreateRequest {
	return dto.DatabaseCreateRequest{
		Name:         name,
		DatabaseType: "mysql",
		Configuration: dto.ConnectionConfigRequest{
			Host:     "db.internal",
			Port:     3306,
			Username: "reporting",
			Password: "secret",
			Database: "sales",
		},
	}
}

func definitionRow(t *testing.T, id, userID uint, name string, active bool, cfg connector.Config) *sqlmock.Rows {
	t.Helper()
	token, err := testCodec(t).Encrypt(cfg)
	require.NoError(t, err)
	return sqlmock.NewRows([]string{"id", "user_id", "name", "db_type", "configuration", "is_active"}).
		AddRow(id, userID, name, "mysql", token, active)
}

// TestCreate_ActiveOnSuccessfulTest verifies the happy path: the
// definition persists active with an encrypted configuration.
func TestCreate_ActiveOnSuccessfulTest(t *testing.T) {
	fx := newFixture(t)

	fx.mock.ExpectBegin()
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `gateway_databases`")).
		WithArgs(uint(7), "analytics").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	fx.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `gateway_databases`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	fx.mock.ExpectCommit()

	def, status, err := fx.svc.Create(7, validCreateRequest("analytics"))
	require.NoError(t, err)
	assert.True(t, def.IsActive)
	assert.NotNil(t, def.LastConnectedAt)
	assert.Equal(t, "Database 'analytics' created successfully", status)
	assert.Equal(t, []string{"SELECT 1"}, fx.fake.queries)

	// Stored configuration is the opaque token, not the plaintext.
	assert.NotContains(t, def.Configuration, "secret")
	got, err := testCodec(t).Decrypt(def.Configuration)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", got.Host)

	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestCreate_PersistsInactiveWhenTestFails verifies a failed connectivity
// test never blocks persistence: the row is saved inactive and the status
// carries the failure.
func TestCreate_PersistsInactiveWhenTestFails(t *testing.T) {
	fx := newFixture(t)
	fx.fake.connectErr = errors.New("dial tcp 10.0.0.9:3306: connect: connection refused")

	fx.mock.ExpectBegin()
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `gateway_databases`")).
		WithArgs(uint(7), "analytics").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	fx.mock.ExpectExec(regexp.QuoteMeta("INSERT INTO `gateway_databases`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	fx.mock.ExpectCommit()

	def, status, err := fx.svc.Create(7, validCreateRequest("analytics"))
	require.NoError(t, err)
	assert.False(t, def.IsActive)
	assert.Nil(t, def.LastConnectedAt)
	assert.Contains(t, status, "created successfully but connection test failed")
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestCreate_DuplicateName verifies the per-owner uniqueness check inside
// the transaction.
func TestCreate_DuplicateName(t *testing.T) {
	fx := newFixture(t)

	fx.mock.ExpectBegin()
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `gateway_databases`")).
		WithArgs(uint(7), "analytics").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	fx.mock.ExpectRollback()

	_, _, err := fx.svc.Create(7, validCreateRequest("analytics"))
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, dberrors.KindConfiguration, gerr.Kind)
	assert.Contains(t, gerr.Message, "already exists")
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestCreate_RejectsBadInputBeforeAnyIO verifies name, engine and host
// validation happen before the connector or the store are touched.
func TestCreate_RejectsBadInputBeforeAnyIO(t *testing.T) {
	fx := newFixture(t)

	req := validCreateRequest("bad name!")
	_, _, err := fx.svc.Create(7, req)
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, dberrors.KindConfiguration, gerr.Kind)

	req = validCreateRequest("ok")
	req.DatabaseType = "mongodb"
	_, _, err = fx.svc.Create(7, req)
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Message, "unsupported database type")

	req = validCreateRequest("ok")
	req.Configuration.Host = "bad;host"
	_, _, err = fx.svc.Create(7, req)
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Message, "invalid database host")

	assert.Empty(t, fx.fake.queries)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestQuery_InactiveRejectedWithoutConnector verifies the active check
// runs before any connector is built.
func TestQuery_InactiveRejectedWithoutConnector(t *testing.T) {
	fx := newFixture(t)

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "analytics", 1).
		WillReturnRows(definitionRow(t, 3, 7, "analytics", false, cfg))

	_, err := fx.svc.Query(7, "analytics", "SELECT 1")
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, dberrors.KindInactive, gerr.Kind)
	assert.Empty(t, fx.fake.queries)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestQuery_StackedStatementRejectedBeforeConnector verifies validation
// rejections happen before decryption or connection.
func TestQuery_StackedStatementRejectedBeforeConnector(t *testing.T) {
	fx := newFixture(t)

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "analytics", 1).
		WillReturnRows(definitionRow(t, 3, 7, "analytics", true, cfg))

	_, err := fx.svc.Query(7, "analytics", "SELECT 1; DROP TABLE users")
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, dberrors.KindSecurity, gerr.Kind)
	assert.Empty(t, fx.fake.queries)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestQuery_NormalizesResultValues verifies decimal, timestamp and binary
// normalization on the way out.
func TestQuery_NormalizesResultValues(t *testing.T) {
	fx := newFixture(t)

	ts := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	fx.fake.rs = &connector.ResultSet{
		Columns: []string{"id", "amount", "created_at", "payload", "note"},
		Types:   []string{"INT", "DECIMAL", "DATETIME", "BLOB", "VARCHAR"},
		Rows: [][]any{
			{int64(1), []byte("12.50"), ts, []byte{0xde, 0xad}, []byte("hello")},
		},
	}

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "analytics", 1).
		WillReturnRows(definitionRow(t, 3, 7, "analytics", true, cfg))

	res, err := fx.svc.Query(7, "analytics", "SELECT id, amount, created_at, payload, note FROM orders;")
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	row := res.Results[0]
	assert.Equal(t, "12.50", row["amount"])
	assert.Equal(t, "2026-03-14T09:26:53Z", row["created_at"])
	assert.Equal(t, "dead", row["payload"])
	assert.Equal(t, "hello", row["note"])
	assert.Equal(t, int64(1), row["id"])
	assert.Equal(t, 1, res.RowCount)
	assert.Equal(t, "SELECT id, amount, created_at, payload, note FROM orders", res.Query)
	assert.GreaterOrEqual(t, res.ExecutionTime, 0.0)

	// The connector saw the normalized decrypted configuration.
	assert.Equal(t, "db.internal", fx.fake.cfg.Host)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestQuery_ConnectFailureIsClassified verifies connect errors surface as
// classified connection failures, raw text kept out of the message.
func TestQuery_ConnectFailureIsClassified(t *testing.T) {
	fx := newFixture(t)
	fx.fake.connectErr = errors.New("Error 1045 (28000): Access denied for user 'u'@'10.0.0.1'")

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "analytics", 1).
		WillReturnRows(definitionRow(t, 3, 7, "analytics", true, cfg))

	_, err := fx.svc.Query(7, "analytics", "SELECT 1")
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, dberrors.KindConnection, gerr.Kind)
	assert.Equal(t, dberrors.AuthenticationFailed, gerr.Category)
	assert.NotContains(t, gerr.Message, "10.0.0.1")
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestQuery_NotFound verifies a missing definition maps to the not-found
// kind.
func TestQuery_NotFound(t *testing.T) {
	fx := newFixture(t)

	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "ghost", 1).
		WillReturnError(gorm.ErrRecordNotFound)

	_, err := fx.svc.Query(7, "ghost", "SELECT 1")
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, dberrors.KindNotFound, gerr.Kind)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestTestConnection_Probe verifies the probe runs the minimal query and
// classifies failures without persisting anything.
func TestTestConnection_Probe(t *testing.T) {
	fx := newFixture(t)

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	require.NoError(t, fx.svc.TestConnection("mysql", cfg))
	assert.Equal(t, []string{"SELECT 1"}, fx.fake.queries)

	fx.fake.queries = nil
	fx.fake.connectErr = errors.New("dial tcp: i/o timeout")
	err := fx.svc.TestConnection("mysql", cfg)
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, dberrors.KindConnection, gerr.Kind)
	assert.Equal(t, dberrors.Timeout, gerr.Category)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestUpdate_RenameConflict verifies a rename onto an existing sibling
// name rolls back.
func TestUpdate_RenameConflict(t *testing.T) {
	fx := newFixture(t)

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	fx.mock.ExpectBegin()
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "analytics", 1).
		WillReturnRows(definitionRow(t, 3, 7, "analytics", true, cfg))
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `gateway_databases`")).
		WithArgs(uint(7), "reporting").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	fx.mock.ExpectRollback()

	_, _, err := fx.svc.Update(7, dto.DatabaseUpdateRequest{DatabaseName: "analytics", NewName: "reporting"})
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Contains(t, gerr.Message, "already exists")
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestUpdate_NoRetestWithoutConfigChange verifies a rename-only update
// skips the connectivity test and keeps the active flag untouched.
func TestUpdate_NoRetestWithoutConfigChange(t *testing.T) {
	fx := newFixture(t)

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	fx.mock.ExpectBegin()
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "analytics", 1).
		WillReturnRows(definitionRow(t, 3, 7, "analytics", true, cfg))
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM `gateway_databases`")).
		WithArgs(uint(7), "reporting").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))
	fx.mock.ExpectExec(regexp.QuoteMeta("UPDATE `gateway_databases`")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	fx.mock.ExpectCommit()

	def, status, err := fx.svc.Update(7, dto.DatabaseUpdateRequest{DatabaseName: "analytics", NewName: "reporting"})
	require.NoError(t, err)
	assert.Equal(t, "reporting", def.Name)
	assert.True(t, def.IsActive)
	assert.Empty(t, fx.fake.queries)
	assert.Equal(t, "Database 'reporting' updated successfully", status)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestUpdate_ConfigRetestFailurePersistsInactive verifies that changing
// the configuration forces a re-test and a failed re-test still persists
// the definition, now inactive.
func TestUpdate_ConfigRetestFailurePersistsInactive(t *testing.T) {
	fx := newFixture(t)
	fx.fake.connectErr = errors.New("dial tcp 10.0.0.9:3306: connect: connection refused")

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	fx.mock.ExpectBegin()
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "analytics", 1).
		WillReturnRows(definitionRow(t, 3, 7, "analytics", true, cfg))
	fx.mock.ExpectExec(regexp.QuoteMeta("UPDATE `gateway_databases`")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	fx.mock.ExpectCommit()

	def, status, err := fx.svc.Update(7, dto.DatabaseUpdateRequest{
		DatabaseName: "analytics",
		Configuration: &dto.ConnectionConfigRequest{
			Host:     "db.moved",
			Port:     3306,
			Username: "u",
			Password: "p",
			Database: "sales",
		},
	})
	require.NoError(t, err)
	assert.False(t, def.IsActive)
	assert.Contains(t, status, "updated but connection test failed")

	// The re-encrypted configuration carries the new host.
	got, derr := testCodec(t).Decrypt(def.Configuration)
	require.NoError(t, derr)
	assert.Equal(t, "db.moved", got.Host)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestDelete_NotFound verifies deleting a missing definition reports
// not-found.
func TestDelete_NotFound(t *testing.T) {
	fx := newFixture(t)

	fx.mock.ExpectBegin()
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "ghost", 1).
		WillReturnError(gorm.ErrRecordNotFound)
	fx.mock.ExpectRollback()

	_, err := fx.svc.Delete(7, "ghost")
	var gerr *dberrors.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, dberrors.KindNotFound, gerr.Kind)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

// TestExtractSchema verifies introspection skips the active check and
// returns the connector's catalog shape unchanged.
func TestExtractSchema(t *testing.T) {
	fx := newFixture(t)
	fx.fake.schema = []connector.TableSchema{
		{TableName: "orders", Columns: []connector.ColumnSchema{
			{Name: "id", Type: "int", Key: "PRI"},
		}},
	}

	cfg := connector.Config{Host: "db.internal", Port: 3306, Username: "u", Password: "p", Database: "sales"}
	fx.mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM `gateway_databases` WHERE user_id = ? AND name = ?")).
		WithArgs(uint(7), "analytics", 1).
		WillReturnRows(definitionRow(t, 3, 7, "analytics", false, cfg))

	schema, err := fx.svc.ExtractSchema(7, "analytics")
	require.NoError(t, err)
	require.Len(t, schema, 1)
	assert.Equal(t, "orders", schema[0].TableName)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}
