package services

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"gorm.io/gorm"

	"dbgateway/models"
	"dbgateway/pkg/logger"
	"dbgateway/pkg/secrets"
	"dbgateway/repository"
	"dbgateway/services/connector"
	"dbgateway/services/dberrors"
	"dbgateway/services/dto"
	"dbgateway/services/sqlguard"
	"dbgateway/utils"
)

// GatewayService orchestrates database definitions and the query
// pipeline: validate, execute, normalize, classify.
type GatewayService interface {
	Create(userID uint, req dto.DatabaseCreateRequest) (*models.DatabaseDef, string, error)
	Update(userID uint, req dto.DatabaseUpdateRequest) (*models.DatabaseDef, string, error)
	Delete(userID uint, name string) (string, error)
	List(userID uint) ([]models.DatabaseDef, error)
	GetByName(userID uint, name string) (*models.DatabaseDef, error)
	Query(userID uint, name, sqlText string) (*dto.QueryResult, error)
	ExtractSchema(userID uint, name string) ([]connector.TableSchema, error)
	TestConnection(engine string, cfg connector.Config) error
}

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type gatewayService struct {
	repo     repository.DatabaseDefRepository
	base     repository.BaseRepository
	codec    *secrets.Codec
	registry *connector.Registry
}

// NewGatewayService creates the gateway wired to the global definition
// store and the default connector registry.
func NewGatewayService(codec *secrets.Codec) GatewayService {
	return &gatewayService{
		repo:     repository.NewDatabaseDefRepository(),
		base:     repository.NewBaseRepository(),
		codec:    codec,
		registry: connector.NewRegistry(),
	}
}

// NewGatewayServiceWithDeps creates the gateway with explicit
// dependencies. Used by tests to substitute fakes.
func NewGatewayServiceWithDeps(
	repo repository.DatabaseDefRepository,
	base repository.BaseRepository,
	codec *secrets.Codec,
	registry *connector.Registry,
) GatewayService {
	return &gatewayService{repo: repo, base: base, codec: codec, registry: registry}
}

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return dberrors.Configuration("invalid database name: use only letters, numbers, underscores, and hyphens")
	}
	return nil
}

func validateConfig(cfg dto.ConnectionConfigRequest) error {
	if !utils.IsValidHost(cfg.Host) {
		return dberrors.Configuration("invalid database host: %q", cfg.Host)
	}
	return nil
}

// Create registers a definition. Connectivity is tested live but a failed
// test never blocks persistence; the definition is saved with the
// encrypted configuration and active reflecting the test outcome.
func (s *gatewayService) Create(userID uint, req dto.DatabaseCreateRequest) (*models.DatabaseDef, string, error) {
	logger.Infof("Creating database definition %q for user %d", req.Name, userID)

	if err := validateName(req.Name); err != nil {
		return nil, "", err
	}
	engine, err := connector.ParseEngine(req.DatabaseType)
	if err != nil {
		return nil, "", dberrors.Configuration("%v", err)
	}
	if err := validateConfig(req.Configuration); err != nil {
		return nil, "", err
	}

	var connectionErrMsg string
	testErr := s.TestConnection(engine.String(), req.Configuration.ToConfig())
	if testErr != nil {
		connectionErrMsg = testErr.Error()
		logger.Warnf("Connection test failed for %q: %v", req.Name, testErr)
	}

	token, err := s.codec.Encrypt(req.Configuration.ToConfig())
	if err != nil {
		return nil, "", dberrors.Configuration("failed to encrypt configuration: %v", err)
	}

	def := &models.DatabaseDef{
		UserID:        userID,
		Name:          req.Name,
		DBType:        engine.String(),
		Configuration: token,
		IsActive:      testErr == nil,
	}
	if testErr == nil {
		now := time.Now()
		def.LastConnectedAt = &now
	}

	tx := s.base.Begin()
	count, err := s.repo.CountByUserAndName(tx, userID, req.Name)
	if err != nil {
		tx.Rollback()
		return nil, "", dberrors.Configuration("failed to create database: %v", err)
	}
	if count > 0 {
		tx.Rollback()
		return nil, "", dberrors.Configuration("database name '%s' already exists", req.Name)
	}
	if err := s.repo.Create(tx, def); err != nil {
		tx.Rollback()
		return nil, "", dberrors.Configuration("failed to create database: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, "", dberrors.Configuration("failed to create database: %v", err)
	}

	status := fmt.Sprintf("Database '%s' created successfully", req.Name)
	if testErr != nil {
		status += " but connection test failed: " + connectionErrMsg
	}
	return def, status, nil
}

// Update mutates a definition. A connectivity re-test runs only when the
// configuration or engine changes; renames are checked for conflicts
// against the owner's other definitions.
func (s *gatewayService) Update(userID uint, req dto.DatabaseUpdateRequest) (*models.DatabaseDef, string, error) {
	if err := validateName(req.DatabaseName); err != nil {
		return nil, "", err
	}
	if req.NewName != "" {
		if err := validateName(req.NewName); err != nil {
			return nil, "", err
		}
	}

	engineTag := req.DatabaseType
	if engineTag != "" {
		if _, err := connector.ParseEngine(engineTag); err != nil {
			return nil, "", dberrors.Configuration("%v", err)
		}
	}
	if req.Configuration != nil {
		if err := validateConfig(*req.Configuration); err != nil {
			return nil, "", err
		}
	}

	tx := s.base.Begin()
	def, err := s.repo.GetByUserAndName(tx, userID, req.DatabaseName)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", dberrors.NotFound("database '%s' not found", req.DatabaseName)
		}
		return nil, "", dberrors.Configuration("failed to update database: %v", err)
	}

	if req.NewName != "" && req.NewName != req.DatabaseName {
		count, err := s.repo.CountByUserAndName(tx, userID, req.NewName)
		if err != nil {
			tx.Rollback()
			return nil, "", dberrors.Configuration("failed to update database: %v", err)
		}
		if count > 0 {
			tx.Rollback()
			return nil, "", dberrors.Configuration("database name '%s' already exists", req.NewName)
		}
		def.Name = req.NewName
	}

	retest := req.Configuration != nil || engineTag != ""
	connectionOK := true
	var connectionErrMsg string

	if retest {
		testType := def.DBType
		if engineTag != "" {
			testType = engineTag
		}
		var testCfg connector.Config
		if req.Configuration != nil {
			testCfg = req.Configuration.ToConfig()
		} else {
			testCfg, err = s.codec.Decrypt(def.Configuration)
			if err != nil {
				tx.Rollback()
				return nil, "", dberrors.Configuration("failed to decrypt stored configuration: %v", err)
			}
		}
		if testErr := s.TestConnection(testType, testCfg); testErr != nil {
			connectionOK = false
			connectionErrMsg = testErr.Error()
			logger.Warnf("Connection test failed during update of %q: %v", req.DatabaseName, testErr)
		}
	}

	if engineTag != "" {
		def.DBType = strings.ToLower(engineTag)
	}
	if req.Configuration != nil {
		token, err := s.codec.Encrypt(req.Configuration.ToConfig())
		if err != nil {
			tx.Rollback()
			return nil, "", dberrors.Configuration("failed to encrypt configuration: %v", err)
		}
		def.Configuration = token
	}
	if retest {
		def.IsActive = connectionOK
		if connectionOK {
			now := time.Now()
			def.LastConnectedAt = &now
		}
	}

	if err := s.repo.Update(tx, def); err != nil {
		tx.Rollback()
		return nil, "", dberrors.Configuration("failed to update database: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		return nil, "", dberrors.Configuration("failed to update database: %v", err)
	}

	var status string
	switch {
	case retest && connectionOK:
		status = fmt.Sprintf("Database '%s' updated successfully and connection test passed", def.Name)
	case retest:
		status = fmt.Sprintf("Database '%s' updated but connection test failed: %s", def.Name, connectionErrMsg)
	default:
		status = fmt.Sprintf("Database '%s' updated successfully", def.Name)
	}
	return def, status, nil
}

// Delete removes a definition. No external cleanup is required.
func (s *gatewayService) Delete(userID uint, name string) (string, error) {
	if err := validateName(name); err != nil {
		return "", err
	}

	tx := s.base.Begin()
	def, err := s.repo.GetByUserAndName(tx, userID, name)
	if err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", dberrors.NotFound("database '%s' not found", name)
		}
		return "", dberrors.Configuration("failed to delete database: %v", err)
	}
	if err := s.repo.Delete(tx, def); err != nil {
		tx.Rollback()
		return "", dberrors.Configuration("failed to delete database: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		return "", dberrors.Configuration("failed to delete database: %v", err)
	}

	logger.Infof("Deleted database definition %q for user %d", name, userID)
	return fmt.Sprintf("Database '%s' has been successfully deleted", name), nil
}

// List returns all definitions owned by a user, ordered by name.
func (s *gatewayService) List(userID uint) ([]models.DatabaseDef, error) {
	defs, err := s.repo.ListByUser(nil, userID)
	if err != nil {
		return nil, dberrors.Configuration("failed to list databases: %v", err)
	}
	return defs, nil
}

// GetByName returns one definition. The configuration field stays the
// encrypted token; plaintext never leaves the service.
func (s *gatewayService) GetByName(userID uint, name string) (*models.DatabaseDef, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	def, err := s.repo.GetByUserAndName(nil, userID, name)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dberrors.NotFound("database '%s' not found", name)
		}
		return nil, dberrors.Configuration("failed to retrieve database: %v", err)
	}
	return def, nil
}

// testQuery returns the engine's minimal connectivity probe.
func testQuery(engine connector.Engine) string {
	if engine == connector.EngineOracle {
		return "SELECT 1 FROM dual"
	}
	return "SELECT 1"
}

// TestConnection opens one connector, runs the probe query and closes it.
// Persists nothing; failures come back classified.
func (s *gatewayService) TestConnection(engineTag string, cfg connector.Config) error {
	engine, err := connector.ParseEngine(engineTag)
	if err != nil {
		return dberrors.Configuration("%v", err)
	}
	handler, err := dberrors.NewHandler(engine.String())
	if err != nil {
		return dberrors.Configuration("%v", err)
	}

	conn, err := s.registry.Get(engine, cfg)
	if err != nil {
		return dberrors.Configuration("%v", err)
	}
	defer conn.Disconnect()

	if err := conn.Connect(); err != nil {
		return dberrors.Connection(handler.Classify(err), err)
	}
	if _, err := conn.ExecuteQuery(testQuery(engine)); err != nil {
		var gwErr *dberrors.GatewayError
		if errors.As(err, &gwErr) {
			return gwErr
		}
		return dberrors.Connection(handler.Classify(err), err)
	}
	return nil
}

// Query runs one validated read query against an owned definition and
// returns the normalized row set for the external formatter.
func (s *gatewayService) Query(userID uint, name, sqlText string) (*dto.QueryResult, error) {
	if strings.TrimSpace(sqlText) == "" {
		return nil, dberrors.Query("empty or invalid SQL query", nil)
	}

	def, err := s.GetByName(userID, name)
	if err != nil {
		return nil, err
	}
	// Inactive definitions are rejected before any connector exists.
	if !def.IsActive {
		return nil, dberrors.Inactive(name)
	}

	validated, err := sqlguard.ValidateAndSanitize(sqlText)
	if err != nil {
		var gwErr *dberrors.GatewayError
		if errors.As(err, &gwErr) && gwErr.Kind == dberrors.KindSecurity {
			logger.Warnf("Query rejected for user %d on %q (rule=%s)", userID, name, gwErr.Pattern)
		}
		return nil, err
	}

	cfg, err := s.codec.Decrypt(def.Configuration)
	if err != nil {
		return nil, dberrors.Configuration("failed to decrypt stored configuration: %v", err)
	}

	engine, err := connector.ParseEngine(def.DBType)
	if err != nil {
		return nil, dberrors.Configuration("%v", err)
	}
	handler, err := dberrors.NewHandler(engine.String())
	if err != nil {
		return nil, dberrors.Configuration("%v", err)
	}

	conn, err := s.registry.Get(engine, cfg)
	if err != nil {
		return nil, dberrors.Configuration("%v", err)
	}
	defer conn.Disconnect()

	if err := conn.Connect(); err != nil {
		return nil, dberrors.Connection(handler.Classify(err), err)
	}

	start := time.Now()
	rs, err := conn.ExecuteQuery(validated.Query, validated.Params...)
	if err != nil {
		var gwErr *dberrors.GatewayError
		if errors.As(err, &gwErr) {
			return nil, gwErr
		}
		return nil, dberrors.Query("query execution failed", err)
	}
	elapsed := time.Since(start).Seconds()

	return &dto.QueryResult{
		Results:       normalizeRows(rs),
		Columns:       rs.Columns,
		Query:         validated.Query,
		ExecutionTime: math.Round(elapsed*1000) / 1000,
		RowCount:      len(rs.Rows),
	}, nil
}

// ExtractSchema introspects the definition's catalog into the normalized
// table/column shape consumed by the SQL-generator collaborator.
func (s *gatewayService) ExtractSchema(userID uint, name string) ([]connector.TableSchema, error) {
	def, err := s.GetByName(userID, name)
	if err != nil {
		return nil, err
	}

	cfg, err := s.codec.Decrypt(def.Configuration)
	if err != nil {
		return nil, dberrors.Configuration("failed to decrypt stored configuration: %v", err)
	}
	engine, err := connector.ParseEngine(def.DBType)
	if err != nil {
		return nil, dberrors.Configuration("%v", err)
	}
	handler, err := dberrors.NewHandler(engine.String())
	if err != nil {
		return nil, dberrors.Configuration("%v", err)
	}

	conn, err := s.registry.Get(engine, cfg)
	if err != nil {
		return nil, dberrors.Configuration("%v", err)
	}
	defer conn.Disconnect()

	if err := conn.Connect(); err != nil {
		return nil, dberrors.Connection(handler.Classify(err), err)
	}
	schema, err := conn.GetSchema()
	if err != nil {
		return nil, dberrors.Schema("failed to extract schema", err)
	}
	return schema, nil
}

// normalizeRows converts raw driver values into the engine-independent
// shapes the external formatter consumes.
func normalizeRows(rs *connector.ResultSet) []map[string]any {
	results := make([]map[string]any, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		formatted := make(map[string]any, len(rs.Columns))
		for i, col := range rs.Columns {
			typeName := ""
			if i < len(rs.Types) {
				typeName = rs.Types[i]
			}
			formatted[col] = normalizeValue(row[i], typeName)
		}
		results = append(results, formatted)
	}
	return results
}

func isDecimalType(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "DECIMAL", "NUMERIC", "NUMBER", "MONEY":
		return true
	}
	return false
}

func isBinaryType(typeName string) bool {
	switch strings.ToUpper(typeName) {
	case "BINARY", "VARBINARY", "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BYTEA", "RAW", "LONG RAW":
		return true
	}
	return false
}

// normalizeValue maps driver values onto safe textual forms: arbitrary
// precision numerics stay exact as decimal strings, timestamps become
// RFC 3339, binary data is hex-encoded.
func normalizeValue(val any, typeName string) any {
	switch v := val.(type) {
	case nil:
		return nil
	case time.Time:
		return v.Format(time.RFC3339)
	case []byte:
		if isBinaryType(typeName) {
			return hex.EncodeToString(v)
		}
		return string(v)
	case string:
		return v
	default:
		if isDecimalType(typeName) {
			return fmt.Sprintf("%v", v)
		}
		return v
	}
}
