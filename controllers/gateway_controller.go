package controllers

import (
	"net/http"

	"dbgateway/pkg/logger"
	"dbgateway/services"
	"dbgateway/services/dto"
	"dbgateway/utils"

	"github.com/gin-gonic/gin"
)

var gatewaySrv services.GatewayService

// SetGatewayService initializes the gateway service instance.
// Used for dependency injection in tests to provide mock implementations.
func SetGatewayService(s services.GatewayService) {
	gatewaySrv = s
}

// CreateDatabase registers a new database definition
// @Summary Register a database
// @Description Registers a database definition, tests connectivity and persists the encrypted configuration
// @Tags Databases
// @Accept json
// @Produce json
// @Param database body dto.DatabaseCreateRequest true "Database definition"
// @Success 201 {object} map[string]interface{} "Database created"
// @Failure 400 {object} map[string]interface{} "Invalid request body or validation error"
// @Router /api/gateway/databases [post]
func createDatabase(c *gin.Context) {
	var req dto.DatabaseCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	logger.Debugf("Creating database definition: %s", req.Name)
	def, status, err := gatewaySrv.Create(utils.UserID(c), req)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusCreated, gin.H{
		"message":  status,
		"database": def,
	})
}

// UpdateDatabase mutates an existing database definition
// @Summary Update a database
// @Description Updates name, engine or configuration; re-tests connectivity when engine or configuration change
// @Tags Databases
// @Accept json
// @Produce json
// @Param database body dto.DatabaseUpdateRequest true "Fields to update"
// @Success 200 {object} map[string]interface{} "Database updated"
// @Failure 400 {object} map[string]interface{} "Invalid request body or validation error"
// @Failure 404 {object} map[string]interface{} "Database not found"
// @Router /api/gateway/databases [put]
func updateDatabase(c *gin.Context) {
	var req dto.DatabaseUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	def, status, err := gatewaySrv.Update(utils.UserID(c), req)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{
		"message":  status,
		"database": def,
	})
}

// ListDatabases lists the caller's database definitions
// @Summary List databases
// @Description Lists all database definitions owned by the caller
// @Tags Databases
// @Produce json
// @Success 200 {object} map[string]interface{} "Databases with total count"
// @Router /api/gateway/databases [get]
func listDatabases(c *gin.Context) {
	defs, err := gatewaySrv.List(utils.UserID(c))
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{
		"databases":   defs,
		"total_count": len(defs),
	})
}

// GetDatabase returns one database definition
// @Summary Get database details
// @Description Returns one definition; the configuration field stays encrypted
// @Tags Databases
// @Produce json
// @Param name path string true "Database name"
// @Success 200 {object} map[string]interface{} "Database definition"
// @Failure 404 {object} map[string]interface{} "Database not found"
// @Router /api/gateway/databases/{name} [get]
func getDatabase(c *gin.Context) {
	def, err := gatewaySrv.GetByName(utils.UserID(c), c.Param("name"))
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"database": def})
}

// DeleteDatabase removes a database definition
// @Summary Delete a database
// @Description Removes a definition; no external cleanup happens
// @Tags Databases
// @Produce json
// @Param name path string true "Database name"
// @Success 200 {object} map[string]interface{} "Database deleted"
// @Failure 404 {object} map[string]interface{} "Database not found"
// @Router /api/gateway/databases/{name} [delete]
func deleteDatabase(c *gin.Context) {
	name := c.Param("name")
	logger.Debugf("Deleting database definition: %s", name)
	status, err := gatewaySrv.Delete(utils.UserID(c), name)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"message": status})
}

// QueryDatabase executes a read query against a definition
// @Summary Execute a read query
// @Description Validates and executes a SELECT query, returning normalized rows
// @Tags Queries
// @Accept json
// @Produce json
// @Param query body dto.DatabaseQueryRequest true "Query request"
// @Success 200 {object} dto.QueryResult "Normalized result set"
// @Failure 400 {object} map[string]interface{} "Invalid request or inactive database"
// @Failure 403 {object} map[string]interface{} "Query rejected by security policy"
// @Failure 404 {object} map[string]interface{} "Database not found"
// @Router /api/gateway/databases/query [post]
func queryDatabase(c *gin.Context) {
	var req dto.DatabaseQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	result, err := gatewaySrv.Query(utils.UserID(c), req.DatabaseName, req.Query)
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, result)
}

// GetDatabaseSchema extracts the normalized schema of a definition
// @Summary Extract schema
// @Description Introspects tables and columns in engine-independent form
// @Tags Queries
// @Produce json
// @Param name path string true "Database name"
// @Success 200 {object} map[string]interface{} "Normalized table schemas"
// @Failure 404 {object} map[string]interface{} "Database not found"
// @Router /api/gateway/databases/{name}/schema [get]
func getDatabaseSchema(c *gin.Context) {
	schema, err := gatewaySrv.ExtractSchema(utils.UserID(c), c.Param("name"))
	if err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{"schema": schema})
}

// TestConnection probes connectivity without persisting anything
// @Summary Test a connection
// @Description Opens one connection with the supplied configuration and reports the classified outcome
// @Tags Connection
// @Accept json
// @Produce json
// @Param config body dto.ConnectionTestRequest true "Engine and configuration"
// @Success 200 {object} map[string]interface{} "Connection successful"
// @Failure 502 {object} map[string]interface{} "Classified connection failure"
// @Router /api/gateway/databases/test [post]
func testConnection(c *gin.Context) {
	var req dto.ConnectionTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.ErrorResponse(c, err)
		return
	}

	if err := gatewaySrv.TestConnection(req.DatabaseType, req.Configuration.ToConfig()); err != nil {
		utils.ErrorResponse(c, err)
		return
	}
	utils.JSONResponse(c, http.StatusOK, gin.H{
		"success": true,
		"message": "Connection test completed successfully",
	})
}

// RegisterGatewayRoutes registers HTTP endpoints for the database gateway.
func RegisterGatewayRoutes(rg *gin.RouterGroup) {
	databases := rg.Group("/databases")
	{
		databases.POST("", createDatabase)
		databases.GET("", listDatabases)
		databases.PUT("", updateDatabase)
		databases.POST("/test", testConnection)
		databases.POST("/query", queryDatabase)
		databases.GET("/:name", getDatabase)
		databases.DELETE("/:name", deleteDatabase)
		databases.GET("/:name/schema", getDatabaseSchema)
	}
}
