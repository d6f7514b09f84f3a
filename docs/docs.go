// Package docs registers the OpenAPI description served under /swagger/.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Service health",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/run-etl": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["pipeline"],
                "summary": "Run the pipeline on a server-side file or the sample dataset",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handler.RunETLRequest"}}
                ],
                "responses": {
                    "200": {"description": "Execution report", "schema": {"$ref": "#/definitions/model.ExecutionReport"}},
                    "400": {"description": "Invalid input"},
                    "500": {"description": "Run failed"}
                }
            }
        },
        "/api/process-file": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["pipeline"],
                "summary": "Upload a CSV, XLSX or JSON file and run the pipeline on it",
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true},
                    {"type": "boolean", "name": "insert_to_database", "in": "formData"},
                    {"type": "number", "name": "trm", "in": "formData"}
                ],
                "responses": {
                    "200": {"description": "Execution report", "schema": {"$ref": "#/definitions/model.ExecutionReport"}},
                    "400": {"description": "Invalid input"}
                }
            }
        },
        "/api/import-to-database": {
            "post": {
                "produces": ["application/json"],
                "tags": ["database"],
                "summary": "Insert the latest JSON artifact into the database",
                "responses": {"200": {"description": "OK"}, "404": {"description": "No artifact"}}
            }
        },
        "/api/latest-data": {
            "get": {
                "produces": ["application/json"],
                "tags": ["artifacts"],
                "summary": "Records of the latest JSON artifact",
                "responses": {"200": {"description": "OK"}, "404": {"description": "No artifact"}}
            }
        },
        "/api/database/records": {
            "get": {
                "produces": ["application/json"],
                "tags": ["database"],
                "summary": "Stored records, most recent first",
                "parameters": [{"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["database"],
                "summary": "Database statistics",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/model.DatabaseStats"}}}
            }
        },
        "/api/executions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["executions"],
                "summary": "Execution history",
                "parameters": [{"type": "integer", "name": "limit", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/executions/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["executions"],
                "summary": "One execution with its log lines",
                "parameters": [{"type": "integer", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            }
        },
        "/api/download/{format}": {
            "get": {
                "produces": ["application/octet-stream"],
                "tags": ["artifacts"],
                "summary": "Download the latest artifact of a format",
                "parameters": [{"type": "string", "name": "format", "in": "path", "required": true, "enum": ["json", "parquet", "csv", "sql", "summary"]}],
                "responses": {"200": {"description": "File"}, "400": {"description": "Unknown format"}, "404": {"description": "No artifact"}}
            }
        },
        "/api/trm": {
            "get": {
                "produces": ["application/json"],
                "tags": ["rate"],
                "summary": "Current exchange rate and its source",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/cloud/files": {
            "get": {
                "produces": ["application/json"],
                "tags": ["storage"],
                "summary": "Objects in the configured bucket",
                "parameters": [{"type": "string", "name": "prefix", "in": "query"}],
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "handler.RunETLRequest": {
            "type": "object",
            "properties": {
                "input_file": {"type": "string"},
                "use_sample_data": {"type": "boolean"},
                "insert_to_database": {"type": "boolean"},
                "trm": {"type": "number"}
            }
        },
        "model.ExecutionReport": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "run_id": {"type": "string"},
                "execution_id": {"type": "integer"},
                "status": {"type": "string"},
                "records_processed": {"type": "integer"},
                "trm_used": {"type": "number"},
                "files_created": {"type": "object", "additionalProperties": {"type": "string"}},
                "database_inserted": {"type": "boolean"},
                "records_inserted": {"type": "integer"},
                "cloud_url": {"type": "string"},
                "errors": {"type": "array", "items": {"type": "string"}}
            }
        },
        "model.DatabaseStats": {
            "type": "object",
            "properties": {
                "total_records": {"type": "integer"},
                "average_age_years": {"type": "number"},
                "average_income_source": {"type": "number"},
                "gender_distribution": {"type": "object", "additionalProperties": {"type": "integer"}},
                "illness_distribution": {"type": "object", "additionalProperties": {"type": "integer"}},
                "total_executions": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Person ETL API",
	Description:      "Extracts person records, converts income with the official COP/USD rate and loads every sink.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
